package rows

import (
	"slices"

	"github.com/acksell/ddbrows/rows/model"
)

// filterHints keeps the hints usable to load table: those on its primary key or
// on one of the entity's secondary indexes.
func filterHints(e model.Entity, table string, hints []model.Hint) []model.Lookup {
	indexes := model.SecondaryIndexes(e)
	var lookups []model.Lookup
	for _, h := range hints {
		if h.Table != table {
			continue
		}
		if h.Attribute != model.PrimaryKey && !slices.Contains(indexes, h.Attribute) {
			continue
		}
		lookups = append(lookups, model.Lookup{Attribute: h.Attribute, Value: h.Value})
	}
	return lookups
}
