package rows

import (
	"fmt"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
)

// Count is a computed column holding the number of rows.
func Count() model.Selectable {
	return model.Func("count", func(rows []record.Record) (any, error) {
		return len(rows), nil
	})
}

// Sum adds up table.attribute over all rows, skipping nils.
func Sum(table, attribute string) model.Selectable {
	return model.Func(fmt.Sprintf("sum(%s.%s)", table, attribute), func(rows []record.Record) (any, error) {
		var total float64
		for _, r := range rows {
			v := attributeOf(r, table, attribute)
			if v == nil {
				continue
			}
			n, ok := criteria.Number(v)
			if !ok {
				return nil, fmt.Errorf("sum %s.%s: %T is not a number", table, attribute, v)
			}
			total += n
		}
		return total, nil
	})
}

// Min is the smallest non-nil table.attribute, or nil without rows.
func Min(table, attribute string) model.Selectable {
	return model.Func(fmt.Sprintf("min(%s.%s)", table, attribute), extreme(table, attribute, -1))
}

// Max is the largest non-nil table.attribute, or nil without rows.
func Max(table, attribute string) model.Selectable {
	return model.Func(fmt.Sprintf("max(%s.%s)", table, attribute), extreme(table, attribute, 1))
}

func extreme(table, attribute string, sign int) func([]record.Record) (any, error) {
	return func(rows []record.Record) (any, error) {
		var best any
		for _, r := range rows {
			v := attributeOf(r, table, attribute)
			if v == nil {
				continue
			}
			if best == nil || criteria.Compare(v, best)*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

func attributeOf(row record.Record, table, attribute string) any {
	if c, ok := row.(*Composite); ok {
		obj, ok := c.Lookup(table)
		if !ok || obj == nil {
			return nil
		}
		return record.GetOr(obj, attribute, nil)
	}
	return record.GetOr(row, attribute, nil)
}
