package rows

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/model"
)

// plan is the outcome of resolving a selection list.
type plan struct {
	// entities in first-seen order, unique by identity.
	entities []model.Entity
	labels   []string
	// columns are the table.attribute names the selection needs.
	columns []string
}

func resolve(selectables []model.Selectable, logger *slog.Logger) (plan, error) {
	var p plan
	seen := map[model.Entity]struct{}{}
	columns := map[string]struct{}{}
	for _, s := range selectables {
		if s.IsFunction() {
			continue
		}
		label := model.TableName(s.Entity)
		if _, ok := seen[s.Entity]; !ok {
			seen[s.Entity] = struct{}{}
			p.entities = append(p.entities, s.Entity)
			p.labels = append(p.labels, label)
			if label == model.NoTable {
				logger.Warn("cannot resolve table name", "entity", fmt.Sprint(s.Entity))
			}
		}

		attrs := []string{s.Attribute}
		if s.Attribute == model.AllAttributes {
			var err error
			attrs, err = introspect(s.Entity, logger)
			if err != nil {
				return plan{}, &PhaseError{Phase: instrument.BuildingQuery, Table: label, Err: err}
			}
		}
		for _, a := range attrs {
			columns[label+"."+a] = struct{}{}
		}
	}
	for c := range columns {
		p.columns = append(p.columns, c)
	}
	slices.Sort(p.columns)
	return p, nil
}

func introspect(e model.Entity, logger *slog.Logger) ([]string, error) {
	attrs, err := model.Attributes(e)
	if err == nil {
		return attrs, nil
	}
	logger.Warn("attribute introspection failed, trying fallback", "entity", fmt.Sprint(e), "error", err)
	attrs, fallbackErr := model.FallbackAttributes(e)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, fallbackErr)
	}
	return attrs, nil
}
