package rows

import (
	"context"
	"fmt"
	"slices"

	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/lazy"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
)

func showableSelection(selectables []model.Selectable) []model.Selectable {
	var out []model.Selectable
	for _, s := range selectables {
		if !s.Hidden || s.IsFunction() {
			out = append(out, s)
		}
	}
	return out
}

func anyVisibleFunction(selectables []model.Selectable) bool {
	for _, s := range selectables {
		if !s.Hidden && s.IsFunction() {
			return true
		}
	}
	return false
}

func (m *Materializer) project(ctx context.Context, rows []record.Record, selectables, showable []model.Selectable, requestID string) ([]any, error) {
	results := make([]any, len(showable))
	for i, s := range showable {
		if !s.IsFunction() {
			continue
		}
		v, err := s.Function.Fn(slices.Clone(rows))
		if err != nil {
			return nil, &PhaseError{Phase: instrument.SelectingAttributes, Err: fmt.Errorf("%s: %w: %w", s, ErrFunction, err)}
		}
		results[i] = v
	}

	if anyVisibleFunction(selectables) {
		// Plain columns have no meaning next to an aggregate and are left nil.
		dec := m.decoders.GetDecoder(requestID)
		row := make([]any, len(showable))
		for i, s := range showable {
			if !s.IsFunction() {
				continue
			}
			v, err := dec.Desimplify(ctx, results[i])
			if err != nil {
				return nil, &PhaseError{Phase: instrument.SelectingAttributes, Err: fmt.Errorf("%s: %w", s, err)}
			}
			row[i] = v
		}
		if len(showable) == 1 {
			return []any{row[0]}, nil
		}
		return []any{row}, nil
	}

	final := make([]any, 0, len(rows))
	for _, r := range rows {
		row := make([]lazy.Value, len(showable))
		for i, s := range showable {
			v := results[i]
			if !s.IsFunction() {
				v = columnValue(r, s)
			}
			w, err := lazy.Wrap(ctx, v, requestID, m.decoders)
			if err != nil {
				return nil, &PhaseError{Phase: instrument.SelectingAttributes, Table: model.TableName(s.Entity), Err: err}
			}
			row[i] = w
		}
		if len(showable) == 1 {
			final = append(final, row[0])
			continue
		}
		final = append(final, row)
	}
	return final, nil
}

// columnValue picks the object of s's entity out of row, then the requested attribute.
func columnValue(row record.Record, s model.Selectable) any {
	var sub any = row
	if c, ok := row.(*Composite); ok {
		if obj, ok := c.Lookup(model.TableName(s.Entity)); ok {
			sub = obj
		}
	}
	if sub == nil || s.Attribute == model.AllAttributes {
		return sub
	}
	rec, ok := sub.(record.Record)
	if !ok || rec == nil {
		return nil
	}
	return record.GetOr(rec, s.Attribute, nil)
}
