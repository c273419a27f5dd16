package rowsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/acksell/ddbrows/rows"
	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/lazy"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/acksell/ddbrows/rows/tuples"
)

// ErrBadQuery is returned for queries that cannot be turned into a request.
var ErrBadQuery = errors.New("bad query")

// Entities resolves the entity names used in a query.
type Entities interface {
	Entity(name string) (model.Entity, bool)
}

// Query is the textual form of a materialization request.
//
// Select entries are entity, entity.*, entity.attribute, count(),
// sum(entity.attribute), min(...) or max(...). A leading ~ hides the entry.
// Where entries are parsed with criteria.Parse and reference table names.
// OrderBy entries are entity.attribute followed by an optional asc or desc.
type Query struct {
	Select    []string `json:"select" yaml:"select"`
	Where     []string `json:"where,omitempty" yaml:"where,omitempty"`
	OrderBy   []string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	RequestID string   `json:"requestId,omitempty" yaml:"requestId,omitempty"`
}

// Request builds the materialization request. Hints are derived from the
// column = literal conjuncts of the criteria.
func (q Query) Request(entities Entities) (rows.Request, error) {
	if len(q.Select) == 0 {
		return rows.Request{}, fmt.Errorf("%w: nothing selected", ErrBadQuery)
	}
	req := rows.Request{RequestID: q.RequestID}
	for _, s := range q.Select {
		sel, err := parseSelectable(s, entities)
		if err != nil {
			return rows.Request{}, err
		}
		req.Selectables = append(req.Selectables, sel)
	}
	for _, w := range q.Where {
		c, err := criteria.Parse(w)
		if err != nil {
			return rows.Request{}, fmt.Errorf("%w: where %q: %w", ErrBadQuery, w, err)
		}
		req.Criteria = append(req.Criteria, c)
	}
	req.Hints = criteria.DeriveHints(req.Criteria...)
	for _, o := range q.OrderBy {
		ob, err := parseOrderBy(o, entities)
		if err != nil {
			return rows.Request{}, err
		}
		req.OrderBy = append(req.OrderBy, ob)
	}
	return req, nil
}

func parseSelectable(s string, entities Entities) (model.Selectable, error) {
	s = strings.TrimSpace(s)
	hidden := false
	if rest, ok := strings.CutPrefix(s, "~"); ok {
		hidden = true
		s = strings.TrimSpace(rest)
	}
	sel, err := selectable(s, entities)
	if err != nil {
		return model.Selectable{}, err
	}
	if hidden {
		sel = sel.Hide()
	}
	return sel, nil
}

func selectable(s string, entities Entities) (model.Selectable, error) {
	if name, arg, ok := cutCall(s); ok {
		if strings.EqualFold(name, "count") {
			if arg != "" && arg != "*" {
				return model.Selectable{}, fmt.Errorf("%w: count takes no argument", ErrBadQuery)
			}
			return rows.Count(), nil
		}
		table, attr, err := column(arg, entities)
		if err != nil {
			return model.Selectable{}, err
		}
		switch strings.ToLower(name) {
		case "sum":
			return rows.Sum(table, attr), nil
		case "min":
			return rows.Min(table, attr), nil
		case "max":
			return rows.Max(table, attr), nil
		}
		return model.Selectable{}, fmt.Errorf("%w: unknown function %s", ErrBadQuery, name)
	}

	name, attr, found := strings.Cut(s, ".")
	e, ok := entities.Entity(name)
	if !ok {
		return model.Selectable{}, fmt.Errorf("%w: unknown entity %q", ErrBadQuery, name)
	}
	if !found || attr == model.AllAttributes {
		return model.All(e), nil
	}
	if attr == "" {
		return model.Selectable{}, fmt.Errorf("%w: empty attribute in %q", ErrBadQuery, s)
	}
	return model.Column(e, attr), nil
}

// cutCall splits "name(arg)".
func cutCall(s string) (name, arg string, ok bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : len(s)-1]), true
}

// column resolves entity.attribute to the entity's table name and the attribute.
func column(s string, entities Entities) (table, attr string, err error) {
	name, attr, found := strings.Cut(strings.TrimSpace(s), ".")
	if !found || attr == "" {
		return "", "", fmt.Errorf("%w: expected entity.attribute, got %q", ErrBadQuery, s)
	}
	e, ok := entities.Entity(name)
	if !ok {
		return "", "", fmt.Errorf("%w: unknown entity %q", ErrBadQuery, name)
	}
	return model.TableName(e), attr, nil
}

func parseOrderBy(s string, entities Entities) (tuples.OrderBy, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return tuples.OrderBy{}, fmt.Errorf("%w: order by %q", ErrBadQuery, s)
	}
	table, attr, err := column(fields[0], entities)
	if err != nil {
		return tuples.OrderBy{}, err
	}
	ob := tuples.OrderBy{Table: table, Column: attr}
	if len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "asc":
		case "desc":
			ob.Descending = true
		default:
			return tuples.OrderBy{}, fmt.Errorf("%w: order by %q", ErrBadQuery, s)
		}
	}
	return ob, nil
}

// Resolve forces every deferred value of the rows returned by
// rows.Materializer.Construct so they can be encoded.
func Resolve(ctx context.Context, rs []any) ([]any, error) {
	out := make([]any, len(rs))
	for i, r := range rs {
		v, err := force(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func force(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case []lazy.Value:
		out := make([]any, len(t))
		for i, lv := range t {
			rv, err := force(ctx, lv)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			rv, err := force(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	}
	rv, err := lazy.Force(ctx, v)
	if err != nil {
		return nil, err
	}
	if s, ok := rv.(*record.Struct); ok {
		return s.Interface(), nil
	}
	return rv, nil
}
