// Package tuples combines the object collections loaded for each table into
// candidate products, keeping the ones that satisfy the request criteria.
package tuples

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
)

var ErrShape = errors.New("collections do not match labels")

// TraceKey is the metadata key builders store a description of their plan under.
const TraceKey = "sql"

// Product holds one object per label. An empty product carries no match.
type Product []record.Record

// Builder computes the products of a request.
type Builder interface {
	Build(ctx context.Context, in Input) ([]Product, error)
}

type Input struct {
	// Collections[i] holds the objects loaded for Labels[i].
	Collections [][]record.Record
	Labels      []string
	Criteria    []criteria.Criterion
	Hints       []model.Hint
	OrderBy     []OrderBy
	Metadata    *Metadata
}

// OrderBy sorts products on the value of Table.Column.
type OrderBy struct {
	Table      string
	Column     string
	Descending bool
}

func (o OrderBy) String() string {
	if o.Descending {
		return o.Table + "." + o.Column + " DESC"
	}
	return o.Table + "." + o.Column
}

// Metadata is written by builders and read by instrumentation.
type Metadata struct {
	mu     sync.Mutex
	values map[string]any
}

func (m *Metadata) Set(key string, value any) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[key] = value
}

func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Trace returns the plan description stored under TraceKey, if any.
func (m *Metadata) Trace() (string, bool) {
	v, ok := m.Get(TraceKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// view exposes a product as a criteria.Tuple.
type view struct {
	index   map[string]int
	product Product
}

func newIndex(labels []string) map[string]int {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = i
		}
	}
	return index
}

func (v view) Lookup(table string) (record.Record, bool) {
	i, ok := v.index[table]
	if !ok || i >= len(v.product) {
		return nil, false
	}
	return v.product[i], true
}

func validate(in Input) error {
	if len(in.Collections) != len(in.Labels) {
		return fmt.Errorf("%d collections for %d labels: %w", len(in.Collections), len(in.Labels), ErrShape)
	}
	return nil
}

func hasEmpty(collections [][]record.Record) bool {
	return slices.ContainsFunc(collections, func(c []record.Record) bool { return len(c) == 0 })
}

// Sort orders products by orderBy, keeping the relative order of equal products.
func Sort(products []Product, labels []string, orderBy []OrderBy) error {
	if len(orderBy) == 0 {
		return nil
	}
	index := newIndex(labels)
	positions := make([]int, len(orderBy))
	for i, o := range orderBy {
		pos, ok := index[o.Table]
		if !ok {
			return fmt.Errorf("order by %s: %w", o, criteria.ErrUnknownTable)
		}
		positions[i] = pos
	}
	slices.SortStableFunc(products, func(a, b Product) int {
		for i, o := range orderBy {
			c := criteria.Compare(
				record.GetOr(a[positions[i]], o.Column, nil),
				record.GetOr(b[positions[i]], o.Column, nil),
			)
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return nil
}
