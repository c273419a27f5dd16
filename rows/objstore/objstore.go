// Package objstore defines the read API rows are loaded through.
package objstore

import (
	"context"
	"sync"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
)

// Store loads the objects of a table. Every lookup must match; an empty lookup
// set returns the whole table. requestID correlates all calls of one request.
type Store interface {
	GetObjects(ctx context.Context, table, requestID string, lookups []model.Lookup) ([]record.Record, error)
}

// Func adapts a function to Store.
type Func func(ctx context.Context, table, requestID string, lookups []model.Lookup) ([]record.Record, error)

func (f Func) GetObjects(ctx context.Context, table, requestID string, lookups []model.Lookup) ([]record.Record, error) {
	return f(ctx, table, requestID, lookups)
}

// Memory is a Store over in-memory tables.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]record.Record
}

func NewMemory() *Memory {
	return &Memory{tables: map[string][]record.Record{}}
}

// Put appends records to table.
func (m *Memory) Put(table string, records ...record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], records...)
}

func (m *Memory) GetObjects(ctx context.Context, table, _ string, lookups []model.Lookup) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.Record
	for _, r := range m.tables[table] {
		if Matches(r, lookups) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Matches reports whether r satisfies every lookup.
func Matches(r record.Record, lookups []model.Lookup) bool {
	for _, l := range lookups {
		v, ok := r.Get(l.Attribute)
		if !ok || !criteria.Equal(v, l.Value) {
			return false
		}
	}
	return true
}
