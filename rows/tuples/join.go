package tuples

import (
	"context"
	"fmt"
	"strings"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/record"
)

// Join builds products incrementally, label by label. A label that shares a
// column equality with an earlier label is matched through a hash index on that
// column; other labels are crossed with every partial product. Complete products
// are filtered with the full criteria, so the result equals Cartesian's.
type Join struct{}

type step struct {
	label string
	// pair is nil for a cross join.
	local, remote *criteria.Column
	remotePos     int
}

func (Join) Build(ctx context.Context, in Input) ([]Product, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if len(in.Labels) == 0 || hasEmpty(in.Collections) {
		return nil, nil
	}
	index := newIndex(in.Labels)
	steps := plan(in.Labels, index, criteria.JoinPairs(in.Criteria...))
	in.Metadata.Set(TraceKey, describe(steps, in))

	partial := make([]Product, 0, len(in.Collections[0]))
	for _, obj := range in.Collections[0] {
		partial = append(partial, Product{obj})
	}
	for k := 1; k < len(in.Labels); k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coll := in.Collections[k]
		s := steps[k]
		var next []Product
		if s.local == nil {
			for _, p := range partial {
				for _, obj := range coll {
					next = append(next, extend(p, obj))
				}
			}
		} else {
			buckets := make(map[string][]record.Record)
			for _, obj := range coll {
				key := criteria.HashKey(record.GetOr(obj, s.local.Name, nil))
				buckets[key] = append(buckets[key], obj)
			}
			for _, p := range partial {
				key := criteria.HashKey(record.GetOr(p[s.remotePos], s.remote.Name, nil))
				for _, obj := range buckets[key] {
					next = append(next, extend(p, obj))
				}
			}
		}
		partial = next
	}

	var products []Product
	for _, p := range partial {
		ok, err := criteria.All(view{index: index, product: p}, in.Criteria)
		if err != nil {
			return nil, err
		}
		if ok {
			products = append(products, p)
		}
	}
	if err := Sort(products, in.Labels, in.OrderBy); err != nil {
		return nil, err
	}
	return products, nil
}

func extend(p Product, obj record.Record) Product {
	out := make(Product, len(p), len(p)+1)
	copy(out, p)
	return append(out, obj)
}

func plan(labels []string, index map[string]int, pairs []criteria.Pair) []step {
	steps := make([]step, len(labels))
	for k, label := range labels {
		steps[k] = step{label: label}
		if k == 0 || index[label] != k {
			continue
		}
		for _, pair := range pairs {
			local, remote, ok := pair.Other(label)
			if !ok {
				continue
			}
			pos, known := index[remote.Table]
			if !known || pos >= k {
				continue
			}
			steps[k].local, steps[k].remote, steps[k].remotePos = &local, &remote, pos
			break
		}
	}
	return steps
}

func describe(steps []step, in Input) string {
	var b strings.Builder
	b.WriteString("FROM ")
	b.WriteString(steps[0].label)
	for _, s := range steps[1:] {
		if s.local == nil {
			fmt.Fprintf(&b, " CROSS JOIN %s", s.label)
			continue
		}
		fmt.Fprintf(&b, " HASH JOIN %s ON %s = %s", s.label, s.local, s.remote)
	}
	if len(in.Criteria) > 0 {
		fmt.Fprintf(&b, " WHERE %s", criteria.And(in.Criteria...))
	}
	if len(in.OrderBy) > 0 {
		parts := make([]string, len(in.OrderBy))
		for i, o := range in.OrderBy {
			parts[i] = o.String()
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(parts, ", "))
	}
	return b.String()
}
