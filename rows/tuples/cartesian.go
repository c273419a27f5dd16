package tuples

import (
	"context"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/parallel"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/panjf2000/ants/v2"
)

// Cartesian expands the full product of all collections in label order and
// filters it with the criteria. With a Pool, the product is sharded on the
// objects of the first collection.
type Cartesian struct {
	Pool *ants.Pool
}

func (c Cartesian) Build(ctx context.Context, in Input) ([]Product, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if len(in.Labels) == 0 || hasEmpty(in.Collections) {
		return nil, nil
	}
	index := newIndex(in.Labels)
	first := in.Collections[0]
	shards := make([][]Product, len(first))
	err := parallel.Run(ctx, c.Pool, len(first), func(ctx context.Context, i int) error {
		out, err := expand(ctx, first[i], in.Collections[1:], index, in.Criteria)
		shards[i] = out
		return err
	})
	if err != nil {
		return nil, err
	}
	var products []Product
	for _, s := range shards {
		products = append(products, s...)
	}
	if err := Sort(products, in.Labels, in.OrderBy); err != nil {
		return nil, err
	}
	return products, nil
}

// expand walks every combination that starts with head, odometer style.
func expand(ctx context.Context, head record.Record, rest [][]record.Record, index map[string]int, crit []criteria.Criterion) ([]Product, error) {
	var out []Product
	pos := make([]int, len(rest))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := make(Product, 0, len(rest)+1)
		p = append(p, head)
		for i, coll := range rest {
			p = append(p, coll[pos[i]])
		}
		ok, err := criteria.All(view{index: index, product: p}, crit)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}

		i := len(rest) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(rest[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
