package tuples

import (
	"context"
	"fmt"
	"testing"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/parallel"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func services(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Map{"id": float64(i + 1), "host": fmt.Sprintf("host%d", (i%2)+1)}
	}
	return out
}

func nodes(n, services int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Map{"id": float64(100 + i), "service_id": float64(i%services + 1), "vcpus": float64(n - i)}
	}
	return out
}

func builders(t *testing.T) map[string]Builder {
	pool, err := parallel.NewPool(3, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return map[string]Builder{
		"cartesian":         Cartesian{},
		"sharded cartesian": Cartesian{Pool: pool},
		"join":              Join{},
	}
}

func TestBuildersWithoutCriteria(t *testing.T) {
	for name, b := range builders(t) {
		t.Run(name, func(t *testing.T) {
			in := Input{
				Collections: [][]record.Record{services(3), nodes(4, 3), services(2)},
				Labels:      []string{"service", "compute_node", "other"},
			}
			out, err := b.Build(context.Background(), in)
			require.NoError(t, err)
			assert.Len(t, out, 3*4*2)
			for _, p := range out {
				assert.Len(t, p, 3)
			}
			assert.Equal(t, in.Collections[0][0], out[0][0])
			assert.Equal(t, in.Collections[2][1], out[1][2])
		})
	}
}

func TestBuildersAgree(t *testing.T) {
	in := Input{
		Collections: [][]record.Record{services(3), nodes(7, 4)},
		Labels:      []string{"service", "compute_node"},
		Criteria: []criteria.Criterion{
			criteria.Eq(criteria.Col("compute_node", "service_id"), criteria.Col("service", "id")),
			criteria.Gt(criteria.Col("compute_node", "vcpus"), criteria.Lit(1)),
		},
		Metadata: &Metadata{},
	}
	want, err := Cartesian{}.Build(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	for name, b := range builders(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.Build(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			for _, p := range got {
				assert.Equal(t, p[0].(record.Map)["id"], p[1].(record.Map)["service_id"])
			}
		})
	}

	trace, ok := in.Metadata.Trace()
	require.True(t, ok)
	assert.Contains(t, trace, "HASH JOIN compute_node ON compute_node.service_id = service.id")
}

func TestOrderBy(t *testing.T) {
	for name, b := range builders(t) {
		t.Run(name, func(t *testing.T) {
			in := Input{
				Collections: [][]record.Record{services(2), nodes(5, 2)},
				Labels:      []string{"service", "compute_node"},
				Criteria: []criteria.Criterion{
					criteria.Eq(criteria.Col("service", "id"), criteria.Col("compute_node", "service_id")),
				},
				OrderBy: []OrderBy{{Table: "compute_node", Column: "vcpus"}},
			}
			out, err := b.Build(context.Background(), in)
			require.NoError(t, err)
			require.Len(t, out, 5)
			for i := 1; i < len(out); i++ {
				prev, _ := out[i-1][1].Get("vcpus")
				cur, _ := out[i][1].Get("vcpus")
				assert.LessOrEqual(t, prev.(float64), cur.(float64))
			}

			in.OrderBy = []OrderBy{{Table: "service", Column: "id", Descending: true}}
			out, err = b.Build(context.Background(), in)
			require.NoError(t, err)
			first, _ := out[0][0].Get("id")
			last, _ := out[len(out)-1][0].Get("id")
			assert.Equal(t, float64(2), first)
			assert.Equal(t, float64(1), last)
		})
	}
}

func TestEdgeCases(t *testing.T) {
	for name, b := range builders(t) {
		t.Run(name, func(t *testing.T) {
			out, err := b.Build(context.Background(), Input{})
			require.NoError(t, err)
			assert.Empty(t, out, "no labels")

			out, err = b.Build(context.Background(), Input{
				Collections: [][]record.Record{services(2), nil},
				Labels:      []string{"service", "compute_node"},
			})
			require.NoError(t, err)
			assert.Empty(t, out, "empty collection")

			_, err = b.Build(context.Background(), Input{
				Collections: [][]record.Record{services(2)},
				Labels:      []string{"service", "compute_node"},
			})
			assert.ErrorIs(t, err, ErrShape)

			_, err = b.Build(context.Background(), Input{
				Collections: [][]record.Record{services(2)},
				Labels:      []string{"service"},
				Criteria:    []criteria.Criterion{criteria.Eq(criteria.Col("missing", "id"), criteria.Lit(1))},
			})
			assert.ErrorIs(t, err, criteria.ErrUnknownTable)

			_, err = b.Build(context.Background(), Input{
				Collections: [][]record.Record{services(2)},
				Labels:      []string{"service"},
				OrderBy:     []OrderBy{{Table: "missing", Column: "id"}},
			})
			assert.ErrorIs(t, err, criteria.ErrUnknownTable)
		})
	}
}

func TestJoinNilKeys(t *testing.T) {
	in := Input{
		Collections: [][]record.Record{
			{record.Map{"id": nil}, record.Map{"id": 1}},
			{record.Map{"ref": nil}, record.Map{"ref": []string{"x"}}},
		},
		Labels:   []string{"a", "b"},
		Criteria: []criteria.Criterion{criteria.Eq(criteria.Col("a", "id"), criteria.Col("b", "ref"))},
	}
	want, err := Cartesian{}.Build(context.Background(), in)
	require.NoError(t, err)
	got, err := Join{}.Build(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got, 1)
}
