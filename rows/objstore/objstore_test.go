package objstore

import (
	"context"
	"testing"

	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Put("compute_node",
		record.Map{"id": float64(1), "service_id": float64(1)},
		record.Map{"id": float64(2), "service_id": float64(1)},
		record.Map{"id": float64(3), "service_id": float64(2)},
	)
	ctx := context.Background()

	all, err := m.GetObjects(ctx, "compute_node", "req", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matched, err := m.GetObjects(ctx, "compute_node", "req", []model.Lookup{{Attribute: "service_id", Value: 1}})
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	matched, err = m.GetObjects(ctx, "compute_node", "req", []model.Lookup{
		{Attribute: "service_id", Value: 1},
		{Attribute: "id", Value: "2"},
	})
	require.NoError(t, err)
	assert.Empty(t, matched, "string id does not equal number")

	empty, err := m.GetObjects(ctx, "service", "req", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
