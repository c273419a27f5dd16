package dataformat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingStore(calls *atomic.Int32) objstore.Store {
	mem := objstore.NewMemory()
	mem.Put("service", record.Map{"id": float64(1), "host": "host1"})
	return objstore.Func(func(ctx context.Context, table, requestID string, lookups []model.Lookup) ([]record.Record, error) {
		calls.Add(1)
		return mem.GetObjects(ctx, table, requestID, lookups)
	})
}

func TestDesimplify(t *testing.T) {
	ctx := context.Background()
	d := newDecoder("req", nil)

	t.Run("datetime", func(t *testing.T) {
		v, err := d.Desimplify(ctx, map[string]any{"timezone": "UTC", "value": "2016-01-02T15:04:05"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2016, 1, 2, 15, 4, 5, 0, time.UTC), v)
	})

	t.Run("datetime with strategy", func(t *testing.T) {
		v, err := d.Desimplify(ctx, map[string]any{StrategyKey: StrategyDatetime, "value": "2016-01-02T15:04:05Z"})
		require.NoError(t, err)
		assert.True(t, time.Date(2016, 1, 2, 15, 4, 5, 0, time.UTC).Equal(v.(time.Time)))
	})

	t.Run("json", func(t *testing.T) {
		v, err := d.Desimplify(ctx, map[string]any{StrategyKey: StrategyJSON, "value": `{"a": [1, 2]}`})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, v)
	})

	t.Run("nested", func(t *testing.T) {
		v, err := d.Desimplify(ctx, record.Map{
			"created": map[string]any{"timezone": "UTC", "value": "2016-01-02"},
			"tags":    []any{"a", map[string]any{StrategyKey: StrategyJSON, "value": "true"}},
		})
		require.NoError(t, err)
		m := v.(map[string]any)
		assert.Equal(t, time.Date(2016, 1, 2, 0, 0, 0, 0, time.UTC), m["created"])
		assert.Equal(t, []any{"a", true}, m["tags"])
	})

	t.Run("object with a timezone attribute stays an object", func(t *testing.T) {
		v, err := d.Desimplify(ctx, record.Map{"id": 1, "value": "2016-01-02", "timezone": "Europe/Paris"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": 1, "value": "2016-01-02", "timezone": "Europe/Paris"}, v)
	})

	t.Run("primitives pass through", func(t *testing.T) {
		v, err := d.Desimplify(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	for name, bad := range map[string]map[string]any{
		"unknown strategy":   {StrategyKey: "pickle"},
		"bad datetime":       {"timezone": "UTC", "value": "yesterday"},
		"bad timezone":       {"timezone": "Mars/Olympus", "value": "2016-01-02"},
		"bad json":           {StrategyKey: StrategyJSON, "value": "{"},
		"reference no id":    {StrategyKey: StrategyReference, "table": "service"},
		"reference no store": {StrategyKey: StrategyReference, "table": "service", "id": 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Desimplify(ctx, bad)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestReferenceCaching(t *testing.T) {
	var calls atomic.Int32
	d := newDecoder("req", countingStore(&calls))
	ref := map[string]any{StrategyKey: StrategyReference, "table": "service", "id": 1}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := d.Desimplify(context.Background(), ref)
			assert.NoError(t, err)
			assert.Equal(t, record.Map{"id": float64(1), "host": "host1"}, v)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())

	missing, err := d.Desimplify(context.Background(), map[string]any{StrategyKey: StrategyReference, "table": "service", "id": 2})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReferenceLoadError(t *testing.T) {
	failing := objstore.Func(func(context.Context, string, string, []model.Lookup) ([]record.Record, error) {
		return nil, errors.New("unavailable")
	})
	d := newDecoder("req", failing)
	_, err := d.Desimplify(context.Background(), map[string]any{StrategyKey: StrategyReference, "table": "service", "id": 1})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(nil, RegistryOptions{})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	a := reg.GetDecoder("a")
	assert.Same(t, a, reg.GetDecoder("a"))
	assert.NotSame(t, a, reg.GetDecoder("b"))

	t.Run("concurrent lookups share one decoder", func(t *testing.T) {
		got := make([]Decoder, 32)
		var wg sync.WaitGroup
		for i := range got {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got[i] = reg.GetDecoder("shared")
			}()
		}
		wg.Wait()
		for _, d := range got {
			assert.Same(t, got[0], d)
		}
	})
}

func TestRegistryKeepsRejectedDecoders(t *testing.T) {
	reg, err := NewRegistry(nil, RegistryOptions{TTL: time.Minute})
	require.NoError(t, err)
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	// a closed cache admits nothing
	reg.Close()

	a := reg.GetDecoder("a")
	assert.Same(t, a, reg.GetDecoder("a"))
	assert.NotSame(t, a, reg.GetDecoder("b"))

	t.Run("lookups extend the ttl", func(t *testing.T) {
		now = now.Add(50 * time.Second)
		assert.Same(t, a, reg.GetDecoder("a"))
		now = now.Add(50 * time.Second)
		assert.Same(t, a, reg.GetDecoder("a"))
	})

	t.Run("expired decoders are rebuilt", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.NotSame(t, a, reg.GetDecoder("a"))
		reg.mu.Lock()
		defer reg.mu.Unlock()
		assert.NotContains(t, reg.fallback, "b")
	})
}

func TestIsDecodedMarker(t *testing.T) {
	assert.True(t, IsDecodedMarker(map[string]any{"timezone": "UTC"}))
	assert.False(t, IsDecodedMarker(record.Map{"timezone": "UTC", "value": "2016-01-02"}))
	assert.False(t, IsDecodedMarker(map[string]any{"value": 1}))
	assert.False(t, IsDecodedMarker("timezone"))
}
