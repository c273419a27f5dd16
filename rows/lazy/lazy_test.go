package lazy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acksell/ddbrows/rows/dataformat"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDecoder struct {
	calls atomic.Int32
}

func (d *countingDecoder) Desimplify(_ context.Context, v any) (any, error) {
	d.calls.Add(1)
	if m, ok := v.(record.Map); ok {
		return len(m), nil
	}
	return v, nil
}

type fakeSource struct {
	dec       *countingDecoder
	requested []string
	mu        sync.Mutex
}

func (s *fakeSource) GetDecoder(requestID string) dataformat.Decoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = append(s.requested, requestID)
	return s.dec
}

func TestWrap(t *testing.T) {
	ctx := context.Background()
	reg, err := dataformat.NewRegistry(nil, dataformat.RegistryOptions{})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	for _, v := range []any{nil, 1, int64(2), 1.5, "host1", true} {
		w, err := Wrap(ctx, v, "req", reg)
		require.NoError(t, err)
		assert.Equal(t, Primitive, w.Kind)
		assert.Equal(t, v, w.Value)
	}

	w, err := Wrap(ctx, map[string]any{"timezone": "UTC", "value": "2016-01-02"}, "req", reg)
	require.NoError(t, err)
	assert.Equal(t, Decoded, w.Kind)
	assert.Equal(t, time.Date(2016, 1, 2, 0, 0, 0, 0, time.UTC), w.Value)

	_, err = Wrap(ctx, map[string]any{"timezone": "UTC", "value": "never"}, "req", reg)
	assert.ErrorIs(t, err, dataformat.ErrDecode)

	w, err = Wrap(ctx, record.Map{"id": 1}, "req", reg)
	require.NoError(t, err)
	assert.Equal(t, Deferred, w.Kind)
	assert.Equal(t, "req", w.Handle.RequestID())

	w, err = Wrap(ctx, record.Map{"id": 1, "timezone": "UTC", "value": "2016-01-02"}, "req", reg)
	require.NoError(t, err)
	assert.Equal(t, Deferred, w.Kind)
}

func TestForceOnce(t *testing.T) {
	src := &fakeSource{dec: &countingDecoder{}}
	h := NewHandle(record.Map{"id": 1, "host": "h"}, "req-1", src)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := h.Force(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, 2, r)
	}
	assert.EqualValues(t, 1, src.dec.calls.Load())
	assert.Equal(t, []string{"req-1"}, src.requested)

	v, err := Force(context.Background(), Value{Kind: Deferred, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = Force(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestForceWithoutSource(t *testing.T) {
	h := NewHandle(record.Map{}, "req", nil)
	_, err := h.Force(context.Background())
	assert.ErrorIs(t, err, dataformat.ErrDecode)
	_, err = h.Force(context.Background())
	assert.ErrorIs(t, err, dataformat.ErrDecode)
}
