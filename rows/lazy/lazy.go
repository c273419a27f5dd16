// Package lazy wraps projected values so that decoding happens only when a
// consumer asks for it.
package lazy

import (
	"context"
	"fmt"
	"sync"

	"github.com/acksell/ddbrows/rows/dataformat"
)

type Kind int

const (
	// Primitive values are used as they are.
	Primitive Kind = iota
	// Decoded values were decoded eagerly when wrapped.
	Decoded
	// Deferred values are decoded on Force.
	Deferred
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Decoded:
		return "decoded"
	case Deferred:
		return "deferred"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is the result of wrapping a projected value.
type Value struct {
	Kind Kind
	// Value is set for Primitive and Decoded values.
	Value any
	// Handle is set for Deferred values.
	Handle *Handle
}

// Resolve returns the underlying value, forcing deferred ones.
func (v Value) Resolve(ctx context.Context) (any, error) {
	if v.Kind == Deferred {
		return v.Handle.Force(ctx)
	}
	return v.Value, nil
}

// IsPrimitive reports whether v needs no decoding.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Wrap classifies v. Decoded markers are decoded right away with the
// request's decoder, so Wrap can fail with dataformat.ErrDecode.
func Wrap(ctx context.Context, v any, requestID string, source dataformat.Source) (Value, error) {
	if IsPrimitive(v) {
		return Value{Kind: Primitive, Value: v}, nil
	}
	if dataformat.IsDecodedMarker(v) {
		dv, err := source.GetDecoder(requestID).Desimplify(ctx, v)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Decoded, Value: dv}, nil
	}
	return Value{Kind: Deferred, Handle: NewHandle(v, requestID, source)}, nil
}

// Handle is a value whose decoding is postponed. It is resolved at most once
// and is safe to force from several goroutines.
type Handle struct {
	raw       any
	requestID string
	source    dataformat.Source

	once sync.Once
	val  any
	err  error
}

func NewHandle(raw any, requestID string, source dataformat.Source) *Handle {
	return &Handle{raw: raw, requestID: requestID, source: source}
}

// Raw returns the undecoded payload.
func (h *Handle) Raw() any { return h.raw }

// RequestID returns the correlation id of the request that created h.
func (h *Handle) RequestID() string { return h.requestID }

// Force decodes the payload with the decoder of the originating request. Later
// calls return the first result.
func (h *Handle) Force(ctx context.Context) (any, error) {
	h.once.Do(func() {
		if h.source == nil {
			h.err = fmt.Errorf("deferred value of request %s has no decoder: %w", h.requestID, dataformat.ErrDecode)
			return
		}
		h.val, h.err = h.source.GetDecoder(h.requestID).Desimplify(ctx, h.raw)
	})
	return h.val, h.err
}

func (h *Handle) String() string {
	return fmt.Sprintf("deferred(%s)", h.requestID)
}

// Force resolves v if it is a Value or *Handle and returns anything else unchanged.
func Force(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case Value:
		return t.Resolve(ctx)
	case *Handle:
		return t.Force(ctx)
	}
	return v, nil
}
