package dataformat

import (
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/dgraph-io/ristretto/v2"
)

// Source hands out the decoder of a request.
type Source interface {
	GetDecoder(requestID string) Decoder
}

type RegistryOptions struct {
	// MaxRequests bounds how many per-request decoders are kept.
	MaxRequests int64
	// TTL is how long a decoder outlives its last lookup.
	TTL time.Duration
}

// Registry keeps one decoder per request id so that deferred values created by
// the same request share resolved references.
//
// Eviction is best-effort: a decoder pushed out under pressure is rebuilt on
// the next lookup and only its reference cache is lost. Decoders the cache
// refuses to admit are kept in a side map until their TTL runs out.
type Registry struct {
	store objstore.Store
	ttl   time.Duration
	now   func() time.Time

	cache *ristretto.Cache[string, *decoder]

	mu       sync.Mutex // guards misses
	fallback map[string]fallbackDecoder
}

type fallbackDecoder struct {
	d       *decoder
	expires time.Time
}

func NewRegistry(store objstore.Store, opts RegistryOptions) (*Registry, error) {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *decoder]{
		NumCounters:        opts.MaxRequests * 10,
		MaxCost:            opts.MaxRequests,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder cache: %w", err)
	}
	return &Registry{
		store:    store,
		ttl:      opts.TTL,
		now:      time.Now,
		cache:    cache,
		fallback: make(map[string]fallbackDecoder),
	}, nil
}

func (r *Registry) GetDecoder(requestID string) Decoder {
	if d, ok := r.cache.Get(requestID); ok {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, f := range r.fallback {
		if now.After(f.expires) {
			delete(r.fallback, id)
		}
	}
	if f, ok := r.fallback[requestID]; ok {
		f.expires = now.Add(r.ttl)
		r.fallback[requestID] = f
		return f.d
	}
	if d, ok := r.cache.Get(requestID); ok {
		return d
	}

	d := newDecoder(requestID, r.store)
	if r.cache.SetWithTTL(requestID, d, 1, r.ttl) {
		// admission is decided once the buffered write is applied
		r.cache.Wait()
		if got, ok := r.cache.Get(requestID); ok && got == d {
			return d
		}
	}
	r.fallback[requestID] = fallbackDecoder{d: d, expires: now.Add(r.ttl)}
	return d
}

func (r *Registry) Close() {
	r.cache.Close()
}
