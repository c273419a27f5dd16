// Package dataformat decodes the simplified values objects are stored with back
// into domain values.
//
// A simplified value is a map carrying a "simplify_strategy" key:
//
//	{"simplify_strategy": "datetime", "value": "2016-01-02T15:04:05", "timezone": "UTC"}
//	{"simplify_strategy": "json", "value": "{\"a\": 1}"}
//	{"simplify_strategy": "reference", "table": "service", "id": 1}
//
// Maps carrying a "timezone" key are datetimes even without a strategy.
// Other maps and lists are decoded element by element.
package dataformat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/acksell/ddbrows/rows/record"
)

var ErrDecode = errors.New("decode failed")

const (
	StrategyKey       = "simplify_strategy"
	StrategyDatetime  = "datetime"
	StrategyJSON      = "json"
	StrategyReference = "reference"

	TimezoneKey = "timezone"
)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Decoder turns a stored value into its domain value.
type Decoder interface {
	Desimplify(ctx context.Context, v any) (any, error)
}

// IsDecodedMarker reports whether v is a datetime map that is decoded eagerly.
// Loaded objects (record.Map) are never markers, whatever attributes they carry.
func IsDecodedMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, has := m[TimezoneKey]
	return has
}

// decoder is bound to one request. References it resolves are cached for the
// lifetime of the decoder.
type decoder struct {
	requestID string
	store     objstore.Store

	mu   sync.Mutex
	refs map[string]*reference
}

type reference struct {
	once sync.Once
	val  any
	err  error
}

func newDecoder(requestID string, store objstore.Store) *decoder {
	return &decoder{requestID: requestID, store: store, refs: map[string]*reference{}}
}

func (d *decoder) Desimplify(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return d.desimplifyMap(ctx, t)
	case record.Map:
		// an object's own attributes are never a strategy payload
		return d.desimplifyFields(ctx, t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			dv, err := d.Desimplify(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	}
	return v, nil
}

func (d *decoder) desimplifyMap(ctx context.Context, m map[string]any) (any, error) {
	strategy, hasStrategy := m[StrategyKey]
	if !hasStrategy {
		if _, ok := m[TimezoneKey]; ok {
			strategy, hasStrategy = StrategyDatetime, true
		}
	}
	if hasStrategy {
		switch strategy {
		case StrategyDatetime:
			return decodeDatetime(m)
		case StrategyJSON:
			return decodeJSON(m)
		case StrategyReference:
			return d.resolve(ctx, m)
		}
		return nil, fmt.Errorf("unknown strategy %v: %w", strategy, ErrDecode)
	}
	return d.desimplifyFields(ctx, m)
}

func (d *decoder) desimplifyFields(ctx context.Context, m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, e := range m {
		dv, err := d.Desimplify(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

func decodeDatetime(m map[string]any) (time.Time, error) {
	loc := time.UTC
	if tz, ok := m[TimezoneKey].(string); ok && tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("timezone %q: %v: %w", tz, err, ErrDecode)
		}
		loc = l
	}
	raw, ok := m["value"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("datetime value must be a string, got %T: %w", m["value"], ErrDecode)
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("datetime %q: %w", raw, ErrDecode)
}

func decodeJSON(m map[string]any) (any, error) {
	raw, ok := m["value"].(string)
	if !ok {
		return nil, fmt.Errorf("json value must be a string, got %T: %w", m["value"], ErrDecode)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("json value: %v: %w", err, ErrDecode)
	}
	return v, nil
}

// resolve loads the referenced object once per decoder. A missing object decodes to nil.
func (d *decoder) resolve(ctx context.Context, m map[string]any) (any, error) {
	table, _ := m["table"].(string)
	id, hasID := m["id"]
	if table == "" || !hasID {
		return nil, fmt.Errorf("reference needs table and id: %w", ErrDecode)
	}
	if d.store == nil {
		return nil, fmt.Errorf("reference %s/%v: no object store: %w", table, id, ErrDecode)
	}
	key := table + "/" + criteria.HashKey(id)
	d.mu.Lock()
	ref, ok := d.refs[key]
	if !ok {
		ref = &reference{}
		d.refs[key] = ref
	}
	d.mu.Unlock()

	ref.once.Do(func() {
		objs, err := d.store.GetObjects(ctx, table, d.requestID, []model.Lookup{{Attribute: model.PrimaryKey, Value: id}})
		if err != nil {
			ref.err = fmt.Errorf("reference %s/%v: %v: %w", table, id, err, ErrDecode)
			return
		}
		if len(objs) > 0 {
			ref.val = objs[0]
		}
	})
	return ref.val, ref.err
}
