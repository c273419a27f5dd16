// Package rows materializes relational-style rows from the objects of a
// key/value store: it loads the objects of every selected entity, combines them
// into products that satisfy the criteria and projects the requested columns.
package rows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/acksell/ddbrows/rows/criteria"
	"github.com/acksell/ddbrows/rows/dataformat"
	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/acksell/ddbrows/rows/tuples"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Request describes one materialization.
type Request struct {
	Selectables []model.Selectable
	Criteria    []criteria.Criterion
	Hints       []model.Hint
	OrderBy     []tuples.OrderBy
	// RequestID correlates store and decoder calls. One is generated when empty.
	RequestID string
}

type Materializer struct {
	store    objstore.Store
	builder  tuples.Builder
	decoders dataformat.Source
	observer instrument.Observer
	logger   *slog.Logger
	pool     *ants.Pool
	now      func() time.Time

	ownedRegistry *dataformat.Registry
}

type Option func(*Materializer)

// WithBuilder replaces the default Cartesian tuple builder.
func WithBuilder(b tuples.Builder) Option {
	return func(m *Materializer) { m.builder = b }
}

func WithDecoders(s dataformat.Source) Option {
	return func(m *Materializer) { m.decoders = s }
}

func WithObserver(o instrument.Observer) Option {
	return func(m *Materializer) { m.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

// WithLoadPool loads the objects of different entities concurrently on pool.
func WithLoadPool(p *ants.Pool) Option {
	return func(m *Materializer) { m.pool = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

func New(store objstore.Store, opts ...Option) (*Materializer, error) {
	m := &Materializer{
		store:   store,
		builder: tuples.Cartesian{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.observer == nil {
		m.observer = instrument.NewLogObserver(m.logger)
	}
	if m.decoders == nil {
		reg, err := dataformat.NewRegistry(store, dataformat.RegistryOptions{})
		if err != nil {
			return nil, err
		}
		m.decoders = reg
		m.ownedRegistry = reg
	}
	return m, nil
}

// Close releases the decoder registry created by New.
func (m *Materializer) Close() {
	if m.ownedRegistry != nil {
		m.ownedRegistry.Close()
	}
}

// Decoders returns the source deferred values are decoded with.
func (m *Materializer) Decoders() dataformat.Source {
	return m.decoders
}

// Construct runs the request and returns one entry per row. A row is a
// []lazy.Value with one value per visible selectable, or a single lazy.Value
// when exactly one column is visible. When any visible selectable is a function,
// the result is a single []any row of eagerly decoded values, flattened the same way.
func (m *Materializer) Construct(ctx context.Context, req Request) ([]any, error) {
	timer := instrument.NewTimer(m.now)
	requestID := req.RequestID
	if requestID == "" {
		requestID = NewRequestID()
	}
	logger := m.logger.With("request_id", requestID)

	p, err := resolve(req.Selectables, logger)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "resolved selectables", "labels", p.labels, "columns", p.columns)
	timer.Mark()

	collections, err := m.load(ctx, p, req.Hints, requestID, logger)
	if err != nil {
		return nil, err
	}
	timer.Mark()

	meta := &tuples.Metadata{}
	products, err := m.builder.Build(ctx, tuples.Input{
		Collections: collections,
		Labels:      p.labels,
		Criteria:    req.Criteria,
		Hints:       req.Hints,
		OrderBy:     req.OrderBy,
		Metadata:    meta,
	})
	if err != nil {
		return nil, &PhaseError{Phase: instrument.BuildingTuples, Err: fmt.Errorf("%w: %w", ErrBuild, err)}
	}
	timer.Mark()

	rows := extract(products, p)
	timer.Mark()

	showable := showableSelection(req.Selectables)
	timer.Mark()

	final, err := m.project(ctx, rows, req.Selectables, showable, requestID)
	if err != nil {
		return nil, err
	}
	timer.Mark()

	trace, ok := meta.Trace()
	m.observer.Observe(ctx, timer.Info(requestID, instrument.Describe(trace, ok, selectionStrings(req.Selectables), criteriaStrings(req.Criteria)), len(final)))
	return final, nil
}

// NewRequestID returns a time-based uuid.
func NewRequestID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func selectionStrings(sel []model.Selectable) []string {
	out := make([]string, len(sel))
	for i, s := range sel {
		out[i] = s.String()
	}
	return out
}

func criteriaStrings(crit []criteria.Criterion) []string {
	out := make([]string, len(crit))
	for i, c := range crit {
		out[i] = c.String()
	}
	return out
}
