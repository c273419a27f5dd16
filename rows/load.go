package rows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/parallel"
	"github.com/acksell/ddbrows/rows/record"
)

// load fetches the objects of every entity. collections[i] belongs to p.labels[i]
// whatever order the fetches complete in.
func (m *Materializer) load(ctx context.Context, p plan, hints []model.Hint, requestID string, logger *slog.Logger) ([][]record.Record, error) {
	collections := make([][]record.Record, len(p.entities))
	err := parallel.Run(ctx, m.pool, len(p.entities), func(ctx context.Context, i int) error {
		table := p.labels[i]
		if table == model.NoTable {
			return nil
		}
		lookups := filterHints(p.entities[i], table, hints)
		objs, err := m.store.GetObjects(ctx, table, requestID, lookups)
		if err != nil {
			return &PhaseError{Phase: instrument.LoadingObjects, Table: table, Err: fmt.Errorf("%w: %w", ErrLoad, err)}
		}
		logger.DebugContext(ctx, "loaded objects", "table", table, "lookups", len(lookups), "objects", len(objs))
		collections[i] = objs
		return nil
	})
	if err != nil {
		var pe *PhaseError
		if !errors.As(err, &pe) {
			err = &PhaseError{Phase: instrument.LoadingObjects, Err: fmt.Errorf("%w: %w", ErrLoad, err)}
		}
		return nil, err
	}
	return collections, nil
}
