package rows

import (
	"errors"
	"fmt"

	"github.com/acksell/ddbrows/rows/dataformat"
)

var (
	// ErrSchema means neither introspection path could list an entity's attributes.
	ErrSchema = errors.New("schema error")
	// ErrLoad means the object store failed to return a table's objects.
	ErrLoad = errors.New("load error")
	// ErrBuild means the tuple builder rejected the request.
	ErrBuild = errors.New("build error")
	// ErrFunction means a computed column failed.
	ErrFunction = errors.New("function error")
	// ErrDecode means a value could not be decoded. Deferred values report it when forced.
	ErrDecode = dataformat.ErrDecode
)

// PhaseError identifies the phase, and the table when known, a request failed in.
type PhaseError struct {
	Phase string
	Table string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: table %s: %v", e.Phase, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
