package flavor

import (
	"errors"

	"github.com/flowprofiler/flowprofiler/internal/flow"
)

// ErrDrop is returned by a parser to indicate the line was well-formed
// but carries a record type the profiler never aggregates (a non-conn
// Zeek log, for instance). It is not logged as a warning: dropping a
// record the format legitimately produces is expected traffic, not an
// error in the input.
var ErrDrop = errors.New("flavor: record dropped by design")

// Parser converts a single raw record of a known flavor into a
// canonical Flow. Returning ErrDrop means the record was well formed
// but is not profiled; any other error means the record was malformed
// and should be logged and skipped.
type Parser interface {
	Parse(raw []byte) (flow.Flow, error)
}

// MapParser converts a pre-parsed record (the Zeek map shape) into a
// canonical Flow.
type MapParser interface {
	ParseMap(rec map[string]any) (flow.Flow, error)
}
