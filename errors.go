package arrowodbc

import (
	"errors"
	"strings"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
	"github.com/arrowodbc/arrow-odbc-go/internal/transit"
)

var (
	// ErrTruncation reports that a fetched value exceeded the width the
	// driver declared for its column.
	ErrTruncation = transit.ErrTruncation

	// ErrAllocation reports a failed transit slot allocation under
	// fallible allocation mode.
	ErrAllocation = transit.ErrAllocation

	// ErrUnsupportedType reports an Arrow type with no insertion mapping.
	ErrUnsupportedType = mapping.ErrUnsupportedType

	// ErrInvariantViolation reports API misuse, such as committing into a
	// full buffer.
	ErrInvariantViolation = transit.ErrInvariantViolation

	// ErrMalformedDescriptor reports a connection descriptor that does
	// not parse as key=value pairs.
	ErrMalformedDescriptor = errors.New("malformed connection descriptor")

	// ErrConnectionConsumed reports use of a connection whose ownership
	// has already moved into a reader, a writer, or a release.
	ErrConnectionConsumed = errors.New("connection already consumed")

	// ErrSchemaMismatch reports a batch whose schema differs from the
	// one the writer was constructed with.
	ErrSchemaMismatch = errors.New("batch schema differs from writer schema")
)

// Diagnostics renders the cause chain of err as one record per layer,
// outermost first. Each record carries only the message its layer added.
// At most max records are returned; a longer chain is cut with a trailing
// omission note. Non-positive max means no bound.
func Diagnostics(err error, max int) []string {
	var out []string

	for err != nil {
		if max > 0 && len(out) == max {
			out = append(out, "further diagnostics omitted")

			break
		}

		out = append(out, layerMessage(err))
		err = errors.Unwrap(err)
	}

	return out
}

// layerMessage strips the rendering of the wrapped cause from one layer's
// message, leaving the part the layer itself contributed. Layers that do
// not embed their cause's message keep it whole.
func layerMessage(err error) string {
	msg := err.Error()

	inner := errors.Unwrap(err)
	if inner == nil {
		return msg
	}

	if trimmed := strings.TrimSuffix(msg, inner.Error()); trimmed != msg {
		return strings.TrimSuffix(trimmed, ": ")
	}

	return msg
}

// diagnosticLimitError caps how much of a cause chain one error message
// renders. The full chain stays reachable for errors.Is and errors.As.
type diagnosticLimitError struct {
	err error
	max int
}

func (e *diagnosticLimitError) Error() string {
	return strings.Join(Diagnostics(e.err, e.max), ": ")
}

func (e *diagnosticLimitError) Unwrap() error { return e.err }

// boundDiagnostics applies a session's diagnostic record bound to err.
// Chains that fit inside the bound pass through untouched.
func boundDiagnostics(err error, max int) error {
	if err == nil || max < 1 {
		return err
	}

	depth := 0
	for cause := err; cause != nil; cause = errors.Unwrap(cause) {
		depth++
		if depth > max {
			return &diagnosticLimitError{err: err, max: max}
		}
	}

	return err
}
