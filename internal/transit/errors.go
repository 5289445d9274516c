package transit

import "errors"

var (
	// ErrTruncation reports a value wider than the transit slot bound for
	// its column. Hard error on the read path unless an explicit upper
	// bound was configured for the column class.
	ErrTruncation = errors.New("value truncated")

	// ErrAllocation reports a failed transit buffer allocation. Only
	// surfaced when the buffer runs in fallible-allocation mode.
	ErrAllocation = errors.New("buffer allocation failed")

	// ErrValueOutOfRange reports a fetched value outside the possible
	// range of values for the target type.
	ErrValueOutOfRange = errors.New("value is out of possible range of values for the type")

	// ErrInvariantViolation reports a broken internal invariant, e. g. a
	// row committed twice or a buffer drained mid-row.
	ErrInvariantViolation = errors.New("internal invariant violation")
)
