package transit

import "fmt"

// Allocator hands out the backing storage for transit buffers. In fallible
// mode allocation failures come back as errors instead of aborting the
// process; otherwise a failed allocation is considered unrecoverable by
// design, since continuing would risk corrupting already staged data.
type Allocator struct {
	fallible bool
	limit    uint64 // 0 means no limit
	used     uint64
}

func NewAllocator(fallible bool, limit uint64) *Allocator {
	return &Allocator{fallible: fallible, limit: limit}
}

// Grab allocates n bytes of slot storage.
func (a *Allocator) Grab(n int) (buf []byte, err error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrAllocation)
	}

	if a.fallible {
		if a.limit != 0 && a.used+uint64(n) > a.limit {
			return nil, fmt.Errorf(
				"allocate %d bytes (%d bytes in use, limit %d): %w",
				n, a.used, a.limit, ErrAllocation)
		}

		// A panicking make (absurd slice length from a bogus driver
		// descriptor) is recoverable here, unlike a genuine OOM abort.
		defer func() {
			if r := recover(); r != nil {
				buf, err = nil, fmt.Errorf("allocate %d bytes: %v: %w", n, r, ErrAllocation)
			}
		}()
	}

	buf = make([]byte, n)
	a.used += uint64(n)

	return buf, nil
}

// Return gives back storage obtained from Grab.
func (a *Allocator) Return(n int) {
	if uint64(n) > a.used {
		a.used = 0

		return
	}

	a.used -= uint64(n)
}

// InUse reports the number of bytes currently grabbed.
func (a *Allocator) InUse() uint64 { return a.used }
