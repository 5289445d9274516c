package transit

import "fmt"

// arena is the staging storage of one variable-length column: a contiguous
// block carved into fixed-width slots, one per row, plus a length indicator
// per slot (-1 marks NULL). The slot width is monotonically non-decreasing
// within the arena's lifetime; growth goes through grow, never through a
// destructive reallocation.
type arena struct {
	alloc   *Allocator
	rows    int
	width   int
	data    []byte
	lengths []int32
	filled  int
}

func newArena(alloc *Allocator, rows, width int) (*arena, error) {
	if width < 1 {
		width = 1
	}

	data, err := alloc.Grab(rows * width)
	if err != nil {
		return nil, fmt.Errorf("arena storage (%d rows x %d bytes): %w", rows, width, err)
	}

	return &arena{
		alloc:   alloc,
		rows:    rows,
		width:   width,
		data:    data,
		lengths: make([]int32, rows),
	}, nil
}

func (ar *arena) set(value []byte) error {
	if len(value) > ar.width {
		return fmt.Errorf("value of %d bytes in %d-byte slot: %w", len(value), ar.width, ErrInvariantViolation)
	}

	copy(ar.data[ar.filled*ar.width:], value)
	ar.lengths[ar.filled] = int32(len(value))
	ar.filled++

	return nil
}

func (ar *arena) setNull() {
	ar.lengths[ar.filled] = -1
	ar.filled++
}

// get returns the staged value of a filled slot and whether it is non-NULL.
// The returned slice aliases arena storage and is invalidated by reset and
// grow.
func (ar *arena) get(row int) ([]byte, bool) {
	if ar.lengths[row] < 0 {
		return nil, false
	}

	off := row * ar.width

	return ar.data[off : off+int(ar.lengths[row])], true
}

// grow rebinds the arena to wider slots. Every already filled slot is
// copied into the new storage before the old block is released; skipping
// that copy silently corrupts prior rows, so treat this ordering as load
// bearing.
func (ar *arena) grow(newWidth int) error {
	if newWidth <= ar.width {
		return nil
	}

	data, err := ar.alloc.Grab(ar.rows * newWidth)
	if err != nil {
		return fmt.Errorf("arena regrow to %d-byte slots: %w", newWidth, err)
	}

	for row := 0; row < ar.filled; row++ {
		if ar.lengths[row] < 0 {
			continue
		}

		copy(data[row*newWidth:], ar.data[row*ar.width:row*ar.width+int(ar.lengths[row])])
	}

	ar.alloc.Return(ar.rows * ar.width)
	ar.data = data
	ar.width = newWidth

	return nil
}

func (ar *arena) reset() { ar.filled = 0 }

func (ar *arena) release() {
	ar.alloc.Return(ar.rows * ar.width)
	ar.data = nil
	ar.filled = 0
}
