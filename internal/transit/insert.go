package transit

import (
	"fmt"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// BindColumn is the per-column staging area of an insert buffer: Stage
// copies one value out of an Arrow array into the column's own storage,
// Arg materializes the staged value as a driver bind argument.
type BindColumn interface {
	Stage(arr arrow.Array, row int) error
	Arg(row int) any
	Reset()
	Release()
}

type bindPrimitive[T any] struct {
	take   func(arr arrow.Array, row int) (T, error)
	values []T
	valid  []bool
}

func (c *bindPrimitive[T]) Stage(arr arrow.Array, row int) error {
	if arr.IsNull(row) {
		var zero T
		c.values = append(c.values, zero)
		c.valid = append(c.valid, false)

		return nil
	}

	v, err := c.take(arr, row)
	if err != nil {
		return err
	}

	c.values = append(c.values, v)
	c.valid = append(c.valid, true)

	return nil
}

func (c *bindPrimitive[T]) Arg(row int) any {
	if !c.valid[row] {
		return nil
	}

	return c.values[row]
}

func (c *bindPrimitive[T]) Reset() {
	c.values = c.values[:0]
	c.valid = c.valid[:0]
}

func (c *bindPrimitive[T]) Release() {}

func newBindPrimitive[T any](rows int, take func(arr arrow.Array, row int) (T, error)) BindColumn {
	return &bindPrimitive[T]{
		take:   take,
		values: make([]T, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

// bindText stages text renderings in a fixed-slot arena. The slot width
// follows the maximum length observed across all batches, never shrinking;
// growth rebinds the arena with the copy-before-free discipline so rows
// staged before the grow survive it.
type bindText struct {
	ar     *arena
	binary bool
	take   func(arr arrow.Array, row int) ([]byte, error)
}

func newBindText(alloc *Allocator, rows, width int, binary bool, take func(arr arrow.Array, row int) ([]byte, error)) (BindColumn, error) {
	ar, err := newArena(alloc, rows, width)
	if err != nil {
		return nil, err
	}

	return &bindText{ar: ar, binary: binary, take: take}, nil
}

func (c *bindText) Stage(arr arrow.Array, row int) error {
	if arr.IsNull(row) {
		c.ar.setNull()

		return nil
	}

	v, err := c.take(arr, row)
	if err != nil {
		return err
	}

	if len(v) > c.ar.width {
		if err := c.ar.grow(len(v)); err != nil {
			return err
		}
	}

	return c.ar.set(v)
}

func (c *bindText) Arg(row int) any {
	v, ok := c.ar.get(row)
	if !ok {
		return nil
	}

	if c.binary {
		return append([]byte(nil), v...)
	}

	return string(v)
}

func (c *bindText) Reset()   { c.ar.reset() }
func (c *bindText) Release() { c.ar.release() }

func typedArray[A arrow.Array](arr arrow.Array) (A, error) {
	typed, ok := arr.(A)
	if !ok {
		var zero A

		return zero, fmt.Errorf("batch column is %T: %w", arr, ErrInvariantViolation)
	}

	return typed, nil
}

// makeBindColumn builds the staging column for one field of the insertion
// schema.
func makeBindColumn(field arrow.Field, it mapping.InsertType, alloc *Allocator, rows int) (BindColumn, error) {
	switch t := field.Type.(type) {
	case *arrow.BooleanType:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (bool, error) {
			a, err := typedArray[*array.Boolean](arr)
			if err != nil {
				return false, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Int8Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (int8, error) {
			a, err := typedArray[*array.Int8](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Uint8Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (uint8, error) {
			a, err := typedArray[*array.Uint8](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Int16Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (int16, error) {
			a, err := typedArray[*array.Int16](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Int32Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (int32, error) {
			a, err := typedArray[*array.Int32](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Int64Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (int64, error) {
			a, err := typedArray[*array.Int64](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Float16Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (float32, error) {
			a, err := typedArray[*array.Float16](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row).Float32(), nil
		}), nil
	case *arrow.Float32Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (float32, error) {
			a, err := typedArray[*array.Float32](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.Float64Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (float64, error) {
			a, err := typedArray[*array.Float64](arr)
			if err != nil {
				return 0, err
			}

			return a.Value(row), nil
		}), nil
	case *arrow.StringType:
		return newBindText(alloc, rows, defaultSlotWidth, false, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.String](arr)
			if err != nil {
				return nil, err
			}

			return []byte(a.Value(row)), nil
		})
	case *arrow.LargeStringType:
		return newBindText(alloc, rows, defaultSlotWidth, false, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.LargeString](arr)
			if err != nil {
				return nil, err
			}

			return []byte(a.Value(row)), nil
		})
	case *arrow.BinaryType:
		return newBindText(alloc, rows, defaultSlotWidth, true, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.Binary](arr)
			if err != nil {
				return nil, err
			}

			return a.Value(row), nil
		})
	case *arrow.LargeBinaryType:
		return newBindText(alloc, rows, defaultSlotWidth, true, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.LargeBinary](arr)
			if err != nil {
				return nil, err
			}

			return a.Value(row), nil
		})
	case *arrow.FixedSizeBinaryType:
		return newBindText(alloc, rows, t.ByteWidth, true, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.FixedSizeBinary](arr)
			if err != nil {
				return nil, err
			}

			return a.Value(row), nil
		})
	case *arrow.Decimal128Type:
		// Decimals travel as text sized for sign, digits and radix
		// character; the slot is pre-sized so growth never triggers.
		return newBindText(alloc, rows, int(it.Size), false, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.Decimal128](arr)
			if err != nil {
				return nil, err
			}

			return []byte(a.Value(row).ToString(t.Scale)), nil
		})
	case *arrow.Date32Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (time.Time, error) {
			a, err := typedArray[*array.Date32](arr)
			if err != nil {
				return time.Time{}, err
			}

			return a.Value(row).ToTime(), nil
		}), nil
	case *arrow.Date64Type:
		return newBindPrimitive(rows, func(arr arrow.Array, row int) (time.Time, error) {
			a, err := typedArray[*array.Date64](arr)
			if err != nil {
				return time.Time{}, err
			}

			return a.Value(row).ToTime(), nil
		}), nil
	case *arrow.Time32Type:
		digits := it.Scale

		return newBindText(alloc, rows, timeTextWidth(digits), false, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.Time32](arr)
			if err != nil {
				return nil, err
			}

			return formatTimeOfDay(a.Value(row).ToTime(t.Unit), digits), nil
		})
	case *arrow.Time64Type:
		digits := it.Scale

		return newBindText(alloc, rows, timeTextWidth(digits), false, func(arr arrow.Array, row int) ([]byte, error) {
			a, err := typedArray[*array.Time64](arr)
			if err != nil {
				return nil, err
			}

			return formatTimeOfDay(a.Value(row).ToTime(t.Unit), digits), nil
		})
	case *arrow.TimestampType:
		if t.TimeZone != "" {
			digits := it.Scale
			loc, err := t.GetZone()
			if err != nil {
				return nil, fmt.Errorf("resolve time zone %q: %w", t.TimeZone, err)
			}

			return newBindText(alloc, rows, int(it.Size), false, func(arr arrow.Array, row int) ([]byte, error) {
				a, err := typedArray[*array.Timestamp](arr)
				if err != nil {
					return nil, err
				}

				return formatZonedTimestamp(a.Value(row).ToTime(t.Unit).In(loc), digits), nil
			})
		}

		return newBindPrimitive(rows, func(arr arrow.Array, row int) (time.Time, error) {
			a, err := typedArray[*array.Timestamp](arr)
			if err != nil {
				return time.Time{}, err
			}

			return a.Value(row).ToTime(t.Unit), nil
		}), nil
	default:
		return nil, fmt.Errorf("arrow type %s of column %q: %w", field.Type, field.Name, mapping.ErrUnsupportedType)
	}
}

func timeTextWidth(digits int32) int {
	const clock = 8 // "HH:MM:SS"

	if digits > 0 {
		return clock + 1 + int(digits)
	}

	return clock
}

func formatTimeOfDay(t time.Time, digits int32) []byte {
	return []byte(t.Format(clockLayout(digits)))
}

func formatZonedTimestamp(t time.Time, digits int32) []byte {
	return []byte(t.Format("2006-01-02 " + clockLayout(digits) + "-07:00"))
}

func clockLayout(digits int32) string {
	layout := "15:04:05"
	if digits > 0 {
		layout += "." + "000000000"[:digits]
	}

	return layout
}

// InsertBuffer is the transit buffer of one writer: it stages rows taken
// from incoming batches until a full chunk is ready for transmission.
type InsertBuffer struct {
	cols     []BindColumn
	alloc    *Allocator
	rows     int
	capacity int
}

// NewInsertBuffer sizes an insert buffer for chunkSize rows of the given
// insertion schema.
func NewInsertBuffer(schema *arrow.Schema, types []mapping.InsertType, chunkSize int, fallible bool) (*InsertBuffer, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size %d: %w", chunkSize, ErrInvariantViolation)
	}

	alloc := NewAllocator(fallible, 0)

	b := &InsertBuffer{alloc: alloc, capacity: chunkSize}

	for i, field := range schema.Fields() {
		col, err := makeBindColumn(field, types[i], alloc, chunkSize)
		if err != nil {
			b.Release()

			return nil, fmt.Errorf("make bind column %q: %w", field.Name, err)
		}

		b.cols = append(b.cols, col)
	}

	return b, nil
}

// StageRow copies one record row into the staging columns.
func (b *InsertBuffer) StageRow(rec arrow.Record, row int) error {
	if b.rows == b.capacity {
		return fmt.Errorf("stage into a full insert buffer: %w", ErrInvariantViolation)
	}

	for i, col := range b.cols {
		if err := col.Stage(rec.Column(i), row); err != nil {
			return fmt.Errorf("stage column %q: %w", rec.ColumnName(i), err)
		}
	}

	b.rows++

	return nil
}

// Full reports whether a complete chunk is staged.
func (b *InsertBuffer) Full() bool { return b.rows == b.capacity }

// Rows reports the number of currently staged rows.
func (b *InsertBuffer) Rows() int { return b.rows }

// Capacity reports the chunk size.
func (b *InsertBuffer) Capacity() int { return b.capacity }

// Args materializes the staged rows as a row-major bind argument list.
func (b *InsertBuffer) Args() []any {
	args := make([]any, 0, b.rows*len(b.cols))

	for row := 0; row < b.rows; row++ {
		for _, col := range b.cols {
			args = append(args, col.Arg(row))
		}
	}

	return args
}

// Reset clears the staged rows while keeping the slot storage, including
// any width the columns have grown to.
func (b *InsertBuffer) Reset() {
	for _, col := range b.cols {
		col.Reset()
	}

	b.rows = 0
}

// Release frees the slot storage.
func (b *InsertBuffer) Release() {
	for _, col := range b.cols {
		col.Release()
	}

	b.cols = nil
}
