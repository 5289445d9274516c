package transit

import (
	"database/sql"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/decimal128"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// Column is the per-column staging area of a fetch buffer. The driver scans
// each row into Acceptor, Commit moves the accepted value into the column's
// own storage (drivers are free to reuse scan destinations between rows),
// and AppendTo drains the staged rows into an Arrow builder.
type Column interface {
	Acceptor() any
	Commit() error
	AppendTo(b array.Builder) error
	Reset()
	Release()
}

// primitiveColumn stages fixed-width values. The take/put closures carry
// the acceptor decoding and the builder dispatch for the concrete type,
// mirroring the acceptor/appender pairs the row transformers are built
// from.
type primitiveColumn[T any] struct {
	acc    any
	take   func() (T, bool, error)
	put    func(b array.Builder, v T)
	values []T
	valid  []bool
}

func (c *primitiveColumn[T]) Acceptor() any { return c.acc }

func (c *primitiveColumn[T]) Commit() error {
	v, ok, err := c.take()
	if err != nil {
		return err
	}

	c.values = append(c.values, v)
	c.valid = append(c.valid, ok)

	return nil
}

func (c *primitiveColumn[T]) AppendTo(b array.Builder) error {
	for i, v := range c.values {
		if !c.valid[i] {
			b.AppendNull()

			continue
		}

		c.put(b, v)
	}

	return nil
}

func (c *primitiveColumn[T]) Reset() {
	c.values = c.values[:0]
	c.valid = c.valid[:0]
}

func (c *primitiveColumn[T]) Release() {}

func newIntegerColumn[T int8 | int16 | int32 | int64 | uint8](rows int, lo, hi int64, put func(b array.Builder, v T)) Column {
	acc := &sql.NullInt64{}

	return &primitiveColumn[T]{
		acc: acc,
		take: func() (T, bool, error) {
			if !acc.Valid {
				return 0, false, nil
			}

			if acc.Int64 < lo || acc.Int64 > hi {
				return 0, false, fmt.Errorf("integer value %d: %w", acc.Int64, ErrValueOutOfRange)
			}

			return T(acc.Int64), true, nil
		},
		put:    put,
		values: make([]T, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newBoolColumn(rows int) Column {
	acc := &sql.NullBool{}

	return &primitiveColumn[bool]{
		acc: acc,
		take: func() (bool, bool, error) {
			return acc.Bool, acc.Valid, nil
		},
		put:    func(b array.Builder, v bool) { b.(*array.BooleanBuilder).Append(v) },
		values: make([]bool, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newFloatColumn[T float32 | float64](rows int, put func(b array.Builder, v T)) Column {
	acc := &sql.NullFloat64{}

	return &primitiveColumn[T]{
		acc: acc,
		take: func() (T, bool, error) {
			return T(acc.Float64), acc.Valid, nil
		},
		put:    put,
		values: make([]T, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newDate32Column(rows int) Column {
	acc := &sql.NullTime{}

	return &primitiveColumn[arrow.Date32]{
		acc: acc,
		take: func() (arrow.Date32, bool, error) {
			return arrow.Date32FromTime(acc.Time), acc.Valid, nil
		},
		put:    func(b array.Builder, v arrow.Date32) { b.(*array.Date32Builder).Append(v) },
		values: make([]arrow.Date32, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newTime32Column(rows int, unit arrow.TimeUnit) Column {
	acc := &sql.NullTime{}

	return &primitiveColumn[arrow.Time32]{
		acc: acc,
		take: func() (arrow.Time32, bool, error) {
			return arrow.Time32(timeOfDay(acc.Time, unit)), acc.Valid, nil
		},
		put:    func(b array.Builder, v arrow.Time32) { b.(*array.Time32Builder).Append(v) },
		values: make([]arrow.Time32, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newTime64Column(rows int, unit arrow.TimeUnit) Column {
	acc := &sql.NullTime{}

	return &primitiveColumn[arrow.Time64]{
		acc: acc,
		take: func() (arrow.Time64, bool, error) {
			return arrow.Time64(timeOfDay(acc.Time, unit)), acc.Valid, nil
		},
		put:    func(b array.Builder, v arrow.Time64) { b.(*array.Time64Builder).Append(v) },
		values: make([]arrow.Time64, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

// timeOfDay projects a wall-clock instant onto elapsed units since
// midnight of the same day.
func timeOfDay(t time.Time, unit arrow.TimeUnit) int64 {
	secs := int64(t.Hour())*3600 + int64(t.Minute())*60 + int64(t.Second())

	switch unit {
	case arrow.Second:
		return secs
	case arrow.Millisecond:
		return secs*1_000 + int64(t.Nanosecond())/1_000_000
	case arrow.Microsecond:
		return secs*1_000_000 + int64(t.Nanosecond())/1_000
	default:
		return secs*1_000_000_000 + int64(t.Nanosecond())
	}
}

func newTimestampColumn(rows int, unit arrow.TimeUnit) Column {
	acc := &sql.NullTime{}

	return &primitiveColumn[arrow.Timestamp]{
		acc: acc,
		take: func() (arrow.Timestamp, bool, error) {
			if !acc.Valid {
				return 0, false, nil
			}

			var v int64

			switch unit {
			case arrow.Second:
				v = acc.Time.Unix()
			case arrow.Millisecond:
				v = acc.Time.UnixMilli()
			case arrow.Microsecond:
				v = acc.Time.UnixMicro()
			default:
				v = acc.Time.UnixNano()
			}

			return arrow.Timestamp(v), true, nil
		},
		put:    func(b array.Builder, v arrow.Timestamp) { b.(*array.TimestampBuilder).Append(v) },
		values: make([]arrow.Timestamp, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

func newDecimalColumn(rows int, prec, scale int32) Column {
	acc := &sql.NullString{}

	return &primitiveColumn[decimal128.Num]{
		acc: acc,
		take: func() (decimal128.Num, bool, error) {
			if !acc.Valid {
				return decimal128.Num{}, false, nil
			}

			n, err := decimal128.FromString(acc.String, prec, scale)
			if err != nil {
				return decimal128.Num{}, false, fmt.Errorf("parse decimal %q: %w", acc.String, err)
			}

			return n, true, nil
		},
		put:    func(b array.Builder, v decimal128.Num) { b.(*array.Decimal128Builder).Append(v) },
		values: make([]decimal128.Num, 0, rows),
		valid:  make([]bool, 0, rows),
	}
}

// textColumn stages variable-length text in a fixed-slot arena. The slot
// width starts at the driver-reported column size; values wider than the
// slot are a truncation error when the width is trusted, are silently cut
// at an explicitly configured bound, and trigger an arena regrow when the
// driver reported no usable length at all.
type textColumn struct {
	acc     sql.NullString
	ar      *arena
	name    string
	bounded bool
	known   bool
}

func newTextColumn(alloc *Allocator, rows int, desc mapping.Descriptor, maxSize int) (Column, error) {
	width, bounded, known := textSlotWidth(desc, maxSize)

	ar, err := newArena(alloc, rows, width)
	if err != nil {
		return nil, err
	}

	return &textColumn{ar: ar, name: desc.Name, bounded: bounded, known: known}, nil
}

// textSlotWidth resolves the slot width of a text column from the
// descriptor and the configured bound alone, before any storage exists.
func textSlotWidth(desc mapping.Descriptor, maxSize int) (width int, bounded, known bool) {
	width = int(desc.Precision)
	if desc.Wide {
		// Wide-encoded payload re-encodes into at most four bytes per
		// reported character.
		width *= 4
	}

	known = width > 0
	if !known {
		width = defaultSlotWidth
	}

	bounded = maxSize > 0
	if bounded && (width > maxSize || !known) {
		width = maxSize
	}

	return width, bounded, known
}

const defaultSlotWidth = 256

func (c *textColumn) Acceptor() any { return &c.acc }

func (c *textColumn) Commit() error {
	if !c.acc.Valid {
		c.ar.setNull()

		return nil
	}

	value := []byte(c.acc.String)

	if len(value) > c.ar.width {
		switch {
		case c.bounded:
			value = truncateText(value, c.ar.width)
		case c.known:
			return fmt.Errorf(
				"text value of %d bytes exceeds the %d byte slot of column %q, consider an explicit max text size: %w",
				len(value), c.ar.width, c.name, ErrTruncation)
		default:
			if err := c.ar.grow(len(value)); err != nil {
				return err
			}
		}
	}

	return c.ar.set(value)
}

// truncateText cuts a UTF-8 payload at the widest rune boundary not past
// the bound, so a cut never produces mangled text.
func truncateText(value []byte, bound int) []byte {
	cut := bound
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}

	return value[:cut]
}

func (c *textColumn) AppendTo(b array.Builder) error {
	bldr, ok := b.(*array.StringBuilder)
	if !ok {
		return fmt.Errorf("text column %q drained into %T: %w", c.name, b, ErrInvariantViolation)
	}

	for row := 0; row < c.ar.filled; row++ {
		v, ok := c.ar.get(row)
		if !ok {
			bldr.AppendNull()

			continue
		}

		bldr.Append(string(v))
	}

	return nil
}

func (c *textColumn) Reset()   { c.ar.reset() }
func (c *textColumn) Release() { c.ar.release() }

// binaryColumn stages variable or fixed size binary payload in an arena.
type binaryColumn struct {
	acc     []byte
	ar      *arena
	name    string
	fixed   int // > 0 for fixed-size binary targets
	bounded bool
	known   bool
}

func newBinaryColumn(alloc *Allocator, rows int, desc mapping.Descriptor, maxSize, fixed int) (Column, error) {
	width, bounded, known := binarySlotWidth(desc, maxSize, fixed)

	ar, err := newArena(alloc, rows, width)
	if err != nil {
		return nil, err
	}

	return &binaryColumn{ar: ar, name: desc.Name, fixed: fixed, bounded: bounded, known: known}, nil
}

// binarySlotWidth resolves the slot width of a binary column from the
// descriptor and the configured bound alone, before any storage exists.
func binarySlotWidth(desc mapping.Descriptor, maxSize, fixed int) (width int, bounded, known bool) {
	width = int(desc.Precision)

	known = width > 0
	if !known {
		width = defaultSlotWidth
	}

	if fixed > 0 {
		width, known = fixed, true
	}

	bounded = maxSize > 0 && fixed == 0
	if bounded && (width > maxSize || !known) {
		width = maxSize
	}

	return width, bounded, known
}

func (c *binaryColumn) Acceptor() any { return &c.acc }

func (c *binaryColumn) Commit() error {
	if c.acc == nil {
		c.ar.setNull()

		return nil
	}

	value := c.acc

	if len(value) > c.ar.width {
		switch {
		case c.bounded:
			value = value[:c.ar.width]
		case c.known:
			return fmt.Errorf(
				"binary value of %d bytes exceeds the %d byte slot of column %q, consider an explicit max binary size: %w",
				len(value), c.ar.width, c.name, ErrTruncation)
		default:
			if err := c.ar.grow(len(value)); err != nil {
				return err
			}
		}
	}

	return c.ar.set(value)
}

func (c *binaryColumn) AppendTo(b array.Builder) error {
	for row := 0; row < c.ar.filled; row++ {
		v, ok := c.ar.get(row)
		if !ok {
			b.AppendNull()

			continue
		}

		switch bldr := b.(type) {
		case *array.BinaryBuilder:
			bldr.Append(v)
		case *array.FixedSizeBinaryBuilder:
			// Fixed-size slots are zero padded on the right.
			padded := make([]byte, c.fixed)
			copy(padded, v)
			bldr.Append(padded)
		default:
			return fmt.Errorf("binary column %q drained into %T: %w", c.name, b, ErrInvariantViolation)
		}
	}

	return nil
}

func (c *binaryColumn) Reset()   { c.ar.reset() }
func (c *binaryColumn) Release() { c.ar.release() }

// rowFootprint is the transit storage cost of one row in one column,
// derived from the target type and the descriptor alone so the byte
// ceiling can shrink the row capacity before anything is allocated.
func rowFootprint(field arrow.Field, desc mapping.Descriptor, opts Options) (uint64, error) {
	switch t := field.Type.(type) {
	case *arrow.BooleanType, *arrow.Int8Type, *arrow.Uint8Type:
		return 1, nil
	case *arrow.Int16Type:
		return 2, nil
	case *arrow.Int32Type, *arrow.Float32Type, *arrow.Date32Type, *arrow.Time32Type:
		return 4, nil
	case *arrow.Int64Type, *arrow.Float64Type, *arrow.Time64Type, *arrow.TimestampType:
		return 8, nil
	case *arrow.Decimal128Type:
		return 16, nil
	case *arrow.StringType:
		width, _, _ := textSlotWidth(desc, opts.MaxTextSize)

		return uint64(width), nil
	case *arrow.BinaryType:
		width, _, _ := binarySlotWidth(desc, opts.MaxBinarySize, 0)

		return uint64(width), nil
	case *arrow.FixedSizeBinaryType:
		width, _, _ := binarySlotWidth(desc, opts.MaxBinarySize, t.ByteWidth)

		return uint64(width), nil
	default:
		return 0, fmt.Errorf("target type %s of column %q: %w", field.Type, field.Name, mapping.ErrUnsupportedType)
	}
}

// makeColumn builds the staging column for one field of the target schema.
// The target Arrow type drives the representation so that caller-supplied
// schema overrides transparently change the staging strategy.
func makeColumn(field arrow.Field, desc mapping.Descriptor, opts Options, alloc *Allocator, rows int) (Column, error) {
	switch t := field.Type.(type) {
	case *arrow.BooleanType:
		return newBoolColumn(rows), nil
	case *arrow.Int8Type:
		return newIntegerColumn[int8](rows, math.MinInt8, math.MaxInt8,
			func(b array.Builder, v int8) { b.(*array.Int8Builder).Append(v) }), nil
	case *arrow.Uint8Type:
		return newIntegerColumn[uint8](rows, 0, math.MaxUint8,
			func(b array.Builder, v uint8) { b.(*array.Uint8Builder).Append(v) }), nil
	case *arrow.Int16Type:
		return newIntegerColumn[int16](rows, math.MinInt16, math.MaxInt16,
			func(b array.Builder, v int16) { b.(*array.Int16Builder).Append(v) }), nil
	case *arrow.Int32Type:
		return newIntegerColumn[int32](rows, math.MinInt32, math.MaxInt32,
			func(b array.Builder, v int32) { b.(*array.Int32Builder).Append(v) }), nil
	case *arrow.Int64Type:
		return newIntegerColumn[int64](rows, math.MinInt64, math.MaxInt64,
			func(b array.Builder, v int64) { b.(*array.Int64Builder).Append(v) }), nil
	case *arrow.Float32Type:
		return newFloatColumn[float32](rows,
			func(b array.Builder, v float32) { b.(*array.Float32Builder).Append(v) }), nil
	case *arrow.Float64Type:
		return newFloatColumn[float64](rows,
			func(b array.Builder, v float64) { b.(*array.Float64Builder).Append(v) }), nil
	case *arrow.Decimal128Type:
		return newDecimalColumn(rows, t.Precision, t.Scale), nil
	case *arrow.Date32Type:
		return newDate32Column(rows), nil
	case *arrow.Time32Type:
		return newTime32Column(rows, t.Unit), nil
	case *arrow.Time64Type:
		return newTime64Column(rows, t.Unit), nil
	case *arrow.TimestampType:
		return newTimestampColumn(rows, t.Unit), nil
	case *arrow.StringType:
		return newTextColumn(alloc, rows, desc, opts.MaxTextSize)
	case *arrow.BinaryType:
		return newBinaryColumn(alloc, rows, desc, opts.MaxBinarySize, 0)
	case *arrow.FixedSizeBinaryType:
		return newBinaryColumn(alloc, rows, desc, opts.MaxBinarySize, t.ByteWidth)
	default:
		return nil, fmt.Errorf("target type %s of column %q: %w", field.Type, field.Name, mapping.ErrUnsupportedType)
	}
}
