// Package transit implements the reusable staging memory that moves rows
// between the driver's row-wise form and the Arrow columnar form. A buffer
// is sized once for a bounded number of rows and mutated in place on every
// batch; per-column slot capacity only ever grows, and growth preserves all
// previously staged rows (see arena.grow).
package transit

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// Options bound the size and the allocation behavior of a buffer.
type Options struct {
	// BatchSize is the maximum row count staged per batch.
	BatchSize int
	// MaxBytesPerBatch caps the transit slot storage. When the footprint
	// of BatchSize rows would exceed it, the row capacity shrinks so the
	// staging allocation itself stays under the ceiling. Zero means no
	// byte ceiling.
	MaxBytesPerBatch uint64
	// MaxTextSize is the explicit upper bound for text slots. When set,
	// wider values are silently cut at the bound instead of failing.
	MaxTextSize int
	// MaxBinarySize is the explicit upper bound for binary slots.
	MaxBinarySize int
	// Fallible makes slot allocation report failure as an error instead of
	// treating it as unrecoverable.
	Fallible bool
}

// Buffer is the transit buffer of one reader: per-column staging storage
// for up to Capacity rows of the result set.
type Buffer struct {
	cols      []Column
	acceptors []any
	alloc     *Allocator
	rows      int
	capacity  int
}

// NewBuffer sizes a buffer for the given result set shape. The target
// schema drives the staging representation of each column; descs supply
// the driver-reported widths for variable-length slots.
func NewBuffer(schema *arrow.Schema, descs []mapping.Descriptor, opts Options) (*Buffer, error) {
	if len(schema.Fields()) != len(descs) {
		return nil, fmt.Errorf(
			"schema has %d fields but %d column descriptors given: %w",
			len(schema.Fields()), len(descs), ErrInvariantViolation)
	}

	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("batch size %d: %w", opts.BatchSize, ErrInvariantViolation)
	}

	// The byte ceiling bounds the transit storage itself, not just the
	// rows of one produced batch, so the row capacity shrinks before any
	// slot storage is allocated.
	capacity := opts.BatchSize

	if opts.MaxBytesPerBatch > 0 {
		var perRow uint64

		for i, field := range schema.Fields() {
			w, err := rowFootprint(field, descs[i], opts)
			if err != nil {
				return nil, fmt.Errorf("size transit column %q: %w", field.Name, err)
			}

			perRow += w
		}

		if perRow > 0 {
			if limit := int(opts.MaxBytesPerBatch / perRow); limit < capacity {
				capacity = limit
			}

			if capacity < 1 {
				capacity = 1
			}
		}
	}

	alloc := NewAllocator(opts.Fallible, 0)

	b := &Buffer{alloc: alloc, capacity: capacity}

	for i, field := range schema.Fields() {
		col, err := makeColumn(field, descs[i], opts, alloc, capacity)
		if err != nil {
			b.Release()

			return nil, fmt.Errorf("make transit column %q: %w", field.Name, err)
		}

		b.cols = append(b.cols, col)
		b.acceptors = append(b.acceptors, col.Acceptor())
	}

	return b, nil
}

// Acceptors returns the scan destinations, ordered like the schema. The
// same destinations are reused for every row.
func (b *Buffer) Acceptors() []any { return b.acceptors }

// CommitRow moves the most recently scanned row from the acceptors into
// the staging columns.
func (b *Buffer) CommitRow() error {
	if b.rows == b.capacity {
		return fmt.Errorf("commit into a full buffer: %w", ErrInvariantViolation)
	}

	for i, col := range b.cols {
		if err := col.Commit(); err != nil {
			return fmt.Errorf("commit column #%d: %w", i, err)
		}
	}

	b.rows++

	return nil
}

// Full reports whether the buffer holds Capacity staged rows.
func (b *Buffer) Full() bool { return b.rows == b.capacity }

// Rows reports the number of currently staged rows.
func (b *Buffer) Rows() int { return b.rows }

// Capacity reports the bounded row count of one batch.
func (b *Buffer) Capacity() int { return b.capacity }

// Drain converts the staged rows into one Arrow record and resets the
// buffer for the next batch. The caller owns the returned record and must
// release it.
func (b *Buffer) Drain(mem memory.Allocator, schema *arrow.Schema) (arrow.Record, error) {
	bldr := array.NewRecordBuilder(mem, schema)
	defer bldr.Release()

	for i, col := range b.cols {
		if err := col.AppendTo(bldr.Field(i)); err != nil {
			return nil, fmt.Errorf("drain column %q: %w", schema.Field(i).Name, err)
		}

		col.Reset()
	}

	rec := bldr.NewRecord()
	b.rows = 0

	return rec, nil
}

// Release frees the slot storage. The buffer must not be used afterwards.
func (b *Buffer) Release() {
	for _, col := range b.cols {
		col.Release()
	}

	b.cols = nil
	b.acceptors = nil
}
