package arrowodbc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"go.uber.org/zap"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
	"github.com/arrowodbc/arrow-odbc-go/internal/transit"
)

var rePlainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BatchWriter bulk-inserts Arrow records into one table. Incoming rows
// accumulate in a staging buffer and are transmitted one chunk at a time;
// a final Flush sends the partial chunk. Writers are single-owner, and
// Release must be called exactly once.
type BatchWriter struct {
	drv      driver.Connection
	schema   *arrow.Schema
	types    []mapping.InsertType
	buf      *transit.InsertBuffer
	table    string
	stmt     string
	maxDiag  int
	released bool
}

// NewBatchWriter prepares bulk insertion into table for records of the
// given schema. The connection is consumed either way: on failure it is
// closed before the error returns.
func NewBatchWriter(ctx context.Context, conn *Connection, table string, schema *arrow.Schema, opts ...WriterOption) (*BatchWriter, error) {
	drv, err := conn.take()
	if err != nil {
		return nil, err
	}

	w, err := newBatchWriter(drv, table, schema, opts...)
	if err != nil {
		_ = drv.Close()

		return nil, boundDiagnostics(err, drv.Capabilities().MaxDiagnostics)
	}

	return w, nil
}

// diag applies the session's diagnostic record bound to errors leaving
// the writer.
func (w *BatchWriter) diag(err error) error { return boundDiagnostics(err, w.maxDiag) }

func newBatchWriter(drv driver.Connection, table string, schema *arrow.Schema, opts ...WriterOption) (*BatchWriter, error) {
	options := defaultWriterOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if len(schema.Fields()) == 0 {
		return nil, fmt.Errorf("insertion schema has no fields: %w", ErrInvariantViolation)
	}

	types := make([]mapping.InsertType, len(schema.Fields()))

	for i, field := range schema.Fields() {
		it, err := mapping.ToInsert(field.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}

		types[i] = it
	}

	buf, err := transit.NewInsertBuffer(schema, types, options.chunkSize, options.fallible)
	if err != nil {
		return nil, err
	}

	w := &BatchWriter{
		drv:     drv,
		schema:  schema,
		types:   types,
		buf:     buf,
		table:   quoteTable(drv.Dialect(), table),
		maxDiag: drv.Capabilities().MaxDiagnostics,
	}

	w.stmt = w.insertStatement(buf.Capacity())

	log().Debug("writer prepared",
		zap.String("table", table),
		zap.Int("chunk_size", buf.Capacity()))

	return w, nil
}

// insertStatement renders a multi-row INSERT for the given row count,
// with placeholders numbered row-major.
func (w *BatchWriter) insertStatement(rows int) string {
	dialect := w.drv.Dialect()

	var sb strings.Builder

	sb.WriteString("INSERT INTO ")
	sb.WriteString(w.table)
	sb.WriteString(" (")

	for i, field := range w.schema.Fields() {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(dialect.QuoteIdentifier(field.Name))
	}

	sb.WriteString(") VALUES ")

	cols := len(w.schema.Fields())

	for row := 0; row < rows; row++ {
		if row > 0 {
			sb.WriteString(", ")
		}

		sb.WriteByte('(')

		for col := 0; col < cols; col++ {
			if col > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(dialect.Placeholder(row*cols + col))
		}

		sb.WriteByte(')')
	}

	return sb.String()
}

// quoteTable keeps plain, possibly schema-qualified table names as written
// and delimits every other part.
func quoteTable(dialect driver.Dialect, table string) string {
	parts := strings.Split(table, ".")

	for i, part := range parts {
		if !rePlainIdent.MatchString(part) {
			parts[i] = dialect.QuoteIdentifier(part)
		}
	}

	return strings.Join(parts, ".")
}

// WriteBatch stages the rows of rec, transmitting chunks as they fill.
// The record's schema must match the writer's. The record stays owned by
// the caller.
func (w *BatchWriter) WriteBatch(ctx context.Context, rec arrow.Record) error {
	w.mustUsable()

	if !rec.Schema().Equal(w.schema) {
		return fmt.Errorf("got schema %s, want %s: %w", rec.Schema(), w.schema, ErrSchemaMismatch)
	}

	for row := 0; row < int(rec.NumRows()); row++ {
		if err := w.buf.StageRow(rec, row); err != nil {
			return w.diag(err)
		}

		if w.buf.Full() {
			if err := w.flush(ctx); err != nil {
				return w.diag(err)
			}
		}
	}

	return nil
}

// Flush transmits the staged partial chunk, if any. Call it after the last
// WriteBatch; Release does not flush.
func (w *BatchWriter) Flush(ctx context.Context) error {
	w.mustUsable()

	return w.diag(w.flush(ctx))
}

func (w *BatchWriter) flush(ctx context.Context) error {
	rows := w.buf.Rows()
	if rows == 0 {
		return nil
	}

	stmt := w.stmt
	if rows != w.buf.Capacity() {
		stmt = w.insertStatement(rows)
	}

	if err := w.drv.Exec(ctx, stmt, w.buf.Args()...); err != nil {
		return fmt.Errorf("transmit chunk of %d rows: %w", rows, err)
	}

	w.buf.Reset()

	log().Debug("chunk transmitted", zap.Int("rows", rows))

	return nil
}

// Release closes the session. Staged rows that were never flushed are
// discarded. Exactly one call; the writer must not be used afterwards.
func (w *BatchWriter) Release() error {
	w.mustUsable()

	w.released = true

	w.buf.Release()

	if err := w.drv.Close(); err != nil {
		return w.diag(fmt.Errorf("close session: %w", err))
	}

	return nil
}

func (w *BatchWriter) mustUsable() {
	if w.released {
		panic("use of released batch writer")
	}
}
