package arrowodbc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/drivertest"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

func itemsSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "title", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

func itemsRecord(t *testing.T, ids []int64, titles []string) arrow.Record {
	t.Helper()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, itemsSchema())
	defer bldr.Release()

	bldr.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	bldr.Field(1).(*array.StringBuilder).AppendValues(titles, nil)

	return bldr.NewRecord()
}

func TestWriterChunksAndFlushes(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema(), WithChunkSize(2))
	require.NoError(t, err)

	rec := itemsRecord(t, []int64{1, 2, 3, 4, 5}, []string{"a", "b", "c", "d", "e"})
	defer rec.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), rec))

	// Two full chunks went out during WriteBatch; the fifth row waits.
	require.Len(t, scripted.Execs, 2)
	require.Equal(t,
		`INSERT INTO items ("id", "title") VALUES (?, ?), (?, ?)`,
		scripted.Execs[0].Query)
	require.Equal(t, []any{int64(1), "a", int64(2), "b"}, scripted.Execs[0].Args)
	require.Equal(t, []any{int64(3), "c", int64(4), "d"}, scripted.Execs[1].Args)

	require.NoError(t, writer.Flush(context.Background()))
	require.Len(t, scripted.Execs, 3)
	require.Equal(t,
		`INSERT INTO items ("id", "title") VALUES (?, ?)`,
		scripted.Execs[2].Query)
	require.Equal(t, []any{int64(5), "e"}, scripted.Execs[2].Args)

	// Nothing staged, nothing sent.
	require.NoError(t, writer.Flush(context.Background()))
	require.Len(t, scripted.Execs, 3)

	require.NoError(t, writer.Release())
	require.True(t, scripted.Closed)
}

func TestWriterBoundsDiagnosticsToSessionLimit(t *testing.T) {
	root := errors.New("io timeout")

	cause := error(root)
	for i := 1; i < 6; i++ {
		cause = fmt.Errorf("diagnostic %d: %w", i, cause)
	}

	scripted := &drivertest.Connection{ExecErr: cause, Caps: driver.Capabilities{MaxDiagnostics: 2}}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema(), WithChunkSize(2))
	require.NoError(t, err)

	defer func() { _ = writer.Release() }()

	rec := itemsRecord(t, []int64{1}, []string{"a"})
	defer rec.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), rec))

	err = writer.Flush(context.Background())
	require.Error(t, err)
	require.Equal(t, "transmit chunk of 1 rows: diagnostic 5: further diagnostics omitted", err.Error())

	// The bound trims the rendering only; the chain stays intact.
	require.ErrorIs(t, err, root)
}

func TestWriterChunksSpanBatches(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema(), WithChunkSize(4))
	require.NoError(t, err)

	defer func() { _ = writer.Release() }()

	first := itemsRecord(t, []int64{1, 2, 3}, []string{"a", "b", "c"})
	defer first.Release()

	second := itemsRecord(t, []int64{4, 5}, []string{"d", "e"})
	defer second.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), first))
	require.Empty(t, scripted.Execs)

	// The fourth row completes a chunk mid-batch.
	require.NoError(t, writer.WriteBatch(context.Background(), second))
	require.Len(t, scripted.Execs, 1)
	require.Equal(t, []any{int64(1), "a", int64(2), "b", int64(3), "c", int64(4), "d"}, scripted.Execs[0].Args)

	require.NoError(t, writer.Flush(context.Background()))
	require.Equal(t, []any{int64(5), "e"}, scripted.Execs[1].Args)
}

func TestWriterPostgresPlaceholders(t *testing.T) {
	scripted := &drivertest.Connection{Dial: driver.PostgresDialect{}}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema(), WithChunkSize(2))
	require.NoError(t, err)

	defer func() { _ = writer.Release() }()

	rec := itemsRecord(t, []int64{1, 2}, []string{"a", "b"})
	defer rec.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), rec))
	require.Equal(t,
		`INSERT INTO items ("id", "title") VALUES ($1, $2), ($3, $4)`,
		scripted.Execs[0].Query)
}

func TestWriterQuotesIrregularTableNames(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, `public.order items`, itemsSchema(), WithChunkSize(1))
	require.NoError(t, err)

	defer func() { _ = writer.Release() }()

	rec := itemsRecord(t, []int64{1}, []string{"a"})
	defer rec.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), rec))
	require.Equal(t,
		`INSERT INTO public."order items" ("id", "title") VALUES (?, ?)`,
		scripted.Execs[0].Query)
}

func TestWriterSchemaMismatch(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema())
	require.NoError(t, err)

	defer func() { _ = writer.Release() }()

	other := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
	}, nil)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, other)
	defer bldr.Release()

	bldr.Field(0).(*array.Int32Builder).Append(1)

	rec := bldr.NewRecord()
	defer rec.Release()

	require.ErrorIs(t, writer.WriteBatch(context.Background(), rec), ErrSchemaMismatch)
}

func TestWriterConsumesConnectionEvenOnFailure(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	unsupported := arrow.NewSchema([]arrow.Field{
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String)},
	}, nil)

	_, err := NewBatchWriter(context.Background(), conn, "items", unsupported)
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.True(t, scripted.Closed)
	require.ErrorIs(t, conn.Release(), ErrConnectionConsumed)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema(), WithChunkSize(10))
	require.NoError(t, err)

	original := itemsRecord(t, []int64{7, 8, 9}, []string{"x", "y", "z"})
	defer original.Release()

	require.NoError(t, writer.WriteBatch(context.Background(), original))
	require.NoError(t, writer.Flush(context.Background()))
	require.NoError(t, writer.Release())

	// Feed the transmitted bind arguments back through a reader and
	// compare against the original batch.
	args := scripted.Execs[0].Args
	rows := make([][]any, 3)
	for i := range rows {
		rows[i] = args[i*2 : i*2+2]
	}

	_, readConn := scriptedConnection(drivertest.ResultSet{
		Descs: []mapping.Descriptor{
			{Name: "id", Type: mapping.SQLBigInt},
			{Name: "title", Type: mapping.SQLVarChar, Precision: 32, Nullable: true},
		},
		Rows: rows,
	})

	reader, err := NewBatchReader(context.Background(), readConn, "SELECT id, title FROM items", nil)
	require.NoError(t, err)

	defer func() { _ = reader.Release() }()

	got, err := reader.NextBatch(context.Background())
	require.NoError(t, err)

	defer got.Release()

	require.True(t, array.RecordEqual(original, got))
}

func TestWriterUseAfterReleasePanics(t *testing.T) {
	scripted := &drivertest.Connection{}
	conn := NewConnection(scripted)

	writer, err := NewBatchWriter(context.Background(), conn, "items", itemsSchema())
	require.NoError(t, err)
	require.NoError(t, writer.Release())

	require.Panics(t, func() { _ = writer.Flush(context.Background()) })
	require.Panics(t, func() { _ = writer.Release() })
}
