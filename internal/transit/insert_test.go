package transit

import (
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/decimal128"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

func insertTypes(t *testing.T, schema *arrow.Schema) []mapping.InsertType {
	t.Helper()

	types := make([]mapping.InsertType, len(schema.Fields()))

	for i, field := range schema.Fields() {
		it, err := mapping.ToInsert(field.Type)
		require.NoError(t, err)

		types[i] = it
	}

	return types
}

func TestInsertBufferStagesRowMajorArgs(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "title", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 4, false)
	require.NoError(t, err)

	defer buf.Release()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	bldr.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	bldr.Field(1).(*array.StringBuilder).Append("one")
	bldr.Field(1).(*array.StringBuilder).AppendNull()
	bldr.Field(1).(*array.StringBuilder).Append("three")

	rec := bldr.NewRecord()
	defer rec.Release()

	for row := 0; row < int(rec.NumRows()); row++ {
		require.NoError(t, buf.StageRow(rec, row))
	}

	require.Equal(t, 3, buf.Rows())
	require.False(t, buf.Full())

	require.Equal(t, []any{
		int64(1), "one",
		int64(2), nil,
		int64(3), "three",
	}, buf.Args())
}

func TestInsertBufferResetKeepsGrownWidth(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "payload", Type: arrow.BinaryTypes.String},
	}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 2, false)
	require.NoError(t, err)

	defer buf.Release()

	long := strings.Repeat("y", defaultSlotWidth*2)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	bldr.Field(0).(*array.StringBuilder).Append(long)

	rec := bldr.NewRecord()
	defer rec.Release()

	require.NoError(t, buf.StageRow(rec, 0))
	require.Equal(t, []any{long}, buf.Args())

	buf.Reset()
	require.Equal(t, 0, buf.Rows())

	// The grown slot width persists across chunks: restaging the same
	// value must not regrow or fail.
	require.NoError(t, buf.StageRow(rec, 0))
	require.Equal(t, []any{long}, buf.Args())
}

func TestInsertBufferDecimalRendersAsText(t *testing.T) {
	dt := &arrow.Decimal128Type{Precision: 10, Scale: 2}
	schema := arrow.NewSchema([]arrow.Field{{Name: "price", Type: dt}}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 2, false)
	require.NoError(t, err)

	defer buf.Release()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	db := bldr.Field(0).(*array.Decimal128Builder)
	db.Append(decimal128.FromI64(123456)) // 1234.56 at scale 2
	db.Append(decimal128.FromI64(-50))    // -0.50

	rec := bldr.NewRecord()
	defer rec.Release()

	require.NoError(t, buf.StageRow(rec, 0))
	require.NoError(t, buf.StageRow(rec, 1))

	require.Equal(t, []any{"1234.56", "-0.50"}, buf.Args())
}

func TestInsertBufferZonedTimestampRendersAsText(t *testing.T) {
	dt := &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}
	schema := arrow.NewSchema([]arrow.Field{{Name: "at", Type: dt}}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 1, false)
	require.NoError(t, err)

	defer buf.Release()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	at := time.Date(2014, 4, 14, 11, 17, 13, 123_000_000, time.UTC)
	bldr.Field(0).(*array.TimestampBuilder).Append(arrow.Timestamp(at.UnixMilli()))

	rec := bldr.NewRecord()
	defer rec.Release()

	require.NoError(t, buf.StageRow(rec, 0))
	require.Equal(t, []any{"2014-04-14 11:17:13.123+00:00"}, buf.Args())
}

func TestInsertBufferTimeRendersAsText(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "t", Type: arrow.FixedWidthTypes.Time32ms},
	}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 1, false)
	require.NoError(t, err)

	defer buf.Release()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	// 11:17:13.123 as milliseconds since midnight.
	ms := (11*3600 + 17*60 + 13) * 1000
	bldr.Field(0).(*array.Time32Builder).Append(arrow.Time32(ms + 123))

	rec := bldr.NewRecord()
	defer rec.Release()

	require.NoError(t, buf.StageRow(rec, 0))
	require.Equal(t, []any{"11:17:13.123"}, buf.Args())
}

func TestInsertBufferRejectsOverfill(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
	}, nil)

	buf, err := NewInsertBuffer(schema, insertTypes(t, schema), 1, false)
	require.NoError(t, err)

	defer buf.Release()

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	bldr.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 2}, nil)

	rec := bldr.NewRecord()
	defer rec.Release()

	require.NoError(t, buf.StageRow(rec, 0))
	require.True(t, buf.Full())
	require.ErrorIs(t, buf.StageRow(rec, 1), ErrInvariantViolation)
}
