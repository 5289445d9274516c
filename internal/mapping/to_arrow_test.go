package mapping

import (
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/require"
)

func TestToArrow(t *testing.T) {
	testCases := []struct {
		desc Descriptor
		want arrow.DataType
	}{
		{Descriptor{Type: SQLBoolean}, arrow.FixedWidthTypes.Boolean},
		{Descriptor{Type: SQLBit}, arrow.FixedWidthTypes.Boolean},
		{Descriptor{Type: SQLTinyInt}, arrow.PrimitiveTypes.Int8},
		{Descriptor{Type: SQLTinyInt, Unsigned: true}, arrow.PrimitiveTypes.Uint8},
		{Descriptor{Type: SQLSmallInt}, arrow.PrimitiveTypes.Int16},
		{Descriptor{Type: SQLInteger}, arrow.PrimitiveTypes.Int32},
		{Descriptor{Type: SQLBigInt}, arrow.PrimitiveTypes.Int64},
		{Descriptor{Type: SQLReal}, arrow.PrimitiveTypes.Float32},
		{Descriptor{Type: SQLDouble}, arrow.PrimitiveTypes.Float64},

		// FLOAT(p) splits on 24 mantissa bits.
		{Descriptor{Type: SQLFloat, Precision: 24}, arrow.PrimitiveTypes.Float32},
		{Descriptor{Type: SQLFloat, Precision: 25}, arrow.PrimitiveTypes.Float64},
		{Descriptor{Type: SQLFloat}, arrow.PrimitiveTypes.Float64},

		// Exact numerics split on 128-bit capacity.
		{Descriptor{Type: SQLDecimal, Precision: 10, Scale: 2}, &arrow.Decimal128Type{Precision: 10, Scale: 2}},
		{Descriptor{Type: SQLNumeric, Precision: 38, Scale: 0}, &arrow.Decimal128Type{Precision: 38}},
		{Descriptor{Type: SQLDecimal, Precision: 39, Scale: 2}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLNumeric}, arrow.BinaryTypes.String},

		{Descriptor{Type: SQLDate}, arrow.FixedWidthTypes.Date32},

		// Fractional-second precision bands: 0, 1-3, 4-6, 7-9.
		{Descriptor{Type: SQLTime}, arrow.FixedWidthTypes.Time32s},
		{Descriptor{Type: SQLTime, Scale: 3}, arrow.FixedWidthTypes.Time32ms},
		{Descriptor{Type: SQLTime, Scale: 4}, arrow.FixedWidthTypes.Time64us},
		{Descriptor{Type: SQLTime, Scale: 9}, arrow.FixedWidthTypes.Time64ns},
		{Descriptor{Type: SQLTimestamp}, &arrow.TimestampType{Unit: arrow.Second}},
		{Descriptor{Type: SQLTimestamp, Scale: 1}, &arrow.TimestampType{Unit: arrow.Millisecond}},
		{Descriptor{Type: SQLTimestamp, Scale: 6}, &arrow.TimestampType{Unit: arrow.Microsecond}},
		{Descriptor{Type: SQLTimestamp, Scale: 7}, &arrow.TimestampType{Unit: arrow.Nanosecond}},
		{Descriptor{Type: SQLTimestampTz, Scale: 6}, &arrow.TimestampType{Unit: arrow.Microsecond}},

		{Descriptor{Type: SQLChar, Precision: 10}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLVarChar, Precision: 255}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLWVarChar, Wide: true}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLLongVarChar}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLGUID, Precision: 36}, arrow.BinaryTypes.String},

		{Descriptor{Type: SQLBinary, Precision: 16}, &arrow.FixedSizeBinaryType{ByteWidth: 16}},
		{Descriptor{Type: SQLBinary}, arrow.BinaryTypes.Binary},
		{Descriptor{Type: SQLVarBinary, Precision: 255}, arrow.BinaryTypes.Binary},
		{Descriptor{Type: SQLLongVarBinary}, arrow.BinaryTypes.Binary},

		// The table is total: unknown codes land on text.
		{Descriptor{Type: SQLUnknown}, arrow.BinaryTypes.String},
		{Descriptor{Type: SQLType(-77)}, arrow.BinaryTypes.String},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("%d_p%d_s%d", tc.desc.Type, tc.desc.Precision, tc.desc.Scale), func(t *testing.T) {
			require.True(t, arrow.TypeEqual(tc.want, ToArrow(tc.desc)),
				"want %s, got %s", tc.want, ToArrow(tc.desc))
		})
	}
}

func TestToArrowDeterministic(t *testing.T) {
	desc := Descriptor{Type: SQLDecimal, Precision: 12, Scale: 4}

	first := ToArrow(desc)
	for i := 0; i < 100; i++ {
		require.True(t, arrow.TypeEqual(first, ToArrow(desc)))
	}
}

func TestSchema(t *testing.T) {
	descs := []Descriptor{
		{Name: "id", Type: SQLBigInt},
		{Name: "title", Type: SQLVarChar, Precision: 255, Nullable: true},
	}

	schema := Schema(descs)

	require.Equal(t, 2, len(schema.Fields()))
	require.Equal(t, "id", schema.Field(0).Name)
	require.False(t, schema.Field(0).Nullable)
	require.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, schema.Field(0).Type))
	require.True(t, schema.Field(1).Nullable)
	require.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, schema.Field(1).Type))
}
