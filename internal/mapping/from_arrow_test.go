package mapping

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/require"
)

func TestToInsert(t *testing.T) {
	testCases := []struct {
		dt   arrow.DataType
		want InsertType
	}{
		{arrow.FixedWidthTypes.Boolean, InsertType{Type: SQLBit}},
		{arrow.PrimitiveTypes.Int8, InsertType{Type: SQLTinyInt}},
		{arrow.PrimitiveTypes.Uint8, InsertType{Type: SQLTinyInt}},
		{arrow.PrimitiveTypes.Int16, InsertType{Type: SQLSmallInt}},
		{arrow.PrimitiveTypes.Int32, InsertType{Type: SQLInteger}},
		{arrow.PrimitiveTypes.Int64, InsertType{Type: SQLBigInt}},
		{arrow.FixedWidthTypes.Float16, InsertType{Type: SQLReal}},
		{arrow.PrimitiveTypes.Float32, InsertType{Type: SQLReal}},
		{arrow.PrimitiveTypes.Float64, InsertType{Type: SQLDouble}},
		{arrow.BinaryTypes.String, InsertType{Type: SQLVarChar}},
		{arrow.BinaryTypes.LargeString, InsertType{Type: SQLLongVarChar}},
		{arrow.BinaryTypes.Binary, InsertType{Type: SQLVarBinary}},
		{&arrow.FixedSizeBinaryType{ByteWidth: 16}, InsertType{Type: SQLBinary, Size: 16}},
		{arrow.FixedWidthTypes.Date32, InsertType{Type: SQLDate}},
		{arrow.FixedWidthTypes.Date64, InsertType{Type: SQLDate}},
		{arrow.FixedWidthTypes.Time32ms, InsertType{Type: SQLTime, Scale: 3}},
		{arrow.FixedWidthTypes.Time64us, InsertType{Type: SQLTime, Scale: 6}},

		// Decimals widen to text: digits plus sign, plus a radix character
		// when a fractional part is printed.
		{&arrow.Decimal128Type{Precision: 10, Scale: 2}, InsertType{Type: SQLVarChar, Size: 12, Scale: 2}},
		{&arrow.Decimal128Type{Precision: 10, Scale: 0}, InsertType{Type: SQLVarChar, Size: 11}},

		// Naive timestamps keep their type, zoned ones widen to text.
		{&arrow.TimestampType{Unit: arrow.Microsecond}, InsertType{Type: SQLTimestamp, Scale: 6}},
		{
			&arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"},
			InsertType{Type: SQLVarChar, Size: 25},
		},
		{
			&arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "Europe/Berlin"},
			InsertType{Type: SQLVarChar, Size: 29, Scale: 3},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.dt.String(), func(t *testing.T) {
			got, err := ToInsert(tc.dt)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestToInsertUnsupported(t *testing.T) {
	_, err := ToInsert(arrow.ListOf(arrow.PrimitiveTypes.Int32))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ToInsert(arrow.StructOf(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int32}))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestZonedTimestampTextWidth(t *testing.T) {
	// "2014-04-14 11:17:13+02:00" is 25 characters.
	require.Equal(t, int32(25), ZonedTimestampTextWidth(0))
	// "2014-04-14 11:17:13.123+02:00" is 29.
	require.Equal(t, int32(29), ZonedTimestampTextWidth(3))
	require.Equal(t, int32(35), ZonedTimestampTextWidth(9))
}
