package mapping

import (
	"github.com/apache/arrow/go/v13/arrow"
)

// Largest exact numeric precision that still fits a 128-bit decimal.
const maxDecimal128Precision = 38

// ToArrow maps a source column descriptor onto exactly one Arrow type.
// The function is pure and total: descriptors it does not recognize map to
// variable-length text, so reading never fails solely because a backend
// reported an exotic column type.
func ToArrow(desc Descriptor) arrow.DataType {
	switch desc.Type {
	case SQLDecimal, SQLNumeric:
		if desc.Precision > 0 && desc.Precision <= maxDecimal128Precision {
			return &arrow.Decimal128Type{Precision: desc.Precision, Scale: desc.Scale}
		}

		return arrow.BinaryTypes.String
	case SQLInteger:
		return arrow.PrimitiveTypes.Int32
	case SQLSmallInt:
		return arrow.PrimitiveTypes.Int16
	case SQLReal:
		return arrow.PrimitiveTypes.Float32
	case SQLFloat:
		// ODBC reports FLOAT(p): single precision up to 24 mantissa bits,
		// double precision above.
		if desc.Precision > 0 && desc.Precision <= 24 {
			return arrow.PrimitiveTypes.Float32
		}

		return arrow.PrimitiveTypes.Float64
	case SQLDouble:
		return arrow.PrimitiveTypes.Float64
	case SQLDate:
		return arrow.FixedWidthTypes.Date32
	case SQLTime:
		switch timeUnitForDigits(desc.Scale) {
		case arrow.Second:
			return arrow.FixedWidthTypes.Time32s
		case arrow.Millisecond:
			return arrow.FixedWidthTypes.Time32ms
		case arrow.Microsecond:
			return arrow.FixedWidthTypes.Time64us
		default:
			return arrow.FixedWidthTypes.Time64ns
		}
	case SQLTimestamp, SQLTimestampTz:
		return &arrow.TimestampType{Unit: timeUnitForDigits(desc.Scale)}
	case SQLBigInt:
		return arrow.PrimitiveTypes.Int64
	case SQLTinyInt:
		if desc.Unsigned {
			return arrow.PrimitiveTypes.Uint8
		}

		return arrow.PrimitiveTypes.Int8
	case SQLBit, SQLBoolean:
		return arrow.FixedWidthTypes.Boolean
	case SQLVarBinary, SQLLongVarBinary:
		return arrow.BinaryTypes.Binary
	case SQLBinary:
		if desc.Precision > 0 {
			return &arrow.FixedSizeBinaryType{ByteWidth: int(desc.Precision)}
		}

		return arrow.BinaryTypes.Binary
	default:
		// Char, VarChar, wide text, GUID and everything unanticipated.
		return arrow.BinaryTypes.String
	}
}

// timeUnitForDigits buckets a fractional-second precision into the Arrow
// time unit that can represent it without loss. The band boundaries
// (0, 1-3, 4-6, 7-9) are contract; keep them bit-for-bit.
func timeUnitForDigits(digits int32) arrow.TimeUnit {
	switch {
	case digits <= 0:
		return arrow.Second
	case digits <= 3:
		return arrow.Millisecond
	case digits <= 6:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

// Field derives the Arrow field for a source column.
func Field(desc Descriptor) arrow.Field {
	return arrow.Field{Name: desc.Name, Type: ToArrow(desc), Nullable: desc.Nullable}
}

// Schema derives the Arrow schema for an ordered set of source columns.
// The result is immutable and shared by reference for the lifetime of a
// reader.
func Schema(descs []Descriptor) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(descs))
	for _, desc := range descs {
		fields = append(fields, Field(desc))
	}

	return arrow.NewSchema(fields, nil)
}
