package mapping

import (
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
)

// ErrUnsupportedType is returned when an Arrow type has no counterpart in
// the insertion type table. Unlike the read direction, writing cannot fall
// back to text silently: the target column expects a concrete wire type.
var ErrUnsupportedType = errors.New("data type not supported")

// InsertType describes how values of one Arrow column are bound for bulk
// insertion: the wire type code plus the column size the statement is bound
// with. Size is meaningful for variable-length types only and reflects the
// maximum length observed so far, not a fixed upper bound.
type InsertType struct {
	Type  SQLType
	Size  int32
	Scale int32
}

// ToInsert is the mirror of ToArrow for the write path. Decimals widen to
// text representations sized for sign, digits and radix character, and
// zoned timestamps widen to fixed-width text because the wire format has no
// native zoned-timestamp type.
func ToInsert(dt arrow.DataType) (InsertType, error) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return InsertType{Type: SQLBit}, nil
	case *arrow.Int8Type:
		return InsertType{Type: SQLTinyInt}, nil
	case *arrow.Uint8Type:
		return InsertType{Type: SQLTinyInt}, nil
	case *arrow.Int16Type:
		return InsertType{Type: SQLSmallInt}, nil
	case *arrow.Int32Type:
		return InsertType{Type: SQLInteger}, nil
	case *arrow.Int64Type:
		return InsertType{Type: SQLBigInt}, nil
	case *arrow.Float16Type:
		return InsertType{Type: SQLReal}, nil
	case *arrow.Float32Type:
		return InsertType{Type: SQLReal}, nil
	case *arrow.Float64Type:
		return InsertType{Type: SQLDouble}, nil
	case *arrow.StringType:
		return InsertType{Type: SQLVarChar}, nil
	case *arrow.LargeStringType:
		return InsertType{Type: SQLLongVarChar}, nil
	case *arrow.BinaryType:
		return InsertType{Type: SQLVarBinary}, nil
	case *arrow.LargeBinaryType:
		return InsertType{Type: SQLLongVarBinary}, nil
	case *arrow.FixedSizeBinaryType:
		return InsertType{Type: SQLBinary, Size: int32(t.ByteWidth)}, nil
	case *arrow.Decimal128Type:
		return InsertType{Type: SQLVarChar, Size: DecimalTextWidth(t.Precision, t.Scale), Scale: t.Scale}, nil
	case *arrow.Date32Type, *arrow.Date64Type:
		return InsertType{Type: SQLDate}, nil
	case *arrow.Time32Type:
		return InsertType{Type: SQLTime, Scale: fractionalDigits(t.Unit)}, nil
	case *arrow.Time64Type:
		return InsertType{Type: SQLTime, Scale: fractionalDigits(t.Unit)}, nil
	case *arrow.TimestampType:
		digits := fractionalDigits(t.Unit)
		if t.TimeZone != "" {
			return InsertType{Type: SQLVarChar, Size: ZonedTimestampTextWidth(digits), Scale: digits}, nil
		}

		return InsertType{Type: SQLTimestamp, Scale: digits}, nil
	default:
		return InsertType{}, fmt.Errorf("arrow type %s: %w", dt, ErrUnsupportedType)
	}
}

// DecimalTextWidth is the character count needed to render any decimal of
// the given precision and scale: all digits plus a sign, plus a radix
// character whenever a fractional part is printed. Negative scales render
// as plain integers and need no radix character.
func DecimalTextWidth(precision, scale int32) int32 {
	if scale > 0 {
		return precision + 2
	}

	return precision + 1
}

// ZonedTimestampTextWidth is the character count of the fixed-width text
// rendering "YYYY-MM-DD HH:MM:SS[.fff...]+HH:MM" used for timestamps with
// time zones.
func ZonedTimestampTextWidth(digits int32) int32 {
	const datetime = 19 // "YYYY-MM-DD HH:MM:SS"
	const offset = 6    // "+HH:MM"

	if digits > 0 {
		return datetime + 1 + digits + offset
	}

	return datetime + offset
}

func fractionalDigits(unit arrow.TimeUnit) int32 {
	switch unit {
	case arrow.Second:
		return 0
	case arrow.Millisecond:
		return 3
	case arrow.Microsecond:
		return 6
	default:
		return 9
	}
}
