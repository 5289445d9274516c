// Package mapping implements the translation tables between the SQL type
// space reported by database drivers and the Arrow type system.
//
// The source type space is open ended and driver specific, so every mapping
// keyed on it is total: descriptors that match nothing in the tables fall
// back to variable-length text instead of failing.
package mapping

import (
	"regexp"
	"strconv"
	"strings"
)

// SQLType is a closed enumeration of source column type codes. The values
// follow the ODBC SQL data type identifiers so that descriptors coming from
// a call-level interface can be carried through unchanged.
type SQLType int16

const (
	SQLUnknown       SQLType = 0
	SQLChar          SQLType = 1
	SQLNumeric       SQLType = 2
	SQLDecimal       SQLType = 3
	SQLInteger       SQLType = 4
	SQLSmallInt      SQLType = 5
	SQLFloat         SQLType = 6
	SQLReal          SQLType = 7
	SQLDouble        SQLType = 8
	SQLVarChar       SQLType = 12
	SQLDate          SQLType = 91
	SQLTime          SQLType = 92
	SQLTimestamp     SQLType = 93
	SQLTimestampTz   SQLType = 95
	SQLLongVarChar   SQLType = -1
	SQLBinary        SQLType = -2
	SQLVarBinary     SQLType = -3
	SQLLongVarBinary SQLType = -4
	SQLBigInt        SQLType = -5
	SQLTinyInt       SQLType = -6
	SQLBit           SQLType = -7
	SQLWChar         SQLType = -8
	SQLWVarChar      SQLType = -9
	SQLWLongVarChar  SQLType = -10
	SQLGUID          SQLType = -11
	SQLBoolean       SQLType = 16
)

// Descriptor describes a single source column the way a driver reports it.
// Precision carries the column size for variable-length types, the number
// of decimal digits for exact numerics and the fractional-second digits
// live in Scale for time-like types.
type Descriptor struct {
	Name      string
	Type      SQLType
	Precision int32
	Scale     int32
	Nullable  bool
	Unsigned  bool
	// Wide marks columns whose payload is reported in a wide (UTF-16)
	// encoding by the driver. Transit buffers size their slots accordingly.
	Wide bool
}

var (
	reTypeWithArgs = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_ ]*?)\s*\((\s*-?\d+\s*(?:,\s*-?\d+\s*)?)\)$`)
	reNullable     = regexp.MustCompile(`^Nullable\((.+)\)$`)
	reFixedString  = regexp.MustCompile(`^FixedString\((\d+)\)$`)
	reDateTime64   = regexp.MustCompile(`^DateTime64\((\d+)(?:\s*,.*)?\)$`)
)

// ParseTypeName maps a driver-reported type name onto a Descriptor. Names
// differ wildly between backends ("INT4", "bigint", "Nullable(UInt8)",
// "DECIMAL(10,2)"), so matching is case-insensitive and precision/scale
// arguments are peeled off before the name lookup. Unrecognized names yield
// SQLUnknown, which downstream tables map to variable-length text.
func ParseTypeName(name string) Descriptor {
	desc := Descriptor{Type: SQLUnknown}

	name = strings.TrimSpace(name)

	// ClickHouse wraps nullable columns instead of flagging them.
	if m := reNullable.FindStringSubmatch(name); m != nil {
		desc = ParseTypeName(m[1])
		desc.Nullable = true

		return desc
	}

	if m := reFixedString.FindStringSubmatch(name); m != nil {
		desc.Type = SQLBinary
		desc.Precision = parseInt32(m[1])

		return desc
	}

	if m := reDateTime64.FindStringSubmatch(name); m != nil {
		desc.Type = SQLTimestamp
		desc.Scale = parseInt32(m[1])

		return desc
	}

	base := name

	if m := reTypeWithArgs.FindStringSubmatch(name); m != nil {
		base = m[1]

		args := strings.Split(m[2], ",")
		desc.Precision = parseInt32(args[0])

		if len(args) > 1 {
			desc.Scale = parseInt32(args[1])
		}
	}

	switch strings.ToUpper(strings.TrimSpace(base)) {
	case "BOOL", "BOOLEAN":
		desc.Type = SQLBoolean
	case "BIT":
		desc.Type = SQLBit
	case "TINYINT", "INT1":
		desc.Type = SQLTinyInt
	case "UNSIGNED TINYINT", "TINYINT UNSIGNED", "UINT8":
		desc.Type = SQLTinyInt
		desc.Unsigned = true
	case "INT8":
		// "Int8" is a one-byte integer in ClickHouse but an eight-byte one
		// in PostgreSQL. The driver adapters report ClickHouse types with
		// their original casing, which is the only way to tell them apart.
		if base == "Int8" {
			desc.Type = SQLTinyInt
		} else {
			desc.Type = SQLBigInt
		}
	case "SMALLINT", "INT2", "SMALLSERIAL", "INT16":
		desc.Type = SQLSmallInt
	case "INT", "INTEGER", "INT4", "SERIAL", "MEDIUMINT", "INT32":
		desc.Type = SQLInteger
	case "BIGINT", "BIGSERIAL", "INT64":
		desc.Type = SQLBigInt
	case "DECIMAL", "NUMERIC":
		desc.Type = SQLDecimal
	case "REAL", "FLOAT4", "FLOAT32":
		desc.Type = SQLReal
	case "FLOAT":
		desc.Type = SQLFloat
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8", "FLOAT64":
		desc.Type = SQLDouble
	case "DATE", "DATE32":
		desc.Type = SQLDate
	case "TIME", "TIME WITHOUT TIME ZONE":
		desc.Type = SQLTime
		// For time-like types the sole argument is the fractional precision.
		desc.Scale, desc.Precision = desc.Precision, 0
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE", "DATETIME", "DATETIME2":
		desc.Type = SQLTimestamp
		desc.Scale, desc.Precision = desc.Precision, 0
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "DATETIMEOFFSET":
		desc.Type = SQLTimestampTz
		desc.Scale, desc.Precision = desc.Precision, 0
	case "CHAR", "CHARACTER", "BPCHAR":
		desc.Type = SQLChar
	case "VARCHAR", "CHARACTER VARYING", "TEXT", "STRING", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "NAME":
		desc.Type = SQLVarChar
	case "NCHAR":
		desc.Type = SQLWChar
		desc.Wide = true
	case "NVARCHAR", "NTEXT":
		desc.Type = SQLWVarChar
		desc.Wide = true
	case "BINARY":
		desc.Type = SQLBinary
	case "VARBINARY", "BYTEA", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		desc.Type = SQLVarBinary
	case "UUID", "UNIQUEIDENTIFIER":
		desc.Type = SQLGUID
	}

	return desc
}

func parseInt32(s string) int32 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}

	return int32(v)
}
