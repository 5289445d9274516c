package mapping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseTypeName(t *testing.T) {
	testCases := []struct {
		name string
		want Descriptor
	}{
		// PostgreSQL-style names.
		{"INT4", Descriptor{Type: SQLInteger}},
		{"INT8", Descriptor{Type: SQLBigInt}},
		{"NUMERIC", Descriptor{Type: SQLDecimal}},
		{"TIMESTAMPTZ", Descriptor{Type: SQLTimestampTz}},
		{"BYTEA", Descriptor{Type: SQLVarBinary}},
		{"UUID", Descriptor{Type: SQLGUID}},

		// MySQL-style names with arguments.
		{"DECIMAL(10,2)", Descriptor{Type: SQLDecimal, Precision: 10, Scale: 2}},
		{"VARCHAR(255)", Descriptor{Type: SQLVarChar, Precision: 255}},
		{"TINYINT UNSIGNED", Descriptor{Type: SQLTinyInt, Unsigned: true}},
		{"DATETIME(6)", Descriptor{Type: SQLTimestamp, Scale: 6}},
		{"TIME(3)", Descriptor{Type: SQLTime, Scale: 3}},
		{"BIGINT", Descriptor{Type: SQLBigInt}},

		// ClickHouse-style names, including its one-byte Int8.
		{"Int8", Descriptor{Type: SQLTinyInt}},
		{"UInt8", Descriptor{Type: SQLTinyInt, Unsigned: true}},
		{"Int16", Descriptor{Type: SQLSmallInt}},
		{"Int64", Descriptor{Type: SQLBigInt}},
		{"Float64", Descriptor{Type: SQLDouble}},
		{"String", Descriptor{Type: SQLVarChar}},
		{"FixedString(16)", Descriptor{Type: SQLBinary, Precision: 16}},
		{"DateTime64(3)", Descriptor{Type: SQLTimestamp, Scale: 3}},
		{"Nullable(Int32)", Descriptor{Type: SQLInteger, Nullable: true}},
		{"Nullable(String)", Descriptor{Type: SQLVarChar, Nullable: true}},

		// Wide text marks itself for slot sizing.
		{"NVARCHAR(50)", Descriptor{Type: SQLWVarChar, Precision: 50, Wide: true}},

		// Unknown names stay unknown and map to text downstream.
		{"GEOMETRY", Descriptor{Type: SQLUnknown}},
		{"", Descriptor{Type: SQLUnknown}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Empty(t, cmp.Diff(tc.want, ParseTypeName(tc.name)))
		})
	}
}
