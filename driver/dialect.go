package driver

import (
	"strconv"
	"strings"
)

// AnsiDialect generates statements for backends using question-mark bind
// markers and double-quoted identifiers (MySQL in ANSI mode, ClickHouse,
// most ODBC-style backends).
type AnsiDialect struct{}

func (AnsiDialect) Placeholder(int) string { return "?" }

func (AnsiDialect) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// PostgresDialect generates statements with numbered dollar placeholders.
type PostgresDialect struct{}

func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n+1) }

func (PostgresDialect) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// MySQLDialect uses backtick-quoted identifiers.
type MySQLDialect struct{}

func (MySQLDialect) Placeholder(int) string { return "?" }

func (MySQLDialect) QuoteIdentifier(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// DialectFor picks the dialect matching a database/sql driver name.
func DialectFor(driverName string) Dialect {
	switch driverName {
	case "pgx", "postgres":
		return PostgresDialect{}
	case "mysql":
		return MySQLDialect{}
	default:
		return AnsiDialect{}
	}
}
