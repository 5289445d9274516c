// Package driver defines the boundary to the driver-management layer: the
// opaque capability that executes SQL and yields or accepts rows. The
// bridge itself never talks to a database directly; it talks to these
// interfaces.
//
// Two implementations ship with the module: driver/databasesql adapts any
// database/sql driver, driver/pgxv5 speaks native pgx for richer column
// metadata. Callers may bring their own.
package driver

import (
	"context"

	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// Connection is one open session against a data source. Sessions are not
// safe for concurrent use from two goroutines; the bridge serializes all
// access through a single owner.
type Connection interface {
	// Query executes a statement that may yield result sets. Parameters
	// are bound positionally.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// Exec executes a statement without inspecting result sets.
	Exec(ctx context.Context, query string, args ...any) error

	// Dialect describes the SQL flavor of the session for statement
	// generation.
	Dialect() Dialect

	// Capabilities reports session facts captured at connect time.
	Capabilities() Capabilities

	// Close releases the session. Not idempotent.
	Close() error
}

// Rows is a forward-only, single-pass cursor over one or more result sets.
type Rows interface {
	// Columns describes the columns of the current result set. An empty
	// slice means the statement produced no result set.
	Columns() ([]mapping.Descriptor, error)

	// Next advances to the next row of the current result set.
	Next() bool

	// Scan reads the current row into the given destinations.
	Scan(dest ...any) error

	// NextResultSet advances to the next result set of a multi-statement
	// or stored-procedure execution and reports whether one exists.
	NextResultSet() bool

	// Err reports the error, if any, that terminated iteration.
	Err() error

	Close() error
}

// Capabilities carries per-session facts the bridge adjusts itself to.
type Capabilities struct {
	// DriverName identifies the underlying driver ("pgx", "mysql", ...).
	DriverName string

	// WideEncoding reports that the driver delivers text in a wide
	// encoding, doubling transit slot footprints.
	WideEncoding bool

	// MaxDiagnostics bounds the number of diagnostic records rendered
	// into one error message.
	MaxDiagnostics int
}

// Dialect knows the statement-generation quirks of one SQL flavor.
type Dialect interface {
	// Placeholder renders the bind marker for the n'th parameter,
	// starting from 0.
	Placeholder(n int) string

	// QuoteIdentifier delimits an identifier that is not a valid plain
	// identifier in this dialect.
	QuoteIdentifier(ident string) string
}
