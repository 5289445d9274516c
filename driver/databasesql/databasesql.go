// Package databasesql adapts any registered database/sql driver to the
// bridge's driver boundary. Each bridge connection pins one session out of
// the pool so that multi-statement executions and temporary state stay on
// a single backend session.
package databasesql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// DefaultMaxDiagnostics bounds the diagnostic records rendered into one
// error message unless the caller configures otherwise.
const DefaultMaxDiagnostics = 64

// Config describes how to open a session through database/sql.
type Config struct {
	// DriverName is the database/sql registration name ("pgx", "mysql",
	// "clickhouse", ...).
	DriverName string

	// DSN is the driver-specific data source name.
	DSN string

	// LoginTimeout bounds connection establishment. Zero means no bound.
	LoginTimeout time.Duration

	// EnablePooling lets the driver-side pool hand out more than one
	// backend session. Off by default: the bridge assumes one exclusive
	// session per connection.
	EnablePooling bool

	// PacketSize is a driver hint for the network packet size in bytes.
	// Forwarded where the driver understands it, ignored elsewhere.
	PacketSize int

	// MaxDiagnostics bounds the diagnostic records per error message.
	// Zero selects DefaultMaxDiagnostics.
	MaxDiagnostics int
}

type connection struct {
	db      *sql.DB
	session *sql.Conn
	dialect driver.Dialect
	caps    driver.Capabilities
}

var _ driver.Connection = (*connection)(nil)

// Open establishes a session against the configured data source. The
// returned connection owns both the pinned session and the pool handle.
func Open(ctx context.Context, cfg Config) (driver.Connection, error) {
	dsn := cfg.DSN
	if cfg.PacketSize > 0 && cfg.DriverName == "mysql" {
		dsn = appendDSNParam(dsn, "maxAllowedPacket", strconv.Itoa(cfg.PacketSize))
	}

	db, err := sql.Open(cfg.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", cfg.DriverName, err)
	}

	if !cfg.EnablePooling {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoginTimeout)

		defer cancel()
	}

	session, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("establish session: %w", err)
	}

	if err := session.PingContext(ctx); err != nil {
		_ = session.Close()
		_ = db.Close()

		return nil, fmt.Errorf("login: %w", err)
	}

	maxDiag := cfg.MaxDiagnostics
	if maxDiag == 0 {
		maxDiag = DefaultMaxDiagnostics
	}

	return &connection{
		db:      db,
		session: session,
		dialect: driver.DialectFor(cfg.DriverName),
		caps: driver.Capabilities{
			DriverName:     cfg.DriverName,
			MaxDiagnostics: maxDiag,
		},
	}, nil
}

func appendDSNParam(dsn, key, value string) string {
	sep := "?"
	if u, err := url.Parse(dsn); err == nil && u.RawQuery != "" {
		sep = "&"
	}

	return dsn + sep + key + "=" + value
}

func (c *connection) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	r, err := c.session.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &rows{rows: r}, nil
}

func (c *connection) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.session.ExecContext(ctx, query, args...)

	return err
}

func (c *connection) Dialect() driver.Dialect { return c.dialect }

func (c *connection) Capabilities() driver.Capabilities { return c.caps }

func (c *connection) Close() error {
	err := c.session.Close()
	if dberr := c.db.Close(); err == nil {
		err = dberr
	}

	return err
}

type rows struct {
	rows *sql.Rows
}

var _ driver.Rows = (*rows)(nil)

func (r *rows) Columns() ([]mapping.Descriptor, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	descs := make([]mapping.Descriptor, 0, len(types))

	for _, ct := range types {
		desc := mapping.ParseTypeName(ct.DatabaseTypeName())
		desc.Name = ct.Name()

		if precision, scale, ok := ct.DecimalSize(); ok {
			desc.Precision = int32(precision)
			desc.Scale = int32(scale)
		}

		if length, ok := ct.Length(); ok && desc.Precision == 0 {
			desc.Precision = int32(length)
		}

		if nullable, ok := ct.Nullable(); ok {
			desc.Nullable = nullable
		} else if !desc.Nullable {
			// When the driver cannot tell, assume nullable: a spurious
			// validity bitmap is harmless, a missing one is not.
			desc.Nullable = true
		}

		descs = append(descs, desc)
	}

	return descs, nil
}

func (r *rows) Next() bool { return r.rows.Next() }

func (r *rows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *rows) NextResultSet() bool { return r.rows.NextResultSet() }

func (r *rows) Err() error { return r.rows.Err() }

func (r *rows) Close() error { return r.rows.Close() }
