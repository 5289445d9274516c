// Package pgxv5 is the native PostgreSQL driver for the bridge. Unlike the
// database/sql adapter it reads column metadata straight from the wire
// protocol, so numeric precision, scale and declared text widths survive
// into the descriptors instead of collapsing to unknown.
package pgxv5

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// Config describes how to open a PostgreSQL session.
type Config struct {
	// DSN is a libpq-style connection string or URL.
	DSN string

	User     string
	Password string

	// LoginTimeout bounds connection establishment. Zero means no bound.
	LoginTimeout time.Duration

	// MaxDiagnostics bounds the diagnostic records per error message.
	MaxDiagnostics int
}

type connection struct {
	conn *pgx.Conn
	caps driver.Capabilities
}

var _ driver.Connection = (*connection)(nil)

// Open establishes a single PostgreSQL session.
func Open(ctx context.Context, cfg Config) (driver.Connection, error) {
	pc, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.User != "" {
		pc.User = cfg.User
	}

	if cfg.Password != "" {
		pc.Password = cfg.Password
	}

	if cfg.LoginTimeout > 0 {
		pc.ConnectTimeout = cfg.LoginTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	maxDiag := cfg.MaxDiagnostics
	if maxDiag == 0 {
		maxDiag = 64
	}

	return &connection{
		conn: conn,
		caps: driver.Capabilities{
			DriverName:     "pgx",
			MaxDiagnostics: maxDiag,
		},
	}, nil
}

func (c *connection) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	r, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &rows{rows: r}, nil
}

func (c *connection) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.conn.Exec(ctx, query, args...)

	return err
}

func (c *connection) Dialect() driver.Dialect { return driver.PostgresDialect{} }

func (c *connection) Capabilities() driver.Capabilities { return c.caps }

func (c *connection) Close() error { return c.conn.Close(context.Background()) }

type rows struct {
	rows pgx.Rows
}

var _ driver.Rows = (*rows)(nil)

func (r *rows) Columns() ([]mapping.Descriptor, error) {
	fields := r.rows.FieldDescriptions()
	descs := make([]mapping.Descriptor, 0, len(fields))

	for _, fd := range fields {
		descs = append(descs, descriptorFromField(fd))
	}

	return descs, nil
}

// descriptorFromField translates one RowDescription field into a column
// descriptor. The type modifier carries what ODBC would call column size:
// for varchar it is the declared length plus the 4 byte varlena header,
// for numeric it packs precision and scale into one int32.
func descriptorFromField(fd pgconn.FieldDescription) mapping.Descriptor {
	desc := mapping.Descriptor{Name: fd.Name, Nullable: true}

	switch fd.DataTypeOID {
	case pgtype.BoolOID:
		desc.Type = mapping.SQLBoolean
	case pgtype.Int2OID:
		desc.Type = mapping.SQLSmallInt
	case pgtype.Int4OID:
		desc.Type = mapping.SQLInteger
	case pgtype.Int8OID:
		desc.Type = mapping.SQLBigInt
	case pgtype.Float4OID:
		desc.Type = mapping.SQLReal
		desc.Precision = 24
	case pgtype.Float8OID:
		desc.Type = mapping.SQLDouble
		desc.Precision = 53
	case pgtype.NumericOID:
		desc.Type = mapping.SQLNumeric
		if mod := fd.TypeModifier - 4; fd.TypeModifier >= 4 {
			desc.Precision = (mod >> 16) & 0xffff
			desc.Scale = mod & 0xffff
		}
	case pgtype.VarcharOID:
		desc.Type = mapping.SQLVarChar
		if fd.TypeModifier >= 4 {
			desc.Precision = fd.TypeModifier - 4
		}
	case pgtype.BPCharOID:
		desc.Type = mapping.SQLChar
		if fd.TypeModifier >= 4 {
			desc.Precision = fd.TypeModifier - 4
		}
	case pgtype.TextOID, pgtype.NameOID:
		desc.Type = mapping.SQLLongVarChar
	case pgtype.ByteaOID:
		desc.Type = mapping.SQLLongVarBinary
	case pgtype.DateOID:
		desc.Type = mapping.SQLDate
	case pgtype.TimeOID:
		desc.Type = mapping.SQLTime
		desc.Scale = fractionalSeconds(fd.TypeModifier, 6)
	case pgtype.TimestampOID:
		desc.Type = mapping.SQLTimestamp
		desc.Scale = fractionalSeconds(fd.TypeModifier, 6)
	case pgtype.TimestamptzOID:
		desc.Type = mapping.SQLTimestampTz
		desc.Scale = fractionalSeconds(fd.TypeModifier, 6)
	case pgtype.UUIDOID:
		desc.Type = mapping.SQLGUID
		desc.Precision = 36
	default:
		// Renders through the text protocol; width unknown until fetched.
		desc.Type = mapping.SQLVarChar
	}

	return desc
}

func fractionalSeconds(typeModifier int32, def int32) int32 {
	if typeModifier < 0 {
		return def
	}

	return typeModifier
}

func (r *rows) Next() bool { return r.rows.Next() }

func (r *rows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

// NextResultSet always reports false: the simple query multi-statement
// flow is not part of the native session's surface.
func (r *rows) NextResultSet() bool { return false }

func (r *rows) Err() error { return r.rows.Err() }

func (r *rows) Close() error {
	r.rows.Close()

	return r.rows.Err()
}
