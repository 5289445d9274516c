// Package drivertest provides a scripted driver boundary implementation
// for tests: result sets are declared up front and played back through the
// same interfaces a real driver would serve.
package drivertest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
)

// ResultSet is one scripted result set: its column descriptors, its rows
// in row-major order, and an optional error reported after the last row.
type ResultSet struct {
	Descs []mapping.Descriptor
	Rows  [][]any
	Err   error
}

// Exec records one Exec call observed by the connection.
type Exec struct {
	Query string
	Args  []any
}

// Connection plays back scripted result sets and records statements.
type Connection struct {
	// Sets are served in order, one Query consuming all of them as the
	// statement's result sets.
	Sets []ResultSet

	// QueryErr fails Query immediately.
	QueryErr error

	// ExecErr fails every Exec.
	ExecErr error

	// Execs accumulates the Exec calls made against the connection.
	Execs []Exec

	// Caps is reported verbatim; the zero value gets a driver name.
	Caps driver.Capabilities

	// Dial overrides the reported dialect. Defaults to AnsiDialect.
	Dial driver.Dialect

	Closed bool
}

var _ driver.Connection = (*Connection)(nil)

func (c *Connection) Query(_ context.Context, _ string, _ ...any) (driver.Rows, error) {
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}

	return &Rows{sets: c.Sets}, nil
}

func (c *Connection) Exec(_ context.Context, query string, args ...any) error {
	if c.ExecErr != nil {
		return c.ExecErr
	}

	c.Execs = append(c.Execs, Exec{Query: query, Args: args})

	return nil
}

func (c *Connection) Dialect() driver.Dialect {
	if c.Dial != nil {
		return c.Dial
	}

	return driver.AnsiDialect{}
}

func (c *Connection) Capabilities() driver.Capabilities {
	caps := c.Caps
	if caps.DriverName == "" {
		caps.DriverName = "scripted"
	}

	return caps
}

func (c *Connection) Close() error {
	if c.Closed {
		return fmt.Errorf("connection closed twice")
	}

	c.Closed = true

	return nil
}

// Rows is the playback cursor over a connection's scripted result sets.
type Rows struct {
	sets   []ResultSet
	set    int
	row    int
	err    error
	closed bool
}

var _ driver.Rows = (*Rows)(nil)

func (r *Rows) Columns() ([]mapping.Descriptor, error) {
	if r.set >= len(r.sets) {
		return nil, nil
	}

	return r.sets[r.set].Descs, nil
}

func (r *Rows) Next() bool {
	if r.err != nil || r.set >= len(r.sets) {
		return false
	}

	set := r.sets[r.set]

	if r.row >= len(set.Rows) {
		r.err = set.Err

		return false
	}

	r.row++

	return true
}

func (r *Rows) Scan(dest ...any) error {
	set := r.sets[r.set]
	values := set.Rows[r.row-1]

	if len(dest) != len(values) {
		return fmt.Errorf("scan of %d destinations against %d values", len(dest), len(values))
	}

	for i, v := range values {
		if err := assign(dest[i], v); err != nil {
			return fmt.Errorf("column #%d: %w", i, err)
		}
	}

	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case sql.Scanner:
		return d.Scan(v)
	case *[]byte:
		switch s := v.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = append([]byte(nil), s...)
		case string:
			*d = []byte(s)
		default:
			return fmt.Errorf("cannot assign %T to *[]byte", v)
		}

		return nil
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
}

func (r *Rows) NextResultSet() bool {
	if r.set >= len(r.sets) {
		return false
	}

	r.set++
	r.row = 0
	r.err = nil

	return r.set < len(r.sets)
}

func (r *Rows) Err() error { return r.err }

func (r *Rows) Close() error {
	r.closed = true

	return nil
}
