package arrowodbc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/driver/databasesql"
	"github.com/arrowodbc/arrow-odbc-go/driver/pgxv5"
)

var poolingEnabled atomic.Bool

// EnableConnectionPooling lets driver-side pools hand out more than one
// backend session per connection. Affects connections opened afterwards;
// there is no way to turn it off again.
func EnableConnectionPooling() {
	poolingEnabled.Store(true)
}

// Connection is an open session whose ownership has not yet moved into a
// reader or a writer. Construction of either consumes the connection, even
// when construction fails.
type Connection struct {
	drv      driver.Connection
	consumed bool
}

// NewConnection wraps a session opened through a custom driver boundary
// implementation. The connection takes ownership of drv.
func NewConnection(drv driver.Connection) *Connection {
	return &Connection{drv: drv}
}

// ConnectOption adjusts session establishment.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	user         string
	password     string
	loginTimeout time.Duration
	packetSize   int
}

// WithUser overrides the user of the descriptor.
func WithUser(user string) ConnectOption {
	return func(o *connectOptions) { o.user = user }
}

// WithPassword overrides the password of the descriptor.
func WithPassword(password string) ConnectOption {
	return func(o *connectOptions) { o.password = password }
}

// WithLoginTimeout bounds connection establishment.
func WithLoginTimeout(d time.Duration) ConnectOption {
	return func(o *connectOptions) { o.loginTimeout = d }
}

// WithPacketSize hints the network packet size in bytes to drivers that
// understand it.
func WithPacketSize(bytes int) ConnectOption {
	return func(o *connectOptions) { o.packetSize = bytes }
}

// Connect establishes a session described by an ODBC-style descriptor of
// semicolon-separated key=value pairs, for example
//
//	Driver=pgx;DSN=postgres://localhost:5432/db;UID=app;PWD=secret
//
// Recognized keys are Driver, DSN, UID and PWD; values containing
// semicolons go in braces. Driver values pgx, postgres and postgresql
// select the native PostgreSQL session; any other value names a registered
// database/sql driver.
func Connect(ctx context.Context, descriptor string, opts ...ConnectOption) (*Connection, error) {
	fields, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	options := connectOptions{
		user:         fields["uid"],
		password:     fields["pwd"],
		loginTimeout: secondsField(fields, "logintimeout"),
		packetSize:   intField(fields, "packetsize"),
	}
	for _, opt := range opts {
		opt(&options)
	}

	driverName := fields["driver"]
	if driverName == "" {
		return nil, fmt.Errorf("descriptor names no driver: %w", ErrMalformedDescriptor)
	}

	dsn := fields["dsn"]

	var drv driver.Connection

	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql":
		drv, err = pgxv5.Open(ctx, pgxv5.Config{
			DSN:          dsn,
			User:         options.user,
			Password:     options.password,
			LoginTimeout: options.loginTimeout,
		})
	default:
		drv, err = databasesql.Open(ctx, databasesql.Config{
			DriverName:    driverName,
			DSN:           injectCredentials(dsn, options.user, options.password),
			LoginTimeout:  options.loginTimeout,
			EnablePooling: poolingEnabled.Load(),
			PacketSize:    options.packetSize,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("connect via %q: %w", driverName, err)
	}

	log().Debug("session established", zap.String("driver", drv.Capabilities().DriverName))

	return &Connection{drv: drv}, nil
}

// take moves the underlying session out of the connection. Every
// consumer calls it exactly once; a second call reports the moved
// ownership.
func (c *Connection) take() (driver.Connection, error) {
	if c.consumed {
		return nil, ErrConnectionConsumed
	}

	c.consumed = true

	return c.drv, nil
}

// Release closes the session. A connection already consumed by a reader
// or a writer cannot be released again.
func (c *Connection) Release() error {
	drv, err := c.take()
	if err != nil {
		return err
	}

	return drv.Close()
}

// parseDescriptor splits an ODBC-style connection descriptor into its
// fields. Keys compare case-insensitively; the first occurrence of a key
// wins. Braced values keep embedded semicolons.
func parseDescriptor(descriptor string) (map[string]string, error) {
	fields := make(map[string]string)

	rest := descriptor
	for rest != "" {
		key, after, found := strings.Cut(rest, "=")
		if !found {
			if strings.TrimSpace(rest) == "" {
				break
			}

			return nil, fmt.Errorf("token %q has no value: %w", rest, ErrMalformedDescriptor)
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || strings.Contains(key, ";") {
			return nil, fmt.Errorf("token %q has no key: %w", rest, ErrMalformedDescriptor)
		}

		var value string

		if strings.HasPrefix(after, "{") {
			end := strings.Index(after, "}")
			if end < 0 {
				return nil, fmt.Errorf("unterminated brace in value of %q: %w", key, ErrMalformedDescriptor)
			}

			value = after[1:end]
			rest = strings.TrimPrefix(after[end+1:], ";")
		} else {
			value, rest, _ = strings.Cut(after, ";")
		}

		if _, ok := fields[key]; !ok {
			fields[key] = value
		}
	}

	return fields, nil
}

func secondsField(fields map[string]string, key string) time.Duration {
	return time.Duration(intField(fields, key)) * time.Second
}

func intField(fields map[string]string, key string) int {
	v, err := strconv.Atoi(fields[key])
	if err != nil {
		return 0
	}

	return v
}

// injectCredentials folds UID and PWD into a URL-shaped DSN. DSNs in other
// shapes pass through unchanged and must carry their own credentials.
func injectCredentials(dsn, user, password string) string {
	if user == "" && password == "" {
		return dsn
	}

	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return dsn
	}

	if user == "" && u.User != nil {
		user = u.User.Username()
	}

	u.User = url.UserPassword(user, password)

	return u.String()
}
