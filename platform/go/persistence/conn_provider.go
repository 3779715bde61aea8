package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/platform/go/metrics"
)

const (
	setSearchPathSQL = `SELECT set_config('search_path', $1, false)`
	schemaExistsSQL  = `SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`

	defaultAcquireTimeout = 5 * time.Second
	defaultResetTimeout   = 5 * time.Second
)

// pooledConn is the slice of *pgxpool.Conn the provider relies on.
type pooledConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Release returns the connection to the pool.
	Release()
	// Discard takes the connection out of the pool and closes it.
	Discard(ctx context.Context) error
}

type connSource interface {
	Acquire(ctx context.Context) (pooledConn, error)
}

type pgxPooledConn struct {
	*pgxpool.Conn
}

func (c pgxPooledConn) Discard(ctx context.Context) error {
	return c.Hijack().Close(ctx)
}

type poolSource struct {
	pool *pgxpool.Pool
}

func (s poolSource) Acquire(ctx context.Context) (pooledConn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxPooledConn{Conn: conn}, nil
}

// ConnState tracks one borrow of a pooled connection: Idle -> Bound -> Reset -> Released.
// A connection whose reset fails ends in Discarded and never goes back to the pool.
type ConnState int

const (
	ConnIdle ConnState = iota
	ConnBound
	ConnReset
	ConnReleased
	ConnDiscarded
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnBound:
		return "bound"
	case ConnReset:
		return "reset"
	case ConnReleased:
		return "released"
	case ConnDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ScopedConn is a borrowed connection bound to at most one schema. It belongs to a single
// operation and is not safe for concurrent use.
type ScopedConn struct {
	conn   pooledConn
	state  ConnState
	schema string
}

// Schema returns the bound schema, or "" when unbound.
func (c *ScopedConn) Schema() string { return c.schema }

// State returns the current lifecycle state.
func (c *ScopedConn) State() ConnState { return c.state }

func (c *ScopedConn) usable() error {
	switch c.state {
	case ConnBound:
		return nil
	case ConnReleased, ConnDiscarded:
		return ErrConnReleased
	default:
		return ErrConnNotBound
	}
}

func (c *ScopedConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := c.usable(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return c.conn.Exec(ctx, sql, args...)
}

func (c *ScopedConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.conn.Query(ctx, sql, args...)
}

func (c *ScopedConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := c.usable(); err != nil {
		return errRow{err: err}
	}
	return c.conn.QueryRow(ctx, sql, args...)
}

func (c *ScopedConn) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.conn.BeginTx(ctx, opts)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// ConnProviderConfig configures NewConnProvider.
type ConnProviderConfig struct {
	Pool          *pgxpool.Pool
	DefaultSchema string
	// AcquireTimeout bounds waiting on an exhausted pool (default 5s).
	AcquireTimeout time.Duration
	// ResetTimeout bounds the search_path reset on release (default 5s).
	ResetTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// ConnProvider hands out pooled connections bound to one schema and guarantees the
// search_path is back on the default schema before a connection is reused.
type ConnProvider struct {
	source         connSource
	defaultSchema  string
	acquireTimeout time.Duration
	resetTimeout   time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

func NewConnProvider(cfg ConnProviderConfig) *ConnProvider {
	if cfg.Pool == nil {
		panic("ConnProvider requires pool")
	}
	return newConnProvider(poolSource{pool: cfg.Pool}, cfg)
}

func newConnProvider(source connSource, cfg ConnProviderConfig) *ConnProvider {
	defaultSchema := strings.TrimSpace(cfg.DefaultSchema)
	if defaultSchema == "" {
		panic("ConnProvider requires default schema")
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ConnProvider{
		source:         source,
		defaultSchema:  defaultSchema,
		acquireTimeout: cfg.AcquireTimeout,
		resetTimeout:   cfg.ResetTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

// DefaultSchema returns the schema every released connection is reset to.
func (p *ConnProvider) DefaultSchema() string { return p.defaultSchema }

// Acquire borrows an unbound connection, waiting at most the acquire timeout.
func (p *ConnProvider) Acquire(ctx context.Context) (*ScopedConn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.source.Acquire(ctx)
	if err != nil {
		p.metrics.AcquireFailed()
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrUnavailable, err)
	}
	return &ScopedConn{conn: conn, state: ConnIdle}, nil
}

// Bind points the connection's search_path at schema. The schema must already exist.
func (p *ConnProvider) Bind(ctx context.Context, c *ScopedConn, schema string) error {
	if c.state != ConnIdle {
		return fmt.Errorf("%w: connection is %s", ErrSchemaBindFailed, c.state)
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return fmt.Errorf("%w: schema name is empty", ErrSchemaBindFailed)
	}

	var exists bool
	if err := c.conn.QueryRow(ctx, schemaExistsSQL, schema).Scan(&exists); err != nil {
		p.metrics.SchemaBind("error")
		return fmt.Errorf("%w: check schema %q: %w", ErrSchemaBindFailed, schema, err)
	}
	if !exists {
		p.metrics.SchemaBind("missing_schema")
		return fmt.Errorf("%w: schema %q does not exist", ErrSchemaBindFailed, schema)
	}

	if _, err := c.conn.Exec(ctx, setSearchPathSQL, pgx.Identifier{schema}.Sanitize()); err != nil {
		p.metrics.SchemaBind("error")
		return fmt.Errorf("%w: set search_path to %q: %w", ErrSchemaBindFailed, schema, err)
	}

	c.state = ConnBound
	c.schema = schema
	p.metrics.SchemaBind("ok")
	return nil
}

// Release resets the search_path to the default schema and returns the connection to the
// pool. The reset runs even when ctx is already cancelled. If it fails the connection is
// closed instead of pooled and the error is returned.
func (p *ConnProvider) Release(ctx context.Context, c *ScopedConn) error {
	if c == nil {
		return nil
	}
	if c.state == ConnReleased || c.state == ConnDiscarded {
		return ErrConnReleased
	}

	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.resetTimeout)
	defer cancel()

	bound := c.schema
	c.state = ConnReset
	c.schema = ""

	if _, err := c.conn.Exec(resetCtx, setSearchPathSQL, pgx.Identifier{p.defaultSchema}.Sanitize()); err != nil {
		p.metrics.ConnReset("discarded")
		discardErr := c.conn.Discard(resetCtx)
		c.state = ConnDiscarded
		p.logger.Error("search_path reset failed, connection discarded",
			zap.String("schema", bound),
			zap.Error(err),
			zap.NamedError("discard_error", discardErr),
		)
		return errors.Join(fmt.Errorf("reset search_path: %w", err), discardErr)
	}

	p.metrics.ConnReset("ok")
	c.conn.Release()
	c.state = ConnReleased
	return nil
}

// WithSchema borrows a connection bound to schema for the duration of fn. Release always
// runs, including when fn fails, panics or ctx is cancelled.
func (p *ConnProvider) WithSchema(ctx context.Context, schema string, fn func(conn *ScopedConn) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := p.Release(ctx, conn); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	if err = p.Bind(ctx, conn, schema); err != nil {
		return err
	}
	return fn(conn)
}
