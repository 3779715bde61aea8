package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds the pool settings the binaries read from the environment.
// Zero values keep the pgx defaults.
type PoolConfig struct {
	ConnString string
	// DefaultSchema becomes the search_path of every new connection.
	DefaultSchema string
	// ApplicationName shows up in pg_stat_activity.
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	// ConnectTimeout bounds dialing and the startup ping.
	ConnectTimeout time.Duration
}

// NewPool opens a pool and pings the server before returning it.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.ConnString) == "" {
		return nil, errors.New("database connection string is required")
	}

	pc, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	params := pc.ConnConfig.RuntimeParams
	if schema := strings.TrimSpace(cfg.DefaultSchema); schema != "" {
		params["search_path"] = schema
	}
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return pool, nil
}

// ClosePool closes pool if it is not nil.
func ClosePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
