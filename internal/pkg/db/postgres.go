// Package db provides PostgreSQL database connection management.
//
// The pool connects lazily: the first caller that needs a connection
// triggers the dial, and concurrent callers share the same in-flight
// attempt instead of racing to open duplicate pools.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"retro-league-bot/internal/config"
)

// State describes the connection lifecycle of a LazyPool.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// DialFunc opens a pgx pool for the given configuration. It is injectable
// so the connection state machine can be tested without a server.
type DialFunc func(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error)

// LazyPool wraps a pgxpool.Pool behind an explicit
// disconnected/connecting/connected state machine. Acquire connects on
// first use; duplicate concurrent connect attempts collapse into one.
type LazyPool struct {
	cfg  *config.DatabaseConfig
	dial DialFunc

	mu    sync.RWMutex
	state State
	pool  *pgxpool.Pool

	connect singleflight.Group
}

// NewLazyPool creates a LazyPool for the given configuration. The pool is
// not connected until Acquire or Connect is called.
func NewLazyPool(cfg *config.DatabaseConfig) *LazyPool {
	return &LazyPool{cfg: cfg, dial: dialPostgres}
}

// NewLazyPoolWithDial creates a LazyPool with a custom dial function.
func NewLazyPoolWithDial(cfg *config.DatabaseConfig, dial DialFunc) *LazyPool {
	return &LazyPool{cfg: cfg, dial: dial}
}

// Acquire returns the connected pool, dialing first if necessary.
// Concurrent callers during the dial all wait on the same attempt.
func (p *LazyPool) Acquire(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.RLock()
	if p.state == StateConnected {
		pool := p.pool
		p.mu.RUnlock()
		return pool, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.connect.Do("connect", func() (any, error) {
		// Re-check under the lock: another flight may have finished
		// between the fast path and joining this one.
		p.mu.Lock()
		if p.state == StateConnected {
			pool := p.pool
			p.mu.Unlock()
			return pool, nil
		}
		p.state = StateConnecting
		p.mu.Unlock()

		pool, err := p.dial(ctx, p.cfg)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.state = StateDisconnected
			return nil, err
		}
		p.state = StateConnected
		p.pool = pool
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// Connect eagerly establishes the connection. Used at startup where an
// unreachable database must abort the process.
func (p *LazyPool) Connect(ctx context.Context) error {
	_, err := p.Acquire(ctx)
	return err
}

// State returns the current connection state.
func (p *LazyPool) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Close closes the underlying pool if one was opened.
func (p *LazyPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
		log.Info().Msg("PostgreSQL connection pool closed")
	}
	p.state = StateDisconnected
}

// HealthCheck pings the database if connected.
func (p *LazyPool) HealthCheck(ctx context.Context) error {
	pool, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// dialPostgres opens and verifies a pgx pool.
func dialPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure pool settings
	poolConfig.MaxConns = int32(cfg.PoolSize)
	poolConfig.MinConns = int32(cfg.PoolSize / 4) // 25% of max as minimum
	if poolConfig.MinConns < 1 {
		poolConfig.MinConns = 1
	}

	// Connection timeouts
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	} else {
		poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	}

	// Connection lifetime settings
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	} else {
		poolConfig.MaxConnLifetime = time.Hour
	}

	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	} else {
		poolConfig.MaxConnIdleTime = 30 * time.Minute
	}

	// Health check settings
	poolConfig.HealthCheckPeriod = 30 * time.Second

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int("pool_size", cfg.PoolSize).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return pool, nil
}
