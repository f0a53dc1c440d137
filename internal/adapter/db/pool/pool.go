// Package pool bounds database access to a fixed number of connections and
// hands them out one unit of work at a time.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPoolExhausted is returned when no connection became free within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed is returned once Close has been called.
	ErrPoolClosed = errors.New("connection pool closed")
)

const defaultAcquireTimeout = 5 * time.Second

// Config holds pool sizing and timing.
type Config struct {
	MaxConns        int
	AcquireTimeout  time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Pool wraps the connection pool underneath a *gorm.DB.
type Pool struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   Config
	log   *zap.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New applies cfg to the connection pool of db.
func New(db *gorm.DB, cfg Config, log *zap.Logger) (*Pool, error) {
	if cfg.MaxConns <= 0 {
		return nil, fmt.Errorf("pool: max conns must be positive, got %d", cfg.MaxConns)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("pool: get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Pool{
		db:    db,
		sqlDB: sqlDB,
		cfg:   cfg,
		log:   log,
	}, nil
}

// WithConn borrows one connection for the duration of fn. The gorm session
// passed to fn issues every statement on that connection, and the connection
// goes back to the pool when fn returns, errors or panics.
func (p *Pool) WithConn(ctx context.Context, fn func(tx *gorm.DB) error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.RUnlock()
	defer p.inflight.Done()

	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			p.log.Warn("failed to release connection", zap.Error(err))
		}
	}()

	tx := p.db.WithContext(ctx)
	tx.Statement.ConnPool = conn
	return fn(tx)
}

func (p *Pool) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.sqlDB.Conn(acquireCtx)
	if err == nil {
		return conn, nil
	}

	// The caller's own deadline or cancellation wins over exhaustion.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		stats := p.sqlDB.Stats()
		p.log.Warn("connection pool exhausted",
			zap.Duration("acquire_timeout", p.cfg.AcquireTimeout),
			zap.Int("in_use", stats.InUse),
			zap.Int("max_open", stats.MaxOpenConnections),
			zap.Int64("wait_count", stats.WaitCount),
		)
		return nil, fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, p.cfg.AcquireTimeout)
	}
	return nil, fmt.Errorf("acquire connection: %w", err)
}

// Ping checks connectivity on a borrowed connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.WithConn(ctx, func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	})
}

// Close stops new acquisitions, waits for in-flight units of work until ctx
// ends, and then closes every connection. Calling Close twice is a no-op.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = fmt.Errorf("pool: drain in-flight work: %w", ctx.Err())
		p.log.Warn("closing pool with work still in flight", zap.Int("in_use", p.sqlDB.Stats().InUse))
	}

	if err := p.sqlDB.Close(); err != nil {
		return errors.Join(drainErr, fmt.Errorf("pool: close connections: %w", err))
	}
	return drainErr
}

// Stats reports the underlying pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

// SQLDB exposes the underlying *sql.DB for collectors.
func (p *Pool) SQLDB() *sql.DB {
	return p.sqlDB
}

// Config returns the effective pool configuration.
func (p *Pool) Config() Config {
	return p.cfg
}
