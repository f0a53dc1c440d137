package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"user-records-api/internal/adapter/db/pool"
	"user-records-api/internal/config"
	"user-records-api/pkg/logger"
)

// NewDatabase opens the PostgreSQL connection pool and verifies it within
// the configured connect timeout. Any failure aborts startup.
func NewDatabase(ctx context.Context, cfg *config.Config, l *zap.Logger) (*pool.Pool, error) {
	gormLogger := logger.NewGormLogger(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level)

	db, err := gorm.Open(pgdriver.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		TranslateError:         true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	p, err := pool.New(db, pool.Config{
		MaxConns:        cfg.DB.PoolSize,
		AcquireTimeout:  cfg.DB.PoolTimeout(),
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime(),
	}, l)
	if err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DB.ConnectTimeout())
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		_ = p.Close(context.Background())
		return nil, fmt.Errorf("failed to connect to database at %s:%s: %w", cfg.DB.Host, cfg.DB.Port, err)
	}

	l.Info("database connected successfully",
		zap.Int("pool_size", cfg.DB.PoolSize),
		zap.Duration("pool_timeout", cfg.DB.PoolTimeout()),
		zap.Int("conn_max_lifetime_seconds", cfg.DB.ConnMaxLifetimeSeconds),
		zap.Int("conn_max_idle_time_seconds", cfg.DB.ConnMaxIdleTimeSeconds),
	)

	return p, nil
}
