package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"user-records-api/cmd/api/infrastructure"
	"user-records-api/internal/adapter/db/pool"
	"user-records-api/internal/adapter/db/postgres"
	ginhandler "user-records-api/internal/adapter/gin/handler"
	"user-records-api/internal/adapter/gin/middleware"
	ginrouter "user-records-api/internal/adapter/gin/router"
	"user-records-api/internal/config"
	"user-records-api/internal/observability"
	"user-records-api/internal/usecase/user"
	redisclient "user-records-api/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Pool        *pool.Pool
	RedisClient *redisclient.Client
	Metrics     *observability.Metrics
	UserUC      user.UserUsecase
	RateLimiter *middleware.RateLimiter
	UserHandler *ginhandler.UserHandler
	MetaHandler *ginhandler.MetaHandler
}

// NewContainer creates and initializes all application dependencies.
// Resources opened before a failure are released.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (c *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c = &Container{Config: cfg, Logger: l}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	// Initialize database
	c.Pool, err = infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.App.MetricsEnabled {
		c.Metrics = observability.NewMetrics()
		if err = c.Metrics.RegisterDB(c.Pool.SQLDB(), cfg.DB.Name); err != nil {
			return nil, fmt.Errorf("failed to register pool metrics: %w", err)
		}
	}

	// Redis only backs the rate limiter
	if cfg.RateLimit.Enabled {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.RateLimiter = middleware.NewRateLimiter(
			c.RedisClient.Client,
			middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
			},
			c.Metrics,
			l,
		)
	}

	repo := postgres.NewUserRepoPG(c.Pool, l)
	c.UserUC = user.New(repo, l)

	c.UserHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.MetaHandler = ginhandler.NewMetaHandler(ginhandler.ServiceInfo{
		Name:      cfg.Logger.ServiceName,
		Version:   cfg.Logger.ServiceVersion,
		Endpoints: ginrouter.Endpoints,
	}, c.Pool, l)

	return c, nil
}

// RouterDeps returns what the HTTP router needs from the container.
func (c *Container) RouterDeps() ginrouter.Deps {
	return ginrouter.Deps{
		UserHandler:    c.UserHandler,
		MetaHandler:    c.MetaHandler,
		RateLimiter:    c.RateLimiter,
		Metrics:        c.Metrics,
		SwaggerEnabled: c.Config.App.SwaggerEnabled,
		Log:            c.Logger,
	}
}

// Close drains the connection pool and closes the Redis client. ctx bounds
// the wait for in-flight database work.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.Pool != nil {
		if err := c.Pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
