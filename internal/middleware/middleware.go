package middleware

import (
	"context"
	"time"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/logger"
)

// counter is the Redis surface the rate limiter needs
type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	KeyTTL(ctx context.Context, key string) (time.Duration, error)
}

// Middleware holds all HTTP middleware
type Middleware struct {
	counter counter
	log     *logger.Logger
	cfg     *config.Config
}

// New creates a new Middleware instance. rdb may be nil, which turns rate
// limiting off.
func New(rdb *database.Redis, log *logger.Logger, cfg *config.Config) *Middleware {
	m := &Middleware{
		log: log,
		cfg: cfg,
	}
	if rdb != nil {
		m.counter = rdb
	}
	return m
}
