// Package app wires configuration, stores and backends into a hold.Service
// for the binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-holds/internal/clock"
	"github.com/hackgods/availability-holds/internal/config"
	"github.com/hackgods/availability-holds/internal/db"
	"github.com/hackgods/availability-holds/internal/hold"
	"github.com/hackgods/availability-holds/internal/notify"
	redisclient "github.com/hackgods/availability-holds/internal/redis"
)

type App struct {
	Config  config.Config
	Pool    *pgxpool.Pool
	Redis   *redis.Client // nil when no backend needs it
	Service *hold.Service

	closers []func() error
}

// New connects Postgres, Redis when configured, and the notify backend.
// Callers must Close the returned App.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PgMaxConns})
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	log.Println("connected to Postgres")

	// Connect Redis
	if cfg.NeedsRedis() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb.Close)
		log.Println("connected to Redis")
	}

	locker, err := NewLocker(cfg, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, closeNotifier, err := notify.FromConfig(cfg, a.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("notify backend error: %w", err)
	}
	a.closers = append(a.closers, closeNotifier)

	a.Service = hold.NewService(
		hold.NewPgRepository(pool),
		locker,
		notifier,
		clock.NewSystem(),
		ServiceOptions(cfg)...,
	)

	log.Printf("hold service ready: hold_ttl=%s lock_backend=%s notify_backend=%s",
		cfg.HoldTTL, cfg.LockBackend, cfg.NotifyBackend)
	return a, nil
}

// NewLocker returns the per-holdee lock named by LOCK_BACKEND.
func NewLocker(cfg config.Config, rdb *redis.Client) (hold.Locker, error) {
	switch cfg.LockBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis lock backend needs a redis client")
		}
		return redisclient.NewRedisHoldeeLocker(rdb, cfg.LockTTL, cfg.LockWait), nil
	case "local":
		return hold.NewLocalLocker(cfg.LockWait), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

func ServiceOptions(cfg config.Config) []hold.Option {
	return []hold.Option{
		hold.WithHoldTTL(cfg.HoldTTL),
		hold.WithNotifyTimeout(cfg.NotifyTimeout),
		hold.WithSweepBatchSize(cfg.SweepBatchSize),
		hold.WithRejectOccupied(cfg.RejectOccupied),
	}
}

// Close releases everything New opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("error during close: %v", err)
		}
	}
	a.closers = nil
}
