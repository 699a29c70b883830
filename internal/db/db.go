package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultConnectTimeout = 30 * time.Second

var ErrMissingAddr = errors.New("db: address is not configured")

type Config struct {
	Addr        string
	MaxConns    int32
	MaxIdleTime string
	// ConnectTimeout bounds pool start-up and the first ping.
	ConnectTimeout time.Duration
}

// New opens a pgx pool and pings it once before handing it out.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddr
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse db address: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxIdleTime != "" {
		idle, err := time.ParseDuration(cfg.MaxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("parse max idle time: %w", err)
		}
		poolCfg.MaxConnIdleTime = idle
	}
	return poolCfg, nil
}
