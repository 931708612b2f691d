package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options is the subset of connection settings the services configure.
// Zero values fall back to the defaults below.
type Options struct {
	Addr        string
	Username    string
	Password    string
	PoolSize    int
	IOTimeout   time.Duration
	PingTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = 2 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// Connect opens a client and fails fast when the server does not answer.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	opts = opts.withDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ReadTimeout:  opts.IOTimeout,
		WriteTimeout: opts.IOTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 1,
	})

	if err := Ping(rdb)(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Ping returns a readiness probe for rdb bounded to two seconds.
func Ping(rdb redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(ctx).Err()
	}
}
