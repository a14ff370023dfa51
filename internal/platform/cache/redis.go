package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the shared redis client used for sessions and
// realtime broadcasts.
type Options struct {
	Addr        string
	DB          int
	PoolSize    int
	PingTimeout time.Duration
}

const defaultPingTimeout = 5 * time.Second

// NewClient builds a client without touching the network.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
}

// New builds a client and fails when redis does not answer a ping in time.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := NewClient(opts)
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
