package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects and pings. The pool is sized for many idle
// websocket connections sharing a handful of hot commands.
func NewRedisClient(ctx context.Context, host string, port int) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 4
	if maxPool > 256 {
		maxPool = 256
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		PoolSize: maxPool,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		zap.L().Error("redis_connect", zap.Error(err))
		_ = rc.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rc, nil
}
