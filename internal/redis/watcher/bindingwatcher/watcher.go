package bindingwatcher

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	bindingPrefix  = "presence:"
	dirCachePrefix = "dir:"
)

// Run listens for expired identity-binding keys (a process died without
// unbinding) and invalidates the directory cache entries for the affected
// identity. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, bindingPrefix) {
				continue
			}
			identity := strings.TrimPrefix(m.Payload, bindingPrefix)
			invalidateDirectoryCache(ctx, rdb, identity)
		}
	}
}

// invalidateDirectoryCache scans dir:<identity>:* and bulk-deletes the
// matches, so a stale last-known address is not served after the binding
// has aged out.
func invalidateDirectoryCache(ctx context.Context, rdb *redis.Client, identity string) {
	var (
		cursor  uint64
		deleted int
	)
	pattern := dirCachePrefix + identity + ":*"
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			zap.L().Warn("bindingwatcher.scan", zap.String("uid", identity), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				zap.L().Warn("bindingwatcher.del", zap.Error(err))
				return
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		zap.L().Debug("bindingwatcher.invalidated",
			zap.String("uid", identity), zap.Int("keys", deleted))
	}
}
