package presencesync

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pairdrawgo/internal/presence"
)

const (
	bindingPrefix = "presence:"
	refreshEvery  = 30 * time.Second
	callTimeout   = 1500 * time.Millisecond
)

// Run periodically re-arms the TTL on every binding this process owns, so
// bindings only age out when their process actually dies. The refresh is
// compare-and-refresh: a binding already overwritten by a reconnect on
// another process is left alone.
func Run(ctx context.Context, rdc *redis.Client, reg *presence.Registry, ttl time.Duration) {
	tk := time.NewTicker(refreshEvery)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				refreshOnce(ctx, rdc, reg, ttl)
			}
		}
	}()
}

func refreshOnce(ctx context.Context, rdc *redis.Client, reg *presence.Registry, ttl time.Duration) {
	bindings := reg.LocalBindings()
	if len(bindings) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	// one pipelined round-trip for the whole process
	pipe := rdc.Pipeline()
	for _, b := range bindings {
		pipe.FCall(ctx, "presence_refresh",
			[]string{bindingPrefix + b.Identity},
			b.ConnID,
			ttl.Milliseconds(),
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Warn("presencesync.pipeline", zap.Error(err))
	}
}
