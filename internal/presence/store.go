package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const bindingKeyPrefix = "presence:"

// ErrStoreUnavailable reports a distributed-store round trip that did not
// complete; callers degrade to local-only behaviour instead of failing the
// connection event.
var ErrStoreUnavailable = errors.New("binding store unavailable")

// Store is the narrow contract the registry needs from the shared
// identity-binding store. The Redis implementation backs production;
// MemoryStore stands in for it in tests.
type Store interface {
	// Set unconditionally binds identity -> connID (last writer wins).
	Set(ctx context.Context, identity, connID string) error
	// Get returns the bound connID, or "" when no binding exists.
	Get(ctx context.Context, identity string) (string, error)
	// DeleteIfEquals removes the binding only while it still points at
	// connID. A superseded binding is left untouched.
	DeleteIfEquals(ctx context.Context, identity, connID string) error
}

// Bounded retry keeps a store outage from stalling connection handling:
// a few quick attempts, then give up and let the caller degrade.
const (
	storeCallTimeout = 2 * time.Second
	storeRetries     = 2
	storeBackoff     = 100 * time.Millisecond
)

type redisStore struct {
	rdc *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdc *redis.Client, ttl time.Duration) Store {
	return &redisStore{rdc: rdc, ttl: ttl}
}

func (s *redisStore) call(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= storeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrStoreUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * storeBackoff):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, storeCallTimeout)
		err = op(callCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return errors.Join(ErrStoreUnavailable, err)
}

func (s *redisStore) Set(ctx context.Context, identity, connID string) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.rdc.Set(ctx, bindingKeyPrefix+identity, connID, s.ttl).Err()
	})
}

func (s *redisStore) Get(ctx context.Context, identity string) (string, error) {
	var v string
	err := s.call(ctx, func(ctx context.Context) error {
		res, err := s.rdc.Get(ctx, bindingKeyPrefix+identity).Result()
		if errors.Is(err, redis.Nil) {
			return nil // offline, not an outage
		}
		v = res
		return err
	})
	return v, err
}

// DeleteIfEquals calls the presence_release Redis Function, which holds the
// compare and the delete in one atomic server-side step.
func (s *redisStore) DeleteIfEquals(ctx context.Context, identity, connID string) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.rdc.FCall(ctx, "presence_release",
			[]string{bindingKeyPrefix + identity},
			connID,
		).Err()
	})
}

// MemoryStore is the in-process test double for Store. Safe for
// concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	bindings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: make(map[string]string)}
}

func (s *MemoryStore) Set(_ context.Context, identity, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[identity] = connID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[identity], nil
}

func (s *MemoryStore) DeleteIfEquals(_ context.Context, identity, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindings[identity] == connID {
		delete(s.bindings, identity)
	}
	return nil
}
