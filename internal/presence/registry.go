package presence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionStream = "sessions_stream"

// Binding pairs a user identity with its currently-active connection id.
type Binding struct {
	Identity string
	ConnID   string
}

// Registry binds ephemeral connection ids to durable user identities.
// The local maps cover connections owned by this process; the Store
// mirrors identity -> connID across the fleet. A nil Store is the
// documented local-only degraded mode.
//
// Known race left as-is: two near-simultaneous connects for one identity
// on different processes land in whichever order their SETs arrive, so
// the shared binding may name either connection. The compare-and-delete
// in Unbind only resolves the old-disconnect-after-new-connect case.
type Registry struct {
	store Store
	rdc   *redis.Client // session event stream; optional

	mu         sync.Mutex
	byConn     map[string]string // connID -> identity
	byIdentity map[string]string // identity -> connID
}

func NewRegistry(store Store, rdc *redis.Client) *Registry {
	return &Registry{
		store:      store,
		rdc:        rdc,
		byConn:     make(map[string]string),
		byIdentity: make(map[string]string),
	}
}

// Bind records connID as the active connection for identity. Newest wins:
// an existing binding for the same identity is overwritten both locally
// and in the shared store. Store failures degrade to local-only, never
// fail the connect.
func (r *Registry) Bind(ctx context.Context, identity, connID string) {
	r.mu.Lock()
	if old, ok := r.byIdentity[identity]; ok {
		delete(r.byConn, old)
	}
	r.byConn[connID] = identity
	r.byIdentity[identity] = connID
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Set(ctx, identity, connID); err != nil {
			zap.L().Warn("presence.bind_store", zap.String("uid", identity), zap.Error(err))
		}
	}
	r.appendSessionEvent(ctx, identity, connID, "connect")
}

// Unbind removes the binding for connID, locally and in the shared store,
// but only while the binding still names connID. A disconnect arriving
// after a reconnect has superseded the connection is a no-op.
func (r *Registry) Unbind(ctx context.Context, identity, connID string) {
	r.mu.Lock()
	if cur, ok := r.byIdentity[identity]; ok && cur == connID {
		delete(r.byIdentity, identity)
	}
	delete(r.byConn, connID)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteIfEquals(ctx, identity, connID); err != nil {
			zap.L().Warn("presence.unbind_store", zap.String("uid", identity), zap.Error(err))
		}
	}
	r.appendSessionEvent(ctx, identity, connID, "disconnect")
}

// IdentityFor resolves a locally-owned connection id.
func (r *Registry) IdentityFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byConn[connID]
	return id, ok
}

// LocalConn returns the connection id this process holds for identity.
func (r *Registry) LocalConn(identity string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byIdentity[identity]
	return c, ok
}

// ActiveConn consults the shared store for the fleet-wide binding. Empty
// result plus nil error means the identity is offline (or the store is
// absent and the identity is not on this process).
func (r *Registry) ActiveConn(ctx context.Context, identity string) (string, error) {
	if c, ok := r.LocalConn(identity); ok {
		return c, nil
	}
	if r.store == nil {
		return "", nil
	}
	return r.store.Get(ctx, identity)
}

// LocalBindings snapshots every binding owned by this process, for the
// periodic TTL refresher.
func (r *Registry) LocalBindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, 0, len(r.byIdentity))
	for id, conn := range r.byIdentity {
		out = append(out, Binding{Identity: id, ConnID: conn})
	}
	return out
}

func (r *Registry) appendSessionEvent(ctx context.Context, identity, connID, event string) {
	if r.rdc == nil {
		return
	}
	err := r.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: sessionStream,
		Values: map[string]any{
			"uid": identity,
			"cid": connID,
			"ev":  event,
			"at":  time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		zap.L().Debug("presence.session_event", zap.Error(err))
	}
}
