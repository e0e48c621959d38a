package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// relayMessage is the wire shape on the per-room Redis channel. Origin is
// the publishing process's instance id; a process drops its own messages
// on receipt so local members never see a frame twice.
type relayMessage struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Fanout bridges the local hub to the distributed pub/sub channel. It
// guarantees **exactly one** Redis subscription per "room:<id>:events"
// channel ― no matter how many websocket clients join the same room on
// this process. A nil *Fanout is the single-process degraded mode; all
// methods are nil-safe.
type Fanout struct {
	rdb    *redis.Client
	hub    *Hub
	origin string
	mu     sync.Mutex
	subs   map[string]*subEntry // roomID ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func NewFanout(rdb *redis.Client, hub *Hub, origin string) *Fanout {
	return &Fanout{
		rdb:    rdb,
		hub:    hub,
		origin: origin,
		subs:   make(map[string]*subEntry),
	}
}

func roomChannel(roomID string) string { return "room:" + roomID + ":events" }

// Publish forwards one event to the room's channel. Publish failures
// degrade to local-only delivery and are logged, never surfaced to the
// sending connection.
func (f *Fanout) Publish(ctx context.Context, roomID, event string, body json.RawMessage) {
	if f == nil {
		return
	}
	payload, err := json.Marshal(relayMessage{Origin: f.origin, Event: event, Body: body})
	if err != nil {
		return
	}
	if err := f.rdb.Publish(ctx, roomChannel(roomID), payload).Err(); err != nil {
		zap.L().Warn("ws.fanout_publish", zap.String("room", roomID), zap.Error(err))
	}
}

// Subscribe ensures that the process is subscribed to the room's channel;
// subsequent calls for the same room only increment the ref‑counter.
func (f *Fanout) Subscribe(roomID string) {
	if f == nil {
		return
	}

	f.mu.Lock()
	if e, ok := f.subs[roomID]; ok {
		e.refCnt++
		f.mu.Unlock()
		return
	}

	// First local member → create Redis SUB and fan‑out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := f.rdb.Subscribe(ctx, roomChannel(roomID))

	f.subs[roomID] = &subEntry{refCnt: 1, cancel: cancel}
	f.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				f.deliver(roomID, []byte(m.Payload))
			}
		}
	}()
}

// deliver re-broadcasts one channel frame to the room's local members,
// dropping frames this process published itself.
func (f *Fanout) deliver(roomID string, payload []byte) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		zap.L().Warn("ws.fanout_decode", zap.Error(err))
		return
	}
	if msg.Origin == f.origin {
		return // our own publish echoed back
	}

	f.hub.Broadcast(roomID, encodeEvent(msg.Event, msg.Body), "")
}

// Unsubscribe decrements the ref‑counter and tears the Redis SUB down
// when the last local member leaves the room.
func (f *Fanout) Unsubscribe(roomID string) {
	if f == nil {
		return
	}

	f.mu.Lock()
	e, ok := f.subs[roomID]
	if !ok {
		f.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		f.mu.Unlock()
		return
	}
	delete(f.subs, roomID)
	f.mu.Unlock()

	// Outside the lock → stop the fan‑out goroutine.
	e.cancel()
}
