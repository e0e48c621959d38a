package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairdrawgo/internal/auth"
	"pairdrawgo/internal/presence"
	"pairdrawgo/internal/services/pairing"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	maxMessageSize = 32 << 10            // drawing payloads are small JSON blobs
)

type WsServer struct {
	hub        *Hub
	fanout     *Fanout // nil in single-process degraded mode
	router     *Router
	registry   *presence.Registry
	verifier   auth.TokenVerifier
	pairingSvc pairing.IPairingService
	upgrader   websocket.Upgrader

	strokeLimit int
	clearLimit  int
}

// ConnContext is one authenticated connection as seen by the event
// handlers. It is also the hub's member for this connection.
type ConnContext struct {
	ConnID string
	UserID string

	conn    transport
	limiter *eventLimiter
	Server  *WsServer
}

func (cc *ConnContext) ID() string { return cc.ConnID }

func (cc *ConnContext) Identity() string { return cc.UserID }

func (cc *ConnContext) Send(data []byte) error { return cc.conn.write(data) }

func NewWsServer(
	h *Hub,
	fanout *Fanout,
	registry *presence.Registry,
	verifier auth.TokenVerifier,
	pairingSvc pairing.IPairingService,
	strokeLimit, clearLimit int,
) *WsServer {
	srv := &WsServer{
		hub:        h,
		fanout:     fanout,
		router:     NewRouter(),
		registry:   registry,
		verifier:   verifier,
		pairingSvc: pairingSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"bearer"},
			CheckOrigin:     func(*http.Request) bool { return true }, // dev‑only
		},
		strokeLimit: strokeLimit,
		clearLimit:  clearLimit,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)
	wsConn := &clientConn{rawConn: rawConn}

	identity, err := s.verifier.Verify(bearerToken(ginCtx.Request))
	if err != nil {
		// Generic rejection regardless of which check failed, then close.
		if env, envErr := newEnvelope(evtError, errorBodyFor(errAuthFailed)); envErr == nil {
			_ = wsConn.writeJSON(env)
		}
		_ = rawConn.Close()
		return
	}

	// ─────────────────── Client authenticated ─────────────────
	cc := &ConnContext{
		ConnID:  uuid.NewString(),
		UserID:  identity,
		conn:    wsConn,
		limiter: newEventLimiter(s.strokeLimit, s.clearLimit),
		Server:  s,
	}
	s.registry.Bind(ginCtx.Request.Context(), identity, cc.ConnID)

	go s.reader(cc, wsConn)
	go s.pinger(wsConn)
}

// bearerToken extracts the handshake credential, trying the explicit auth
// subprotocol pair first, then the Authorization header, then the token
// query parameter.
func bearerToken(r *http.Request) string {
	protos := websocket.Subprotocols(r)
	for i, p := range protos {
		if p == "bearer" && i+1 < len(protos) {
			return protos[i+1]
		}
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join ----------------------------------------------------------------
	Register(
		s.router,
		evtJoin,
		func(ctx context.Context, cc *ConnContext, req JoinRequest) (*Envelope, error) {
			if req.Room == "" {
				return nil, errBadEnvelope
			}
			roomID, err := s.pairingSvc.Resolve(ctx, cc.UserID, req.Room)
			if err != nil {
				if pairing.IsDenial(err) {
					return nil, errJoinDenied
				}
				return nil, err
			}

			res := s.hub.Join(roomID, cc)
			if res.Left != nil {
				s.notifyPeerLeft(ctx, res.Left)
				s.fanout.Unsubscribe(res.Left.RoomID)
			}
			if !res.Rejoined {
				// A rejoin already holds its subscription, and its
				// peers already know the member.
				s.fanout.Subscribe(roomID)

				joined := PeerBody{Identity: cc.UserID}
				data := encodeEvent(evtPeerJoined, joined)
				for _, m := range res.Others {
					_ = m.Send(data)
				}
				body, _ := json.Marshal(joined)
				s.fanout.Publish(ctx, roomID, evtPeerJoined, body)
			}

			return newEnvelope(evtJoinConfirmed, JoinConfirmedBody{RoomID: roomID, Peers: res.Peers})
		},
	)

	// 🔹 leave ---------------------------------------------------------------
	Register(
		s.router,
		evtLeave,
		func(ctx context.Context, cc *ConnContext, _ struct{}) (*Envelope, error) {
			if res, ok := s.hub.Leave(cc.ConnID); ok {
				s.notifyPeerLeft(ctx, &res)
				s.fanout.Unsubscribe(res.RoomID)
			}
			return nil, nil
		},
	)

	// 🔹 stroke --------------------------------------------------------------
	Register(
		s.router,
		evtStroke,
		func(ctx context.Context, cc *ConnContext, payload json.RawMessage) (*Envelope, error) {
			roomID, ok := s.hub.RoomOf(cc.ConnID)
			if !ok {
				return nil, errNotInRoom
			}
			if !cc.limiter.AllowStroke() {
				return nil, nil // shed the burst silently
			}
			s.relay(ctx, roomID, cc, evtStroke, payload)
			return nil, nil
		},
	)

	// 🔹 clear ---------------------------------------------------------------
	Register(
		s.router,
		evtClear,
		func(ctx context.Context, cc *ConnContext, payload json.RawMessage) (*Envelope, error) {
			roomID, ok := s.hub.RoomOf(cc.ConnID)
			if !ok {
				return nil, errNotInRoom
			}
			if !cc.limiter.AllowClear() {
				return nil, errRateLimited // clears are disruptive: tell the sender
			}
			s.relay(ctx, roomID, cc, evtClear, payload)
			return nil, nil
		},
	)
}

// relay forwards an opaque drawing payload verbatim to every other local
// room member and onto the cross-process channel. At-most-once: no ack,
// no buffer.
func (s *WsServer) relay(ctx context.Context, roomID string, cc *ConnContext, event string, payload json.RawMessage) {
	s.hub.Broadcast(roomID, encodeEvent(event, payload), cc.ConnID)
	s.fanout.Publish(ctx, roomID, event, payload)
}

func (s *WsServer) notifyPeerLeft(ctx context.Context, left *LeaveResult) {
	data := encodeEvent(evtPeerLeft, PeerBody{Identity: left.Identity})
	for _, m := range left.Remaining {
		_ = m.Send(data)
	}
	body, _ := json.Marshal(PeerBody{Identity: left.Identity})
	s.fanout.Publish(ctx, left.RoomID, evtPeerLeft, body)
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn) {
	defer s.teardown(cc)

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			s.sendError(cc, errBadEnvelope)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		reply, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			s.sendError(cc, err)
			continue
		}

		// ---- reply (join only) --------------------------------------
		if reply != nil {
			_ = conn.writeJSON(reply)
		}
	}
}

// teardown runs synchronously before the close completes: no membership
// or binding may outlive the connection.
func (s *WsServer) teardown(cc *ConnContext) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if res, ok := s.hub.Leave(cc.ConnID); ok {
		s.notifyPeerLeft(ctx, &res)
		s.fanout.Unsubscribe(res.RoomID)
	}
	s.registry.Unbind(ctx, cc.UserID, cc.ConnID)
	_ = cc.conn.close()
}

func (s *WsServer) sendError(cc *ConnContext, err error) {
	env, envErr := newEnvelope(evtError, errorBodyFor(err))
	if envErr != nil {
		return
	}
	_ = cc.conn.writeJSON(env)
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			_ = conn.close()
			return
		}
	}
}
