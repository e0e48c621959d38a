package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join", "stroke"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Client → server events.
const (
	evtJoin   = "join"
	evtLeave  = "leave"
	evtStroke = "stroke"
	evtClear  = "clear"
)

// Server → client events.
const (
	evtJoinConfirmed = "join-confirmed"
	evtPeerJoined    = "peer-joined"
	evtPeerLeft      = "peer-left"
	evtError         = "error"
)

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// JoinRequest is the body for "join".
type JoinRequest struct {
	Room string `json:"room"`
}

// JoinConfirmedBody answers a successful join. Peers lists exactly the
// identities that were in the room before this connection's own addition.
type JoinConfirmedBody struct {
	RoomID string   `json:"room_id"`
	Peers  []string `json:"peers"`
}

// PeerBody carries the identity behind a peer-joined / peer-left event.
type PeerBody struct {
	Identity string `json:"identity"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func newEnvelope(event string, body any) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Body: raw}, nil
}

// encodeEvent marshals a full frame for fan-out; the DTOs above cannot
// fail to marshal, so errors collapse to nil.
func encodeEvent(event string, body any) []byte {
	env, err := newEnvelope(event, body)
	if err != nil {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	return data
}
