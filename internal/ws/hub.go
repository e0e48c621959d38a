package ws

import "sync"

// Hub keeps member sets per room and the connID -> roomID index that
// enforces single-room membership. Rooms appear on first join and vanish
// when their last member leaves.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	byConn map[string]string // connID -> roomID
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		byConn: make(map[string]string),
	}
}

// JoinResult describes one join: the peer snapshot the joiner is shown,
// the prior members owed a peer-joined event, and the room the connection
// implicitly left, if any. Rejoined marks a join into the room the
// connection was already in; the caller must not stack another fanout
// subscription or re-announce the member for one of those.
type JoinResult struct {
	Peers    []string
	Others   []member
	Left     *LeaveResult
	Rejoined bool
}

// LeaveResult names who left which room and who remains to be told.
type LeaveResult struct {
	RoomID    string
	Identity  string
	Remaining []member
}

// Join moves m into roomID. The peer snapshot and the insertion happen
// under one critical section, so Peers is exactly the membership that
// existed immediately before m's own addition.
func (h *Hub) Join(roomID string, m member) JoinResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	var res JoinResult
	if prev, ok := h.byConn[m.ID()]; ok {
		if prev == roomID {
			// Re-join of the current room: treat as a fresh snapshot.
			h.rooms[prev].remove(m.ID())
			res.Rejoined = true
		} else {
			res.Left = h.leaveLocked(m.ID())
		}
	}

	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom()
		h.rooms[roomID] = r
	}
	res.Peers = r.identities()
	res.Others = r.others(m.ID())
	r.add(m)
	h.byConn[m.ID()] = roomID
	return res
}

// Leave removes the connection from its room, reporting the members that
// remain. ok is false when the connection was not in any room.
func (h *Hub) Leave(connID string) (LeaveResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res := h.leaveLocked(connID)
	if res == nil {
		return LeaveResult{}, false
	}
	return *res, true
}

func (h *Hub) leaveLocked(connID string) *LeaveResult {
	roomID, ok := h.byConn[connID]
	if !ok {
		return nil
	}
	delete(h.byConn, connID)

	r := h.rooms[roomID]
	m := r.members[connID]
	r.remove(connID)
	res := &LeaveResult{
		RoomID:    roomID,
		Identity:  m.Identity(),
		Remaining: r.others(""),
	}
	if r.empty() {
		delete(h.rooms, roomID)
	}
	return res
}

// RoomOf reports the room the connection is currently in.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID, ok := h.byConn[connID]
	return roomID, ok
}

// Broadcast sends data to every member of roomID except exceptConnID.
// The member snapshot is taken under the lock, the I/O happens outside
// it. Write failures are left to the connection's own reader loop to
// notice and tear down.
func (h *Hub) Broadcast(roomID string, data []byte, exceptConnID string) {
	if data == nil {
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[roomID]
	var targets []member
	if ok {
		targets = r.others(exceptConnID)
	}
	h.mu.Unlock()

	for _, m := range targets {
		_ = m.Send(data)
	}
}
