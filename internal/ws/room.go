package ws

// member is what a room holds for each joined connection. ConnContext is
// the production implementation; tests substitute a recording fake.
type member interface {
	ID() string
	Identity() string
	Send(data []byte) error
}

// room is only ever touched under the Hub lock.
type room struct {
	members map[string]member // connID -> member
}

func newRoom() *room { return &room{members: map[string]member{}} }

func (r *room) add(m member)         { r.members[m.ID()] = m }
func (r *room) remove(connID string) { delete(r.members, connID) }
func (r *room) empty() bool          { return len(r.members) == 0 }

// identities lists current member identities; never nil, so a joiner with
// no peers still serializes as "peers": [].
func (r *room) identities() []string {
	out := make([]string, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Identity())
	}
	return out
}

// others snapshots every member except connID.
func (r *room) others(connID string) []member {
	out := make([]member, 0, len(r.members))
	for id, m := range r.members {
		if id == connID {
			continue
		}
		out = append(out, m)
	}
	return out
}
