package registry

import "github.com/samber/lo"

// Room is a named, admin-owned group of sessions. It moves through exactly two
// states: open (started=false) and started (started=true). The transition is
// one-way. A Room holds no reference back to the Registry and emits no events
// itself; it only mutates local state.
type Room struct {
	name    string
	adminID string
	started bool
	members []Session
}

func newRoom(name string, admin Session) *Room {
	return &Room{
		name:    name,
		adminID: admin.ConnectionID,
		members: []Session{admin},
	}
}

// Name returns the room's unique, immutable name.
func (r *Room) Name() string { return r.name }

// AdminConnectionID returns the connection id of the room's creator. The admin
// is fixed at creation time and need not remain a member.
func (r *Room) AdminConnectionID() string { return r.adminID }

// Started reports whether the room has left the open state.
func (r *Room) Started() bool { return r.started }

// MemberCount returns the number of current members.
func (r *Room) MemberCount() int { return len(r.members) }

// AddMember inserts the session at the end of the member list, replacing any
// existing entry with the same connection id. Re-joining is therefore
// idempotent on identity; only the position moves.
func (r *Room) AddMember(s Session) {
	kept := lo.Filter(r.members, func(m Session, _ int) bool {
		return m.ConnectionID != s.ConnectionID
	})
	r.members = append(kept, s)
}

// RemoveMember drops the member with the given connection id. No-op when the
// id is not present.
func (r *Room) RemoveMember(connID string) {
	r.members = lo.Filter(r.members, func(m Session, _ int) bool {
		return m.ConnectionID != connID
	})
}

// Start marks the room as started. Calling it again is a no-op; started never
// reverts. Quorum is the caller's policy, not checked here.
func (r *Room) Start() { r.started = true }

// Snapshot returns the wire representation of the room's current state.
func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Name:              r.name,
		AdminConnectionID: r.adminID,
		Started:           r.started,
		Members:           append([]Session(nil), r.members...),
	}
}

func (r *Room) memberIDs() []string {
	return lo.Map(r.members, func(m Session, _ int) string { return m.ConnectionID })
}

func (r *Room) memberIDsExcept(connID string) []string {
	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if m.ConnectionID != connID {
			ids = append(ids, m.ConnectionID)
		}
	}
	return ids
}
