package registry

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultQuorum is the member count at which a room signals its admin that
// the chat is ready to start.
const DefaultQuorum = 2

// Registry is the process-wide owner of all rooms and sessions. Every
// operation mutates state and then resolves the resulting fan-out under one
// mutex, so concurrent operations never observe partial mutations and target
// lists always reflect post-mutation state.
type Registry struct {
	mu     sync.Mutex
	quorum int
	now    func() time.Time

	sessions  map[string]Session
	rooms     map[string]*Room
	roomOrder []string
}

// New creates an empty Registry. Quorum values below 1 fall back to
// DefaultQuorum.
func New(quorum int) *Registry {
	if quorum < 1 {
		quorum = DefaultQuorum
	}
	return &Registry{
		quorum:   quorum,
		now:      time.Now,
		sessions: make(map[string]Session),
		rooms:    make(map[string]*Room),
	}
}

// Connect greets a fresh connection with the current open-rooms list. Nothing
// is sent while no rooms exist at all.
func (g *Registry) Connect(connID string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.rooms) == 0 {
		return nil
	}
	return []Outbound{toConn(connID, EventRoomsList, g.openRoomsLocked())}
}

// CreateRoom creates a room with the caller as admin and sole member. A name
// conflict answers the caller with the error event and mutates nothing.
func (g *Registry) CreateRoom(connID, displayName, roomName string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[roomName]; exists {
		return []Outbound{toConn(connID, EventError, errRoomNameConflict)}
	}

	creator := g.activateLocked(connID, displayName, roomName)
	room := newRoom(roomName, creator)
	g.rooms[roomName] = room
	g.roomOrder = append(g.roomOrder, roomName)

	return []Outbound{
		toConn(connID, EventJoinedRoom, room.Snapshot()),
		toAll(EventRoomsList, g.openRoomsLocked()),
	}
}

// JoinRoom adds the caller to an existing room. Joining an unknown room is a
// total no-op: no session is created and nothing is sent. Every join that
// leaves the room at or above quorum re-sends the ready signal to the admin
// connection; the signal is deliberately not guarded in state.
func (g *Registry) JoinRoom(connID, displayName, roomName string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[roomName]
	if !ok {
		return nil
	}

	joiner := g.activateLocked(connID, displayName, roomName)
	room.AddMember(joiner)

	out := []Outbound{
		toConn(connID, EventJoinedRoom, room.Snapshot()),
		toConns(room.memberIDs(), EventUpdateRoom, room.Snapshot()),
	}
	if room.MemberCount() >= g.quorum {
		out = append(out, toConn(room.AdminConnectionID(), EventReady, nil))
	}
	return out
}

// StartRoom transitions the room to started if it exists. The chat-started
// notification (everyone in the room but the caller) and the rooms-list
// refresh fire either way; against an unknown room the former resolves to no
// targets and only the refresh is observable.
func (g *Registry) StartRoom(connID, roomName string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	var audience []string
	if room, ok := g.rooms[roomName]; ok {
		room.Start()
		audience = room.memberIDsExcept(connID)
	}

	var out []Outbound
	if len(audience) > 0 {
		out = append(out, toConns(audience, EventChatStarted, nil))
	}
	return append(out, toAll(EventRoomsList, g.openRoomsLocked()))
}

// LeaveRoom removes the caller's session and room membership. See remove for
// the exact ordering.
func (g *Registry) LeaveRoom(connID string) []Outbound {
	return g.remove(connID)
}

// Disconnect handles connection loss. Identical contract to LeaveRoom; the
// two entry points exist because the transport distinguishes an explicit
// leave from a dropped socket.
func (g *Registry) Disconnect(connID string) []Outbound {
	return g.remove(connID)
}

func (g *Registry) remove(connID string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	leaver, ok := g.sessions[connID]
	if !ok {
		return nil
	}
	delete(g.sessions, connID)

	var out []Outbound
	if room, found := g.rooms[leaver.RoomName]; found {
		room.RemoveMember(connID)
		if room.MemberCount() == 0 {
			g.deleteRoomLocked(leaver.RoomName)
		} else {
			// Remaining members hear about the departure, then see the
			// updated room. When the leaver was the last member the room is
			// gone and both instructions would have no targets, so they are
			// suppressed entirely.
			farewell := buildMessage(systemAuthor, leaver.DisplayName+" has left the room.", g.now())
			out = append(out,
				toConns(room.memberIDs(), EventMessage, farewell),
				toConns(room.memberIDs(), EventUpdateRoom, room.Snapshot()),
			)
		}
	}
	return append(out, toAll(EventRoomsList, g.openRoomsLocked()))
}

// Message relays a text message to every member of the sender's room,
// including the sender. No session or no room means no broadcast; state is
// never touched.
func (g *Registry) Message(connID, text string) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	sender, ok := g.sessions[connID]
	if !ok {
		return nil
	}
	room, ok := g.rooms[sender.RoomName]
	if !ok {
		return nil
	}

	msg := buildMessage(sender.DisplayName, text, g.now())
	return []Outbound{toConns(room.memberIDs(), EventMessage, msg)}
}

// OpenRooms lists all rooms that have not started, in creation order.
func (g *Registry) OpenRooms() []RoomSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.openRoomsLocked()
}

func (g *Registry) openRoomsLocked() []RoomSnapshot {
	return lo.FilterMap(g.roomOrder, func(name string, _ int) (RoomSnapshot, bool) {
		room, ok := g.rooms[name]
		if !ok || room.Started() {
			return RoomSnapshot{}, false
		}
		return room.Snapshot(), true
	})
}

// activateLocked creates the session for the connection, replacing any prior
// one. A replaced session's old room keeps its member entry until that member
// leaves or the room empties, mirroring how the transport keeps a connection
// subscribed to every room it ever joined.
func (g *Registry) activateLocked(connID, displayName, roomName string) Session {
	s := Session{ConnectionID: connID, DisplayName: displayName, RoomName: roomName}
	g.sessions[connID] = s
	return s
}

func (g *Registry) deleteRoomLocked(name string) {
	delete(g.rooms, name)
	g.roomOrder = lo.Filter(g.roomOrder, func(n string, _ int) bool { return n != name })
}
