package registry

import "time"

// Outbound event names delivered to clients.
const (
	EventRoomsList   = "roomsList"
	EventJoinedRoom  = "joinedRoom"
	EventError       = "error"
	EventUpdateRoom  = "updateRoom"
	EventReady       = "ready"
	EventChatStarted = "chatStarted"
	EventMessage     = "message"
)

// systemAuthor is the display name attached to server-authored messages.
const systemAuthor = "Admin"

// errRoomNameConflict is the error text sent when createRoom hits an existing
// room name. It is the only error condition surfaced to clients; everything
// else degrades to a silent no-op.
const errRoomNameConflict = "A room with that name already exists, please try again!"

// RoomSnapshot is the wire representation of a room.
type RoomSnapshot struct {
	Name              string    `json:"name"`
	AdminConnectionID string    `json:"adminConnectionId"`
	Started           bool      `json:"started"`
	Members           []Session `json:"members"`
}

// ChatMessage is a relayed or server-authored text message.
type ChatMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Time string `json:"time"`
}

func buildMessage(name, text string, at time.Time) ChatMessage {
	return ChatMessage{
		Name: name,
		Text: text,
		Time: at.Format("15:04:05"),
	}
}

// Outbound is one delivery instruction: an event and payload addressed either
// to an explicit list of connections or to every connected party. Target lists
// are resolved from post-mutation registry state, so an instruction whose room
// just lost its last member simply carries no targets.
type Outbound struct {
	To        []string
	Broadcast bool
	Event     string
	Payload   any
}

func toConn(connID, event string, payload any) Outbound {
	return Outbound{To: []string{connID}, Event: event, Payload: payload}
}

func toConns(connIDs []string, event string, payload any) Outbound {
	return Outbound{To: connIDs, Event: event, Payload: payload}
}

func toAll(event string, payload any) Outbound {
	return Outbound{Broadcast: true, Event: event, Payload: payload}
}
