package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func eventsNamed(outs []Outbound, event string) []Outbound {
	var matched []Outbound
	for _, out := range outs {
		if out.Event == event {
			matched = append(matched, out)
		}
	}
	return matched
}

func singleEvent(t *testing.T, outs []Outbound, event string) Outbound {
	t.Helper()
	matched := eventsNamed(outs, event)
	require.Len(t, matched, 1, "expected exactly one %q instruction", event)
	return matched[0]
}

func TestRegistry_Connect_SilentWhileNoRoomsExist(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)

	// Given no room exists, a fresh connection hears nothing.
	req.Empty(reg.Connect(uuid.NewString()))
}

func TestRegistry_Connect_ReceivesOpenRoomsList(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	admin := uuid.NewString()
	newcomer := uuid.NewString()

	reg.CreateRoom(admin, "Alice", "General")

	out := singleEvent(t, reg.Connect(newcomer), EventRoomsList)
	req.Equal([]string{newcomer}, out.To)
	rooms := out.Payload.([]RoomSnapshot)
	req.Len(rooms, 1)
	req.Equal("General", rooms[0].Name)
}

func TestRegistry_Connect_StartedRoomsYieldEmptyList(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	admin := uuid.NewString()

	reg.CreateRoom(admin, "Alice", "General")
	reg.StartRoom(admin, "General")

	// The room set is non-empty so the greeting still fires, but the open
	// list it carries is empty.
	out := singleEvent(t, reg.Connect(uuid.NewString()), EventRoomsList)
	req.Empty(out.Payload.([]RoomSnapshot))
}

func TestRegistry_CreateRoom_CreatorIsAdminAndSoleMember(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	admin := uuid.NewString()

	outs := reg.CreateRoom(admin, "Alice", "R1")

	joined := singleEvent(t, outs, EventJoinedRoom)
	req.Equal([]string{admin}, joined.To)
	snap := joined.Payload.(RoomSnapshot)
	req.Equal("R1", snap.Name)
	req.Equal(admin, snap.AdminConnectionID)
	req.False(snap.Started)
	req.Equal([]Session{{ConnectionID: admin, DisplayName: "Alice", RoomName: "R1"}}, snap.Members)

	list := singleEvent(t, outs, EventRoomsList)
	req.True(list.Broadcast)

	open := reg.OpenRooms()
	req.Len(open, 1)
	req.Equal("R1", open[0].Name)
}

func TestRegistry_CreateRoom_NameConflictLeavesStateUntouched(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	admin := uuid.NewString()
	intruder := uuid.NewString()

	reg.CreateRoom(admin, "Alice", "General")
	outs := reg.CreateRoom(intruder, "Carol", "General")

	errOut := singleEvent(t, outs, EventError)
	req.Equal([]string{intruder}, errOut.To)
	req.Empty(eventsNamed(outs, EventRoomsList))
	req.Empty(eventsNamed(outs, EventJoinedRoom))

	open := reg.OpenRooms()
	req.Len(open, 1)
	req.Equal(admin, open[0].AdminConnectionID)

	// The loser got no session either: their messages go nowhere.
	req.Empty(reg.Message(intruder, "hello?"))
}

func TestRegistry_JoinRoom_BroadcastsUpdateAndSignalsReady(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()
	bob := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	outs := reg.JoinRoom(bob, "Bob", "R1")

	joined := singleEvent(t, outs, EventJoinedRoom)
	req.Equal([]string{bob}, joined.To)

	update := singleEvent(t, outs, EventUpdateRoom)
	req.ElementsMatch([]string{alice, bob}, update.To)
	snap := update.Payload.(RoomSnapshot)
	req.Equal([]string{alice, bob}, []string{snap.Members[0].ConnectionID, snap.Members[1].ConnectionID})

	ready := singleEvent(t, outs, EventReady)
	req.Equal([]string{alice}, ready.To, "ready is addressed to the admin alone")
	req.Nil(ready.Payload)
}

func TestRegistry_JoinRoom_BelowQuorumSendsNoReady(t *testing.T) {
	req := require.New(t)
	reg := New(3)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	outs := reg.JoinRoom(uuid.NewString(), "Bob", "R1")

	req.Empty(eventsNamed(outs, EventReady))
}

func TestRegistry_JoinRoom_ReadyResentAboveQuorum(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	reg.JoinRoom(uuid.NewString(), "Bob", "R1")

	// Third join is above quorum; the admin is re-notified every time.
	outs := reg.JoinRoom(uuid.NewString(), "Carol", "R1")
	ready := singleEvent(t, outs, EventReady)
	req.Equal([]string{alice}, ready.To)
}

func TestRegistry_JoinRoom_IsIdempotentOnMembership(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	bob := uuid.NewString()

	reg.CreateRoom(uuid.NewString(), "Alice", "R1")
	reg.JoinRoom(bob, "Bob", "R1")
	outs := reg.JoinRoom(bob, "Bob", "R1")

	update := singleEvent(t, outs, EventUpdateRoom)
	req.Len(update.Payload.(RoomSnapshot).Members, 2)
}

func TestRegistry_JoinRoom_UnknownRoomIsTotalNoOp(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	ghost := uuid.NewString()

	req.Empty(reg.JoinRoom(ghost, "Ghost", "nowhere"))
	// No session was activated, so a follow-up message also goes nowhere.
	req.Empty(reg.Message(ghost, "anyone?"))
}

func TestRegistry_StartRoom_NotifiesMembersExceptStarter(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()
	bob := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	reg.JoinRoom(bob, "Bob", "R1")
	outs := reg.StartRoom(alice, "R1")

	started := singleEvent(t, outs, EventChatStarted)
	req.Equal([]string{bob}, started.To)

	list := singleEvent(t, outs, EventRoomsList)
	req.True(list.Broadcast)
	req.Empty(list.Payload.([]RoomSnapshot), "started rooms leave the open list")
}

func TestRegistry_StartRoom_TwiceIsEquivalentToOnce(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	reg.StartRoom(alice, "R1")
	outs := reg.StartRoom(alice, "R1")

	req.Empty(reg.OpenRooms())
	singleEvent(t, outs, EventRoomsList)
}

func TestRegistry_StartRoom_UnknownRoomStillRefreshesList(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	outs := reg.StartRoom(alice, "nowhere")

	req.Empty(eventsNamed(outs, EventChatStarted))
	list := singleEvent(t, outs, EventRoomsList)
	req.True(list.Broadcast)
	req.Len(reg.OpenRooms(), 1)
}

func TestRegistry_LeaveRoom_RemainingMembersHearFarewell(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()
	bob := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	reg.JoinRoom(bob, "Bob", "R1")
	outs := reg.LeaveRoom(bob)

	farewell := singleEvent(t, outs, EventMessage)
	req.Equal([]string{alice}, farewell.To)
	msg := farewell.Payload.(ChatMessage)
	req.Equal("Admin", msg.Name)
	req.Equal("Bob has left the room.", msg.Text)

	update := singleEvent(t, outs, EventUpdateRoom)
	req.Equal([]string{alice}, update.To)
	req.Len(update.Payload.(RoomSnapshot).Members, 1)

	open := reg.OpenRooms()
	req.Len(open, 1)
	req.Len(open[0].Members, 1)
}

func TestRegistry_Disconnect_LastMemberDeletesRoomSilently(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "R1")
	outs := reg.Disconnect(alice)

	// The room died with its last member; the farewell and room update have
	// no one to go to and are suppressed. Only the global refresh remains.
	req.Empty(eventsNamed(outs, EventMessage))
	req.Empty(eventsNamed(outs, EventUpdateRoom))
	list := singleEvent(t, outs, EventRoomsList)
	req.True(list.Broadcast)
	req.Empty(reg.OpenRooms())
}

func TestRegistry_Disconnect_WithoutSessionIsSilent(t *testing.T) {
	require.Empty(t, New(DefaultQuorum).Disconnect(uuid.NewString()))
}

func TestRegistry_RoomNameReusableAfterDeletion(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()

	reg.CreateRoom(alice, "Alice", "General")
	reg.Disconnect(alice)

	outs := reg.CreateRoom(uuid.NewString(), "Bob", "General")
	req.Empty(eventsNamed(outs, EventError))
	req.Len(reg.OpenRooms(), 1)
}

func TestRegistry_Message_RelayedToWholeRoomIncludingSender(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	alice := uuid.NewString()
	bob := uuid.NewString()
	reg.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 15, 0, time.UTC) }

	reg.CreateRoom(alice, "Alice", "R1")
	reg.JoinRoom(bob, "Bob", "R1")
	outs := reg.Message(bob, "hello")

	relay := singleEvent(t, outs, EventMessage)
	req.ElementsMatch([]string{alice, bob}, relay.To)
	msg := relay.Payload.(ChatMessage)
	req.Equal("Bob", msg.Name)
	req.Equal("hello", msg.Text)
	req.Equal("09:30:15", msg.Time)
}

func TestRegistry_Message_WithoutSessionOrRoomIsSilent(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)

	req.Empty(reg.Message(uuid.NewString(), "into the void"))
}

func TestRegistry_OpenRooms_PreservesCreationOrder(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)
	first := uuid.NewString()

	reg.CreateRoom(first, "Alice", "alpha")
	reg.CreateRoom(uuid.NewString(), "Bob", "beta")
	reg.CreateRoom(uuid.NewString(), "Carol", "gamma")
	reg.StartRoom(first, "alpha")

	names := make([]string, 0)
	for _, snap := range reg.OpenRooms() {
		names = append(names, snap.Name)
	}
	req.Equal([]string{"beta", "gamma"}, names)
}

func TestRegistry_NoTwoLiveRoomsShareAName(t *testing.T) {
	req := require.New(t)
	reg := New(DefaultQuorum)

	for i := 0; i < 5; i++ {
		reg.CreateRoom(uuid.NewString(), "User", "General")
	}

	seen := map[string]int{}
	for _, snap := range reg.OpenRooms() {
		seen[snap.Name]++
	}
	req.Equal(map[string]int{"General": 1}, seen)
}
