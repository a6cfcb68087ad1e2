package registry

// Session binds a live connection to a display name and the room it currently
// occupies. Sessions are plain values; the Registry owns the only collection
// of them and replaces the whole record on re-activation.
type Session struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	RoomName     string `json:"roomName"`
}
