// Package server defines the wire frame format exchanged with clients and the
// validation applied to inbound payloads before they reach the registry.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound event names accepted from clients. Outbound names live with the
// registry, which decides what to emit.
const (
	eventCreateRoom = "createRoom"
	eventJoinRoom   = "joinRoom"
	eventStartRoom  = "startRoom"
	eventLeaveRoom  = "leaveRoom"
	eventMessage    = "message"
)

var validate = validator.New()

// Frame is the single JSON envelope used in both directions: an event name
// and an event-specific payload.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// roomRequest is the payload of createRoom and joinRoom.
type roomRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	RoomName string `json:"roomName" validate:"required,max=64"`
}

// messageRequest is the payload of message.
type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

func decodeRoomRequest(raw json.RawMessage) (roomRequest, error) {
	var req roomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid room payload: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid room payload: %w", err)
	}
	return req, nil
}

func decodeMessageRequest(raw json.RawMessage) (messageRequest, error) {
	var req messageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid message payload: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid message payload: %w", err)
	}
	return req, nil
}

// decodeStartRequest parses the startRoom payload, a bare JSON string naming
// the room.
func decodeStartRequest(raw json.RawMessage) (string, error) {
	var roomName string
	if err := json.Unmarshal(raw, &roomName); err != nil {
		return "", fmt.Errorf("invalid startRoom payload: %w", err)
	}
	if roomName == "" {
		return "", fmt.Errorf("invalid startRoom payload: room name is required")
	}
	return roomName, nil
}

// encodeFrame marshals an outbound event into its wire form. A nil payload
// produces a frame with the payload field omitted.
func encodeFrame(event string, payload any) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		frame.Payload = raw
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", event, err)
	}
	return data, nil
}
