package models

import "encoding/json"

type EventType string

const (
	EventSessionSet EventType = "session_set"
	EventRoomUsers  EventType = "room_users"
	EventUserJoined EventType = "user_joined"
	EventUserLeft   EventType = "user_left"
	EventMessage    EventType = "msg"
)

// RoomUser is one entry in a room_users snapshot.
type RoomUser struct {
	ID                string `json:"id"`
	EncryptedUsername string `json:"encryptedUsername"`
}

// Event is every frame exchanged over a relay connection, inbound and
// outbound. Ciphertext and IV are opaque to the server and are carried as
// raw bytes so relayed payloads stay verbatim.
type Event struct {
	Type              EventType       `json:"type"`
	ClientID          string          `json:"clientId,omitempty"`
	Users             []RoomUser      `json:"users,omitempty"`
	ID                string          `json:"id,omitempty"`
	EncryptedUsername string          `json:"encryptedUsername,omitempty"`
	SenderID          string          `json:"senderId,omitempty"`
	Ciphertext        json.RawMessage `json:"ciphertext,omitempty"`
	IV                json.RawMessage `json:"iv,omitempty"`
}
