package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of frame being sent
type MessageType string

const (
	// Inbound
	MessageTypeJoin     MessageType = "join"     // Request admission
	MessageTypeGame     MessageType = "game"     // Owner sets a game field
	MessageTypeMy       MessageType = "my"       // Set a field of my own entry
	MessageTypePublic   MessageType = "public"   // Set a public data field
	MessageTypeStart    MessageType = "start"    // Owner starts the game
	MessageTypeOpen     MessageType = "open"     // Owner opens or closes the room
	MessageTypeAdmit    MessageType = "admit"    // Owner admits a waiting player
	MessageTypeTransfer MessageType = "transfer" // Owner hands the room to someone

	// Outbound
	MessageTypeSessionToken MessageType = "session_token"
	MessageTypeView         MessageType = "view"
	MessageTypeJoinResult   MessageType = "join_result"
	MessageTypeError        MessageType = "error"
)

// Message is the websocket frame envelope
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// NewMessage creates an outbound frame with the payload encoded
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

// JoinPayload asks to be admitted under a display name
type JoinPayload struct {
	Name string `json:"name"`
}

// FieldPayload sets one keyed field; a null value deletes it
type FieldPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// OpenPayload toggles whether new joiners are admitted directly
type OpenPayload struct {
	Open bool `json:"open"`
}

// TargetPayload names a participant for admit/transfer
type TargetPayload struct {
	ID string `json:"id"`
}

// SessionTokenPayload carries the reconnect token
type SessionTokenPayload struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

// JoinResultPayload reports the synchronous outcome of a join request
type JoinResultPayload struct {
	Outcome string `json:"outcome"`
	Name    string `json:"name,omitempty"`
}

// ErrorPayload reports a failed operation
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// PlayerView is one roster row as the browser sees it
type PlayerView struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Color  string       `json:"color"`
	Score  int          `json:"score"`
	Status PlayerStatus `json:"status"`
}

// ViewPayload is the room projection pushed after every change
type ViewPayload struct {
	RoomCode      string       `json:"room_code"`
	RoomName      string       `json:"room_name"`
	Identity      string       `json:"identity"`
	Joined        bool         `json:"joined"`
	Me            *PlayerView  `json:"me,omitempty"`
	IsOwner       bool         `json:"is_owner"`
	Owner         string       `json:"owner,omitempty"`
	IsOpen        bool         `json:"is_open"`
	Game          Fields       `json:"game"`
	PublicData    Fields       `json:"public_data,omitempty"`
	Players       []PlayerView `json:"players"`
	Waiting       []PlayerView `json:"waiting,omitempty"`
	SuggestedName string       `json:"suggested_name,omitempty"`
}
