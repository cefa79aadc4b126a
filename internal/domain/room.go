package domain

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Keys of the room document.
const (
	KeyGame       = "game"
	KeyPlayers    = "players"
	KeyPublicData = "publicData"
	KeyStatus     = "status"
	KeyOwner      = "owner"
	KeyIsOpen     = "isOpen"
	KeyIsOnline   = "isOnline"
	KeyName       = "name"
)

// PlayerStatus holds the per-participant flags.
type PlayerStatus struct {
	IsOnline     bool `json:"isOnline"`
	IsReady      bool `json:"isReady"`
	IsSpectating bool `json:"isSpectating"`
	IsWaiting    bool `json:"isWaiting"`
}

// Eligible reports whether a participant with this status may own the room.
func (s PlayerStatus) Eligible() bool {
	return s.IsOnline && !s.IsWaiting
}

// Participant is one roster entry. The fields of Data are stored alongside
// name and status in the same JSON object.
type Participant[P any] struct {
	Data   P
	Name   string
	Status PlayerStatus
}

// MarshalJSON merges Data with name and status.
func (p Participant[P]) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		raw = []byte("{}")
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("participant data must encode as a JSON object, got %s", raw)
	}
	raw, err = sjson.SetBytes(raw, KeyName, p.Name)
	if err != nil {
		return nil, err
	}
	status, err := json.Marshal(p.Status)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, KeyStatus, status)
}

// UnmarshalJSON splits name and status back out of the merged object.
func (p *Participant[P]) UnmarshalJSON(data []byte) error {
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("participant must be a JSON object")
	}
	p.Name = doc.Get(KeyName).String()
	p.Status = PlayerStatus{}
	if s := doc.Get(KeyStatus); s.IsObject() {
		if err := json.Unmarshal([]byte(s.Raw), &p.Status); err != nil {
			return fmt.Errorf("participant status: %w", err)
		}
	}

	rest, err := sjson.DeleteBytes(data, KeyName)
	if err != nil {
		return err
	}
	if rest, err = sjson.DeleteBytes(rest, KeyStatus); err != nil {
		return err
	}
	var value P
	if err := json.Unmarshal(rest, &value); err != nil {
		return fmt.Errorf("participant data: %w", err)
	}
	p.Data = value
	return nil
}

// Entry is a participant together with its identity, in roster order.
type Entry[P any] struct {
	ID          string
	Participant Participant[P]
}

// RoomStatus is the room's status subtree.
type RoomStatus struct {
	Owner  string
	IsOpen bool
}

// MarshalJSON writes a missing owner as null.
func (s RoomStatus) MarshalJSON() ([]byte, error) {
	var owner *string
	if s.Owner != "" {
		owner = &s.Owner
	}
	return json.Marshal(struct {
		Owner  *string `json:"owner"`
		IsOpen bool    `json:"isOpen"`
	}{owner, s.IsOpen})
}

// UnmarshalJSON reads a status subtree; a null owner becomes "".
func (s *RoomStatus) UnmarshalJSON(data []byte) error {
	var wire struct {
		Owner  *string `json:"owner"`
		IsOpen bool    `json:"isOpen"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Owner = ""
	if wire.Owner != nil {
		s.Owner = *wire.Owner
	}
	s.IsOpen = wire.IsOpen
	return nil
}

// Room is the document stored under a room id when the room is founded.
// Players starts empty; PublicData is nil when the host did not declare it.
type Room[G, D any] struct {
	Game       G          `json:"game"`
	PublicData *D         `json:"publicData,omitempty"`
	Status     RoomStatus `json:"status"`
}

// NewRoom builds the founding document for owner.
func NewRoom[G, D any](game G, publicData *D, owner string) Room[G, D] {
	return Room[G, D]{
		Game:       game,
		PublicData: publicData,
		Status:     RoomStatus{Owner: owner, IsOpen: true},
	}
}
