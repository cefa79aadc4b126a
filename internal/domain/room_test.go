package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/tidwall/gjson"
)

func TestParticipant_MarshalMergesFields(t *testing.T) {
	p := Participant[PlayerData]{
		Data:   PlayerData{Color: "#FF00FF", Score: 3},
		Name:   "Ann",
		Status: PlayerStatus{IsOnline: true},
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	doc := gjson.ParseBytes(raw)
	if doc.Get("color").String() != "#FF00FF" {
		t.Errorf("Expected color at top level, got %s", raw)
	}
	if doc.Get("name").String() != "Ann" {
		t.Errorf("Expected name Ann, got %s", raw)
	}
	if !doc.Get("status.isOnline").Bool() {
		t.Errorf("Expected status.isOnline true, got %s", raw)
	}
	if doc.Get("Data").Exists() {
		t.Errorf("Expected no Data wrapper, got %s", raw)
	}
}

func TestParticipant_RoundTrip(t *testing.T) {
	in := Participant[PlayerData]{
		Data:   PlayerData{Color: "#00FFFF", Score: 9},
		Name:   "Bo",
		Status: PlayerStatus{IsOnline: true, IsWaiting: true},
	}
	raw, _ := json.Marshal(in)

	var out Participant[PlayerData]
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
}

func TestParticipant_MapDataExcludesReservedKeys(t *testing.T) {
	raw := []byte(`{"name":"Cid","status":{"isOnline":false},"hat":"red"}`)
	var p Participant[map[string]any]
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.Name != "Cid" {
		t.Errorf("Expected name Cid, got %s", p.Name)
	}
	if _, ok := p.Data["name"]; ok {
		t.Error("Expected name to be split out of Data")
	}
	if p.Data["hat"] != "red" {
		t.Errorf("Expected hat red, got %v", p.Data["hat"])
	}
}

func TestParticipant_NonObjectDataRejected(t *testing.T) {
	p := Participant[int]{Data: 5, Name: "x"}
	if _, err := json.Marshal(p); err == nil {
		t.Error("Expected error for scalar participant data")
	}
}

func TestPlayerStatus_Eligible(t *testing.T) {
	tests := []struct {
		name     string
		status   PlayerStatus
		expected bool
	}{
		{"Online", PlayerStatus{IsOnline: true}, true},
		{"Offline", PlayerStatus{}, false},
		{"Waiting", PlayerStatus{IsOnline: true, IsWaiting: true}, false},
		{"Spectating", PlayerStatus{IsOnline: true, IsSpectating: true}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Eligible(); got != tc.expected {
				t.Errorf("Eligible() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestRoomStatus_OwnerNull(t *testing.T) {
	raw, _ := json.Marshal(RoomStatus{IsOpen: true})
	if string(raw) != `{"owner":null,"isOpen":true}` {
		t.Errorf("Expected null owner, got %s", raw)
	}

	var s RoomStatus
	if err := json.Unmarshal([]byte(`{"owner":null,"isOpen":false}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.Owner != "" {
		t.Errorf("Expected empty owner, got %q", s.Owner)
	}
}

func TestNewRoom_PublicDataAbsentWhenUndeclared(t *testing.T) {
	raw, _ := json.Marshal(NewRoom[Fields, Fields](Fields{}, nil, "a"))
	if gjson.GetBytes(raw, "publicData").Exists() {
		t.Errorf("Expected no publicData key, got %s", raw)
	}
	if gjson.GetBytes(raw, "status.owner").String() != "a" {
		t.Errorf("Expected owner a, got %s", raw)
	}
	if !gjson.GetBytes(raw, "status.isOpen").Bool() {
		t.Errorf("Expected open room, got %s", raw)
	}
}

func TestError_IsByCode(t *testing.T) {
	err := fmt.Errorf("transfer: %w", Wrap(CodeNotOwner, "stale capability", errors.New("boom")))
	if !errors.Is(err, ErrNotOwner) {
		t.Error("Expected errors.Is to match by code")
	}
	if errors.Is(err, ErrIneligible) {
		t.Error("Expected no match for a different code")
	}
	code, ok := CodeOf(err)
	if !ok || code != CodeNotOwner {
		t.Errorf("Expected code %s, got %s", CodeNotOwner, code)
	}
}

func TestNameTaken(t *testing.T) {
	names := []string{"Ann", "", "Émile", "Straße"}
	tests := []struct {
		candidate string
		expected  bool
	}{
		{"ann", true},
		{"ANN", true},
		{"éMILE", true},
		{"Bo", false},
		{"Ann ", false},
		{"STRASSE", true},
		{"Strasse", true},
	}
	for _, tc := range tests {
		if got := NameTaken(names, tc.candidate); got != tc.expected {
			t.Errorf("NameTaken(%q) = %v, expected %v", tc.candidate, got, tc.expected)
		}
	}
}
