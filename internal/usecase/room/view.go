package room

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// View is the local projection of a room document.
type View[G, P, D any] struct {
	Identity string
	// Exists is false until the room document is present.
	Exists     bool
	Game       G
	Players    []domain.Entry[P] // arrival order
	PublicData *D                // nil when the room has none
	Owner      string            // "" when nobody owns the room
	IsOpen     bool
	IsOwner    bool
	Joined     bool
	My         *domain.Participant[P]
	PlayerList []string
}

// Player looks up a participant by identity.
func (v View[G, P, D]) Player(id string) (domain.Participant[P], bool) {
	for _, e := range v.Players {
		if e.ID == id {
			return e.Participant, true
		}
	}
	return domain.Participant[P]{}, false
}

// Waiting returns the participants awaiting admission, in arrival order.
func (v View[G, P, D]) Waiting() []domain.Entry[P] {
	var out []domain.Entry[P]
	for _, e := range v.Players {
		if e.Participant.Status.IsWaiting {
			out = append(out, e)
		}
	}
	return out
}

// project derives a View from the raw room document. Roster order is the
// key order of the players object, which is arrival order.
func project[G, P, D any](raw json.RawMessage, identity string) (View[G, P, D], error) {
	v := View[G, P, D]{Identity: identity}
	if store.IsEmpty(raw) {
		return v, nil
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return v, fmt.Errorf("room document is not an object")
	}
	v.Exists = true

	if g := doc.Get(domain.KeyGame); g.Exists() && g.Type != gjson.Null {
		if err := json.Unmarshal([]byte(g.Raw), &v.Game); err != nil {
			return v, fmt.Errorf("decode game: %w", err)
		}
	}
	if pd := doc.Get(domain.KeyPublicData); pd.Exists() && pd.Type != gjson.Null {
		d := new(D)
		if err := json.Unmarshal([]byte(pd.Raw), d); err != nil {
			return v, fmt.Errorf("decode public data: %w", err)
		}
		v.PublicData = d
	}

	status := doc.Get(domain.KeyStatus)
	v.Owner = status.Get(domain.KeyOwner).String()
	v.IsOpen = status.Get(domain.KeyIsOpen).Bool()
	v.IsOwner = v.Owner != "" && v.Owner == identity

	var err error
	doc.Get(domain.KeyPlayers).ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		var p domain.Participant[P]
		if err = json.Unmarshal([]byte(value.Raw), &p); err != nil {
			err = fmt.Errorf("decode player %s: %w", key.String(), err)
			return false
		}
		id := key.String()
		v.Players = append(v.Players, domain.Entry[P]{ID: id, Participant: p})
		if p.Name != "" {
			v.PlayerList = append(v.PlayerList, p.Name)
		}
		if id == identity {
			mine := p
			v.My = &mine
		}
		return true
	})
	if err != nil {
		return v, err
	}
	return v, nil
}
