package room

import (
	"context"
	"encoding/json"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// nextOwner picks the first participant in arrival order that is online,
// not waiting, and not the one leaving.
func nextOwner[P any](players []domain.Entry[P], departing string) (string, bool) {
	for _, e := range players {
		if e.ID == departing {
			continue
		}
		if e.Participant.Status.Eligible() {
			return e.ID, true
		}
	}
	return "", false
}

// handOff passes ownership from this session to the next eligible
// participant of roster, or clears it when there is none. The write only
// happens while this session is still the recorded owner.
func (s *Session[G, P, D]) handOff(ctx context.Context, roster []domain.Entry[P]) (string, bool, error) {
	candidate, found := nextOwner(roster, s.identity)
	var next json.RawMessage
	if found {
		next, _ = json.Marshal(candidate)
	}

	handed := false
	path := store.Join(s.roomID, domain.KeyStatus, domain.KeyOwner)
	err := s.runTransaction(ctx, path, func(current json.RawMessage) (json.RawMessage, error) {
		handed = false
		if decodeOwner(current) != s.identity {
			return nil, store.ErrAbort
		}
		handed = true
		return next, nil
	})
	if err != nil {
		return "", false, classify("hand off ownership", err)
	}
	return candidate, handed, nil
}

// claimVacant takes ownership of a room observed without an owner. Only
// one claimant can win: the write requires the field to still be empty.
func (s *Session[G, P, D]) claimVacant() {
	me, _ := json.Marshal(s.identity)
	path := store.Join(s.roomID, domain.KeyStatus, domain.KeyOwner)
	s.transact("claim_owner", path, func(current json.RawMessage) (json.RawMessage, error) {
		if decodeOwner(current) != "" {
			return nil, store.ErrAbort
		}
		return me, nil
	}, func(err error) {
		s.mu.Lock()
		s.claiming = false
		s.mu.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Msg("claiming vacant room failed")
			return
		}
		s.log.Info().Msg("claimed vacant room")
	})
}

func decodeOwner(raw json.RawMessage) string {
	var owner string
	if raw != nil {
		_ = json.Unmarshal(raw, &owner)
	}
	return owner
}
