package room

import (
	"context"
	"encoding/json"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// OwnerTools groups the operations reserved for the room owner. It is handed
// out only while the session owns the room; once ownership moves, every
// call fails with domain.ErrNotOwner.
type OwnerTools[G, P, D any] struct {
	s *Session[G, P, D]
}

// OwnerTools returns the owner capability, or false when this session does
// not own the room.
func (s *Session[G, P, D]) OwnerTools() (*OwnerTools[G, P, D], bool) {
	if !s.IsOwner() {
		return nil, false
	}
	return &OwnerTools[G, P, D]{s: s}, true
}

// WaitingPlayer is a participant awaiting admission.
type WaitingPlayer[G, P, D any] struct {
	ID          string
	Participant domain.Participant[P]
	tools       *OwnerTools[G, P, D]
}

// Admit moves the participant off the waiting list.
func (w WaitingPlayer[G, P, D]) Admit(onComplete func(error)) {
	w.tools.Admit(w.ID, onComplete)
}

// StartGame closes the room; later joiners wait for admission.
func (o *OwnerTools[G, P, D]) StartGame(onComplete func(error)) {
	o.setOpen("start_game", false, onComplete)
}

// SetOpen opens or closes the room to direct admission.
func (o *OwnerTools[G, P, D]) SetOpen(open bool, onComplete func(error)) {
	o.setOpen("set_open", open, onComplete)
}

func (o *OwnerTools[G, P, D]) setOpen(op string, open bool, onComplete func(error)) {
	s := o.s
	if !s.IsOwner() {
		s.complete(op, domain.ErrNotOwner, onComplete)
		return
	}
	s.transact(op, store.Join(s.roomID, domain.KeyStatus), func(current json.RawMessage) (json.RawMessage, error) {
		var status domain.RoomStatus
		if current != nil {
			if err := json.Unmarshal(current, &status); err != nil {
				return nil, err
			}
		}
		if status.Owner != s.identity {
			return nil, domain.ErrNotOwner
		}
		if status.IsOpen == open {
			return nil, store.ErrAbort
		}
		status.IsOpen = open
		return json.Marshal(status)
	}, onComplete)
}

// WaitingPlayers lists the participants awaiting admission, in arrival order.
func (o *OwnerTools[G, P, D]) WaitingPlayers() []WaitingPlayer[G, P, D] {
	var out []WaitingPlayer[G, P, D]
	for _, e := range o.s.View().Waiting() {
		out = append(out, WaitingPlayer[G, P, D]{ID: e.ID, Participant: e.Participant, tools: o})
	}
	return out
}

// Admit clears the waiting flag of participant id.
func (o *OwnerTools[G, P, D]) Admit(id string, onComplete func(error)) {
	s := o.s
	if !s.IsOwner() {
		s.complete("admit", domain.ErrNotOwner, onComplete)
		return
	}
	if err := store.ValidSegment(id); err != nil {
		s.complete("admit", domain.Wrap(domain.CodeInvalidInput, "admit", err), onComplete)
		return
	}
	path := store.Join(s.roomID, domain.KeyPlayers, id, domain.KeyStatus)
	s.transact("admit", path, existingOnly(patchWith(func(st *domain.PlayerStatus) {
		st.IsWaiting = false
	})), func(err error) {
		if err == nil {
			s.log.Info().Str("admitted", id).Msg("participant admitted")
		}
		s.complete("admit", err, onComplete)
	})
}

// TransferOwnership hands the room to participant id, which must be online
// and not waiting.
func (o *OwnerTools[G, P, D]) TransferOwnership(id string, onComplete func(error)) {
	s := o.s
	if !s.IsOwner() {
		s.complete("transfer", domain.ErrNotOwner, onComplete)
		return
	}
	target, ok := s.View().Player(id)
	if !ok || id == s.identity || !target.Status.Eligible() {
		s.complete("transfer", domain.ErrIneligible, onComplete)
		return
	}
	next, _ := json.Marshal(id)
	path := store.Join(s.roomID, domain.KeyStatus, domain.KeyOwner)
	s.goWrite("transfer", func(ctx context.Context) error {
		return s.runTransaction(ctx, path, func(current json.RawMessage) (json.RawMessage, error) {
			if decodeOwner(current) != s.identity {
				return nil, domain.ErrNotOwner
			}
			return next, nil
		})
	}, func(err error) {
		if err == nil {
			s.log.Info().Str("owner", id).Msg("ownership transferred")
		}
		s.complete("transfer", err, onComplete)
	})
}
