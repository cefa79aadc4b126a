package room

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// JoinOutcome is the synchronous answer to a join request.
type JoinOutcome string

const (
	// JoinAccepted means the roster entry is being written.
	JoinAccepted      JoinOutcome = "ok"
	JoinEmptyName     JoinOutcome = "empty-name"
	JoinNameTaken     JoinOutcome = "name-taken"
	JoinAlreadyJoined JoinOutcome = "already-joined"
)

// RequestJoin asks to add this session's participant to the roster under
// displayName. Validation runs against the local projection; when it
// passes, the entry is written asynchronously and onComplete reports the
// write. A closed room admits the participant onto the waiting list.
//
// Name uniqueness is only as good as the local snapshot: two sessions that
// join at the same instant can both get the same name.
func (s *Session[G, P, D]) RequestJoin(displayName string, onComplete func(error)) JoinOutcome {
	s.mu.Lock()
	if s.joined || s.joining {
		s.mu.Unlock()
		return JoinAlreadyJoined
	}
	if strings.TrimSpace(displayName) == "" {
		s.mu.Unlock()
		return JoinEmptyName
	}
	if domain.NameTaken(s.view.PlayerList, displayName) {
		s.mu.Unlock()
		return JoinNameTaken
	}
	waiting := !s.view.IsOpen
	s.joining = true
	s.mu.Unlock()

	entry, err := json.Marshal(domain.Participant[P]{
		Data:   s.engine.init.Player,
		Name:   displayName,
		Status: domain.PlayerStatus{IsOnline: true, IsWaiting: waiting},
	})
	path := store.Join(s.roomID, domain.KeyPlayers, s.identity)

	s.goWrite("join", func(ctx context.Context) error {
		if err != nil {
			return err
		}
		return s.conn.Write(ctx, path, entry)
	}, func(werr error) {
		s.mu.Lock()
		s.joining = false
		if werr == nil {
			s.joined = true
		}
		s.mu.Unlock()
		if werr == nil {
			s.log.Info().Str("name", displayName).Bool("waiting", waiting).Msg("participant joined")
		}
		s.complete("join", werr, onComplete)
	})
	return JoinAccepted
}
