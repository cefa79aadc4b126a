package room

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// MutateGame applies patch to the game section. Only the owner's writes are
// issued; for anyone else the call does nothing and reports success.
func (s *Session[G, P, D]) MutateGame(patch func(*G), onComplete func(error)) {
	if !s.IsOwner() {
		s.log.Debug().Msg("game write ignored: not owner")
		s.complete("mutate_game", nil, onComplete)
		return
	}
	s.transact("mutate_game", store.Join(s.roomID, domain.KeyGame), patchWith(patch), onComplete)
}

// MutateGameField applies patch to game/<key>. Owner only, like MutateGame.
func MutateGameField[G, P, D, T any](s *Session[G, P, D], key string, patch func(*T), onComplete func(error)) {
	if !s.IsOwner() {
		s.log.Debug().Str("key", key).Msg("game write ignored: not owner")
		s.complete("mutate_game", nil, onComplete)
		return
	}
	if err := store.ValidSegment(key); err != nil {
		s.complete("mutate_game", domain.Wrap(domain.CodeInvalidInput, "mutate_game", err), onComplete)
		return
	}
	s.transact("mutate_game", store.Join(s.roomID, domain.KeyGame, key), patchWith(patch), onComplete)
}

// MutateSelf applies patch to this session's own roster entry. Before the
// participant has joined there is no entry and the call does nothing.
func (s *Session[G, P, D]) MutateSelf(patch func(*domain.Participant[P]), onComplete func(error)) {
	if !s.Joined() {
		s.log.Debug().Msg("self write ignored: not joined")
		s.complete("mutate_self", nil, onComplete)
		return
	}
	path := store.Join(s.roomID, domain.KeyPlayers, s.identity)
	s.transact("mutate_self", path, existingOnly(patchWith(patch)), onComplete)
}

// MutateSelfField applies patch to players/<identity>/<key>.
func MutateSelfField[G, P, D, T any](s *Session[G, P, D], key string, patch func(*T), onComplete func(error)) {
	if !s.Joined() {
		s.log.Debug().Str("key", key).Msg("self write ignored: not joined")
		s.complete("mutate_self", nil, onComplete)
		return
	}
	if err := store.ValidSegment(key); err != nil {
		s.complete("mutate_self", domain.Wrap(domain.CodeInvalidInput, "mutate_self", err), onComplete)
		return
	}
	s.transact("mutate_self", store.Join(s.roomID, domain.KeyPlayers, s.identity, key), patchWith(patch), onComplete)
}

// MutatePublicData applies patch to the public data section, which any
// participant may write. It fails with domain.ErrNotConfigured when the
// Engine was created without public data.
func (s *Session[G, P, D]) MutatePublicData(patch func(*D), onComplete func(error)) error {
	if s.engine.init.PublicData == nil {
		return domain.ErrNotConfigured
	}
	s.transact("mutate_public", store.Join(s.roomID, domain.KeyPublicData), patchWith(patch), onComplete)
	return nil
}

// MutatePublicDataField applies patch to publicData/<key>.
func MutatePublicDataField[G, P, D, T any](s *Session[G, P, D], key string, patch func(*T), onComplete func(error)) error {
	if s.engine.init.PublicData == nil {
		return domain.ErrNotConfigured
	}
	if err := store.ValidSegment(key); err != nil {
		return domain.Wrap(domain.CodeInvalidInput, "mutate_public", err)
	}
	s.transact("mutate_public", store.Join(s.roomID, domain.KeyPublicData, key), patchWith(patch), onComplete)
	return nil
}

// patchWith adapts an in-place patch to a transaction. The subtree is
// decoded into a fresh T (the zero T when empty), patched and re-encoded.
// When the patch changes nothing the transaction aborts without writing.
func patchWith[T any](patch func(*T)) store.TransactFunc {
	return func(current json.RawMessage) (json.RawMessage, error) {
		var value T
		if current != nil {
			if err := json.Unmarshal(current, &value); err != nil {
				return nil, fmt.Errorf("decode %T: %w", value, err)
			}
		}
		before, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		patch(&value)
		after, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(before, after) {
			return nil, store.ErrAbort
		}
		return after, nil
	}
}

// existingOnly aborts when the subtree is empty.
func existingOnly(fn store.TransactFunc) store.TransactFunc {
	return func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, store.ErrAbort
		}
		return fn(current)
	}
}
