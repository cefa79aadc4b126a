package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Swapper is the compare-and-swap primitive a backend exposes to the shared
// optimistic transaction loop.
type Swapper interface {
	// Load returns the current value at p, or nil.
	Load(ctx context.Context, p Path) (json.RawMessage, error)
	// CompareAndSwap stores next at p only if the value there still equals
	// old. It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, p Path, old, next json.RawMessage) (bool, error)
}

// RunTransaction drives fn against s until a swap succeeds, fn aborts, or
// maxRetries attempts have lost their race.
func RunTransaction(ctx context.Context, s Swapper, p Path, maxRetries int, fn TransactFunc) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, err := s.Load(ctx, p)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if errors.Is(err, ErrAbort) {
			return nil
		}
		if err != nil {
			return err
		}
		if IsEmpty(next) {
			next = nil
		}
		if bytes.Equal(bytes.TrimSpace(next), bytes.TrimSpace(current)) {
			return nil
		}
		swapped, err := s.CompareAndSwap(ctx, p, current, next)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		log.Debug().Str("module", "store.transact").Str("path", p.String()).Int("attempt", attempt).Msg("transaction lost race, retrying")
	}
	return fmt.Errorf("%s: %w", p, ErrConflict)
}
