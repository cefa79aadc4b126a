package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// Teardown detaches the session: it lets in-flight writes finish, cancels
// the subscription, marks the participant offline, hands ownership to the
// next eligible participant and signs out. Waiting for in-flight writes
// uses at most half of ctx's remaining time; the final writes are not
// cancelled with ctx and get their own WriteTimeout. Only the first call
// does anything; later calls return its result.
func (s *Session[G, P, D]) Teardown(ctx context.Context) error {
	s.teardownOnce.Do(func() {
		s.teardownErr = s.teardown(ctx)
	})
	return s.teardownErr
}

func (s *Session[G, P, D]) teardown(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "room.teardown", s.roomID)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	drainCtx, cancelDrain := drainContext(ctx)
	select {
	case <-drained:
	case <-drainCtx.Done():
		s.log.Warn().Msg("teardown proceeding with writes still in flight")
	}
	cancelDrain()

	s.mu.Lock()
	s.closed = true
	sub := s.sub
	s.sub = nil
	view := s.view
	joined := s.joined
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}

	final, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), s.engine.opts.WriteTimeout)
	defer cancelFinal()

	var errs []error
	if joined {
		path := store.Join(s.roomID, domain.KeyPlayers, s.identity, domain.KeyStatus, domain.KeyIsOnline)
		if werr := s.conn.Write(final, path, json.RawMessage("false")); werr != nil {
			errs = append(errs, classify("mark offline", werr))
		}
	}

	// handOff writes only while the store still names this session owner.
	if joined || view.IsOwner {
		next, handed, herr := s.handOff(final, view.Players)
		switch {
		case herr != nil:
			errs = append(errs, herr)
		case handed && next != "":
			s.log.Info().Str("owner", next).Msg("ownership handed off")
		case handed:
			s.log.Info().Msg("ownership cleared: no eligible participant")
		}
	}

	s.conn.SignOut()
	s.log.Info().Bool("joined", joined).Msg("session torn down")
	return errors.Join(errs...)
}

// drainContext bounds the wait for in-flight writes to half of the time ctx
// has left, so the final writes still fit inside the caller's budget.
func drainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}
