package room

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// Session is one client's attachment to one room. It holds exactly one
// subscription, on the room document, until Teardown.
type Session[G, P, D any] struct {
	engine   *Engine[G, P, D]
	conn     store.Store
	roomID   string
	identity string
	onUpdate func(View[G, P, D])
	onError  func(error)
	log      zerolog.Logger

	mu       sync.RWMutex
	view     View[G, P, D]
	joined   bool
	joining  bool
	claiming bool
	closing  bool // no new writes
	closed   bool // no more projections
	sub      store.Subscription

	ready     chan struct{}
	readyOnce sync.Once
	inflight  sync.WaitGroup

	teardownOnce sync.Once
	teardownErr  error
}

func newSession[G, P, D any](e *Engine[G, P, D], conn store.Store, roomID, identity string, onUpdate func(View[G, P, D]), onError func(error)) *Session[G, P, D] {
	return &Session[G, P, D]{
		engine:   e,
		conn:     conn,
		roomID:   roomID,
		identity: identity,
		onUpdate: onUpdate,
		onError:  onError,
		log:      logger(roomID, identity),
		view:     View[G, P, D]{Identity: identity},
		ready:    make(chan struct{}),
	}
}

// bootstrap founds the room or reconnects to it, then subscribes.
func (s *Session[G, P, D]) bootstrap(ctx context.Context) error {
	founding, err := s.engine.foundingDocument(s.identity)
	if err != nil {
		return err
	}

	var (
		existing json.RawMessage
		founded  bool
	)
	err = s.conn.Transact(ctx, s.roomID, func(current json.RawMessage) (json.RawMessage, error) {
		existing, founded = current, current == nil
		if current != nil {
			return nil, store.ErrAbort
		}
		return founding, nil
	})
	if err != nil {
		return classify("found room", err)
	}

	if founded {
		s.log.Info().Msg("room founded")
	} else {
		prior, err := project[G, P, D](existing, s.identity)
		if err != nil {
			s.log.Warn().Err(err).Msg("existing room document could not be projected")
		}
		if prior.My != nil {
			s.joined = true
			path := store.Join(s.roomID, domain.KeyPlayers, s.identity, domain.KeyStatus, domain.KeyIsOnline)
			if err := s.conn.Write(ctx, path, json.RawMessage("true")); err != nil {
				return classify("reconnect", err)
			}
			s.log.Info().Str("name", prior.My.Name).Msg("participant reconnected")
		}
	}

	sub, err := s.conn.Subscribe(s.roomID, s.onPush)
	if err != nil {
		return classify("subscribe", err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// onPush replaces the projection with one derived from the latest document.
func (s *Session[G, P, D]) onPush(raw json.RawMessage) {
	defer s.readyOnce.Do(func() { close(s.ready) })

	view, err := project[G, P, D](raw, s.identity)
	if err != nil {
		s.log.Warn().Err(err).Msg("room document could not be projected")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if view.My != nil {
		s.joined = true
	}
	view.Joined = s.joined
	s.view = view
	claim := s.engine.opts.ClaimVacantOwnership && !s.closing && !s.claiming &&
		view.Exists && view.Owner == "" && view.My != nil && view.My.Status.Eligible()
	if claim {
		s.claiming = true
	}
	hook := s.onUpdate
	s.mu.Unlock()

	if claim {
		s.claimVacant()
	}
	if hook != nil {
		hook(view)
	}
}

// RoomID returns the room this session is attached to.
func (s *Session[G, P, D]) RoomID() string { return s.roomID }

// Identity returns the store-assigned identity of this session.
func (s *Session[G, P, D]) Identity() string { return s.identity }

// View returns the current projection. Treat it as read-only.
func (s *Session[G, P, D]) View() View[G, P, D] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Joined reports whether this session's participant has been admitted.
func (s *Session[G, P, D]) Joined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joined
}

// IsOwner reports whether the projection names this session as owner.
func (s *Session[G, P, D]) IsOwner() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.IsOwner
}

// goWrite runs fn on its own goroutine under the write timeout and reports
// the outcome. Writes are refused once Teardown has begun.
func (s *Session[G, P, D]) goWrite(op string, fn func(ctx context.Context) error, onComplete func(error)) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.complete(op, domain.ErrClosed, onComplete)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.engine.opts.WriteTimeout)
		defer cancel()

		ctx, span := startSpan(ctx, "room."+op, s.roomID)
		err := classify(op, fn(ctx))
		endSpan(span, err)
		s.complete(op, err, onComplete)
	}()
}

// transact runs an optimistic transaction on path as an asynchronous write.
func (s *Session[G, P, D]) transact(op, path string, fn store.TransactFunc, onComplete func(error)) {
	s.goWrite(op, func(ctx context.Context) error {
		return s.runTransaction(ctx, path, fn)
	}, onComplete)
}

func (s *Session[G, P, D]) runTransaction(ctx context.Context, path string, fn store.TransactFunc) error {
	ctx, span := startSpan(ctx, "room.transact", s.roomID, attribute.String("store.path", path))
	err := s.conn.Transact(ctx, path, fn)
	endSpan(span, err)
	return err
}

func (s *Session[G, P, D]) complete(op string, err error, onComplete func(error)) {
	if onComplete != nil {
		onComplete(err)
		return
	}
	if err == nil {
		return
	}
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.log.Error().Err(err).Str("op", op).Msg("room write failed")
}
