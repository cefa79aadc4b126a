// Package room attaches client sessions to shared room documents. A session
// founds or reconnects to a room, admits its participant, keeps the room's
// single owner, gates writes by role and projects the document into a View.
package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// Init is the host's initial data for a room type.
type Init[G, P, D any] struct {
	// Game seeds the game section of newly founded rooms.
	Game G
	// Player seeds the data of every newly admitted participant.
	Player P
	// PublicData declares the public data section. Leave nil to have none.
	PublicData *D
}

// Options tunes an Engine.
type Options struct {
	// WriteTimeout bounds each asynchronous write.
	WriteTimeout time.Duration
	// ClaimVacantOwnership lets an eligible participant claim a room it sees
	// without an owner.
	ClaimVacantOwnership bool
}

// Engine attaches sessions to rooms stored in one backend.
type Engine[G, P, D any] struct {
	backend store.Backend
	init    Init[G, P, D]
	opts    Options
}

// New creates an Engine.
func New[G, P, D any](backend store.Backend, init Init[G, P, D], opts Options) *Engine[G, P, D] {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = domain.DefaultWriteTimeout
	}
	return &Engine[G, P, D]{backend: backend, init: init, opts: opts}
}

// AttachOption customises a single attachment.
type AttachOption func(*attachConfig)

type attachConfig struct {
	identity string
	onError  func(error)
}

// WithIdentity resumes a previously assigned identity.
func WithIdentity(identity string) AttachOption {
	return func(c *attachConfig) {
		c.identity = identity
	}
}

// WithErrorHandler receives write failures that had no completion callback.
// Without it they are logged.
func WithErrorHandler(fn func(error)) AttachOption {
	return func(c *attachConfig) {
		c.onError = fn
	}
}

// Attach connects to the store, founds roomID when it does not exist yet
// and subscribes to it. A participant already on the roster is marked
// online again. onUpdate, when not nil, receives every new View; it runs on
// the subscription's goroutine and must not block for long.
//
// Attach returns once the first View is available.
func (e *Engine[G, P, D]) Attach(ctx context.Context, roomID string, onUpdate func(View[G, P, D]), opts ...AttachOption) (s *Session[G, P, D], err error) {
	var cfg attachConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := startSpan(ctx, "room.attach", roomID)
	defer func() { endSpan(span, err) }()

	if err := store.ValidSegment(roomID); err != nil {
		return nil, domain.Wrap(domain.CodeInvalidInput, "attach", err)
	}

	conn, err := e.backend.Connect(ctx, store.WithIdentity(cfg.identity))
	if err != nil {
		return nil, domain.Wrap(domain.CodeConnection, "connect", err)
	}
	identity, err := conn.Authenticate(ctx)
	if err != nil {
		conn.SignOut()
		return nil, domain.Wrap(domain.CodeConnection, "authenticate", err)
	}
	if err := store.ValidSegment(identity); err != nil {
		conn.SignOut()
		return nil, domain.Wrap(domain.CodeConnection, "authenticate", err)
	}

	s = newSession(e, conn, roomID, identity, onUpdate, cfg.onError)
	if err := s.bootstrap(ctx); err != nil {
		conn.SignOut()
		return nil, err
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		conn.SignOut()
		return nil, classify("attach", ctx.Err())
	}
	return s, nil
}

// Exists reports whether roomID has been founded.
func (e *Engine[G, P, D]) Exists(ctx context.Context, roomID string) (bool, error) {
	if err := store.ValidSegment(roomID); err != nil {
		return false, domain.Wrap(domain.CodeInvalidInput, "exists", err)
	}
	conn, err := e.backend.Connect(ctx)
	if err != nil {
		return false, domain.Wrap(domain.CodeConnection, "connect", err)
	}
	defer conn.SignOut()

	raw, err := conn.Read(ctx, store.Join(roomID, domain.KeyStatus))
	if err != nil {
		return false, classify("exists", err)
	}
	return raw != nil, nil
}

// foundingDocument is written when a room does not exist yet.
func (e *Engine[G, P, D]) foundingDocument(owner string) (json.RawMessage, error) {
	return json.Marshal(domain.NewRoom(e.init.Game, e.init.PublicData, owner))
}

func logger(roomID, identity string) zerolog.Logger {
	return log.With().Str("module", "room").Str("room", roomID).Str("identity", identity).Logger()
}
