// Package memory is an in-process room state store. Every connection made
// through one Backend sees the same key-tree, which makes it the natural
// backend for a single server process and for tests.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// Option configures a Backend.
type Option func(*Backend)

// WithMaxRetries bounds the transaction retry loop.
func WithMaxRetries(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxRetries = n
		}
	}
}

// Backend holds the shared key-tree: one JSON document per root.
type Backend struct {
	mu         sync.Mutex
	docs       map[string][]byte
	hub        *store.Hub
	maxRetries int
	closed     bool
}

// New creates a Backend and starts its change fan-out.
func New(opts ...Option) *Backend {
	b := &Backend{
		docs:       make(map[string][]byte),
		hub:        store.NewHub(),
		maxRetries: store.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.hub.Run()
	return b
}

// Connect opens a connection. The identity is assigned by Authenticate
// unless resumed with store.WithIdentity.
func (b *Backend) Connect(ctx context.Context, opts ...store.ConnectOption) (store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.isClosed() {
		return nil, fmt.Errorf("%w: backend closed", store.ErrUnavailable)
	}
	cfg := store.ApplyConnectOptions(opts...)
	return store.NewConn(b, cfg.Identity), nil
}

// Close stops delivery to every subscription. Further operations fail.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.hub.Stop()
	log.Info().Str("module", "store.memory").Msg("backend closed")
	return nil
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// MaxRetries implements store.Engine.
func (b *Backend) MaxRetries() int { return b.maxRetries }

// Assign implements store.Engine. Identities are random UUIDs.
func (b *Backend) Assign(ctx context.Context, identity string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.isClosed() {
		return "", fmt.Errorf("%w: backend closed", store.ErrUnavailable)
	}
	if identity == "" {
		identity = uuid.NewString()
	}
	return identity, nil
}

// Load implements store.Swapper.
func (b *Backend) Load(ctx context.Context, p store.Path) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, store.ErrClosed
	}
	return store.Get(b.docs[p.Root], p), nil
}

// CompareAndSwap implements store.Swapper.
func (b *Backend) CompareAndSwap(ctx context.Context, p store.Path, old, next json.RawMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, store.ErrClosed
	}
	if !bytes.Equal(store.Get(b.docs[p.Root], p), old) {
		return false, nil
	}
	return true, b.setLocked(p, next)
}

// Put implements store.Engine.
func (b *Backend) Put(ctx context.Context, p store.Path, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return store.ErrClosed
	}
	return b.setLocked(p, value)
}

// Watch implements store.Engine. The initial value is read under the same
// lock that orders broadcasts.
func (b *Backend) Watch(p store.Path, onChange func(json.RawMessage)) (store.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, store.ErrClosed
	}
	return b.hub.Watch(p, store.Get(b.docs[p.Root], p), onChange)
}

// setLocked applies a change and broadcasts it while b.mu is held, so the
// hub sees changes in commit order.
func (b *Backend) setLocked(p store.Path, value json.RawMessage) error {
	doc, err := store.Set(b.docs[p.Root], p, value)
	if err != nil {
		return err
	}
	if doc == nil {
		delete(b.docs, p.Root)
	} else {
		b.docs[p.Root] = doc
	}
	b.hub.Broadcast(p.Root, doc)
	return nil
}
