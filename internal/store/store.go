// Package store defines the room state store the coordination core runs on:
// a replicated JSON key-tree offering point reads, writes, subscriptions and
// optimistic read-modify-write transactions. Backends live in sub-packages.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnavailable is returned when the backend cannot be reached or has
	// rejected the connection.
	ErrUnavailable = errors.New("store unavailable")

	// ErrClosed is returned by operations on a closed backend or connection.
	ErrClosed = errors.New("store closed")

	// ErrConflict is returned by Transact when the value kept changing
	// underneath the transaction past the backend's retry limit.
	ErrConflict = errors.New("transaction conflict: retries exhausted")

	// ErrAbort may be returned from a TransactFunc to end the transaction
	// without writing. Transact then returns nil.
	ErrAbort = errors.New("transaction aborted")

	// ErrInvalidPath is returned for malformed paths.
	ErrInvalidPath = errors.New("invalid store path")
)

// DefaultMaxRetries bounds the optimistic transaction loop.
const DefaultMaxRetries = 25

// TransactFunc computes the next value of a subtree from its current value.
// current is nil when the subtree is empty. Returning a nil next value
// deletes the subtree. The function may run several times and must not
// have side effects beyond its return value.
type TransactFunc func(current json.RawMessage) (next json.RawMessage, err error)

// Subscription is a live watch on one subtree.
type Subscription interface {
	// Cancel stops delivery. It is safe to call more than once and from
	// inside the watch callback.
	Cancel()
}

// Store is one authenticated connection to the key-tree.
type Store interface {
	// Authenticate returns the store-assigned identity of this connection,
	// assigning one on first call. The identity is stable until SignOut.
	Authenticate(ctx context.Context) (string, error)

	// Read returns the value at path, or nil when the path is empty.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write replaces the value at path. A nil or JSON null value deletes it.
	Write(ctx context.Context, path string, value json.RawMessage) error

	// Subscribe registers onChange for the subtree at path. onChange fires
	// once with the current value, then whenever the value changes. Bursts
	// of changes may be coalesced; the latest value is always delivered.
	Subscribe(path string, onChange func(json.RawMessage)) (Subscription, error)

	// Transact runs an optimistic read-modify-write of the subtree at path.
	Transact(ctx context.Context, path string, fn TransactFunc) error

	// SignOut forgets the identity and cancels every subscription made
	// through this connection.
	SignOut()
}

// Backend hands out connections to a shared key-tree.
type Backend interface {
	Connect(ctx context.Context, opts ...ConnectOption) (Store, error)
	Close() error
}

// ConnectConfig carries per-connection settings.
type ConnectConfig struct {
	// Identity, when set, is resumed instead of assigning a fresh one.
	Identity string
}

// ConnectOption customises a connection.
type ConnectOption func(*ConnectConfig)

// WithIdentity resumes a previously assigned identity.
func WithIdentity(identity string) ConnectOption {
	return func(c *ConnectConfig) {
		c.Identity = identity
	}
}

// ApplyConnectOptions folds opts into a ConnectConfig.
func ApplyConnectOptions(opts ...ConnectOption) ConnectConfig {
	var cfg ConnectConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
