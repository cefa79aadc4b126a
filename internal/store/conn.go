package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Engine is implemented by backends; Conn adapts it to the Store API.
type Engine interface {
	Swapper

	// Put unconditionally replaces the value at p.
	Put(ctx context.Context, p Path, value json.RawMessage) error

	// Watch registers onChange for p, delivering the current value first.
	Watch(p Path, onChange func(json.RawMessage)) (Subscription, error)

	// Assign registers identity, or a fresh one when it is empty, and
	// returns it.
	Assign(ctx context.Context, identity string) (string, error)

	// MaxRetries bounds Transact.
	MaxRetries() int
}

// Conn is one connection to an Engine.
type Conn struct {
	engine Engine

	mu       sync.Mutex
	identity string
	assigned bool
	subs     []Subscription
}

// NewConn opens a connection that resumes identity when it is non-empty.
func NewConn(engine Engine, identity string) *Conn {
	return &Conn{engine: engine, identity: identity}
}

// Authenticate implements Store.
func (c *Conn) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assigned {
		return c.identity, nil
	}
	identity, err := c.engine.Assign(ctx, c.identity)
	if err != nil {
		return "", err
	}
	c.identity = identity
	c.assigned = true
	return identity, nil
}

// Read implements Store.
func (c *Conn) Read(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return c.engine.Load(ctx, p)
}

// Write implements Store.
func (c *Conn) Write(ctx context.Context, path string, value json.RawMessage) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return c.engine.Put(ctx, p, value)
}

// Subscribe implements Store.
func (c *Conn) Subscribe(path string, onChange func(json.RawMessage)) (Subscription, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	sub, err := c.engine.Watch(p, onChange)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

// Transact implements Store.
func (c *Conn) Transact(ctx context.Context, path string, fn TransactFunc) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, c.engine, p, c.engine.MaxRetries(), fn)
}

// SignOut implements Store.
func (c *Conn) SignOut() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.identity = ""
	c.assigned = false
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}
