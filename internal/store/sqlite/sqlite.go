// Package sqlite provides a SQLite-backed room state store. Each root
// document is one row guarded by a version column; transactions are
// version compare-and-swaps. A poller picks up commits made by other
// processes sharing the database file.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/mmuslimabdulj/goat-rooms/internal/store"
	"github.com/mmuslimabdulj/goat-rooms/internal/store/sqlite/migrations"
)

// DefaultPollInterval is how often foreign commits are looked for.
const DefaultPollInterval = 500 * time.Millisecond

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

// WithPollInterval sets the foreign-commit poll period. Zero disables it.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.pollInterval = d
	}
}

// Backend persists the key-tree in SQLite.
type Backend struct {
	db           *sql.DB
	hub          *store.Hub
	maxRetries   int
	pollInterval time.Duration

	// commitMu orders in-process commits, their broadcasts, and watch
	// registration.
	commitMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	lastRev int64
	stop    chan struct{}
	wg      sync.WaitGroup
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

// Open opens the database at path and applies embedded migrations.
func Open(path string, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer connection keeps the rev counter monotonic in-process.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %v", store.ErrUnavailable, err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	b := &Backend{
		db:           db,
		hub:          store.NewHub(),
		maxRetries:   store.DefaultMaxRetries,
		pollInterval: DefaultPollInterval,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) FROM nodes`).Scan(&b.lastRev); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read revision: %w", err)
	}

	go b.hub.Run()
	if b.pollInterval > 0 {
		b.wg.Add(1)
		go b.pollLoop()
	}
	log.Info().Str("module", "store.sqlite").Str("path", path).Msg("backend opened")
	return b, nil
}

// Connect implements store.Backend.
func (b *Backend) Connect(ctx context.Context, opts ...store.ConnectOption) (store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.isClosed() {
		return nil, fmt.Errorf("%w: backend closed", store.ErrUnavailable)
	}
	if err := b.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	cfg := store.ApplyConnectOptions(opts...)
	return store.NewConn(b, cfg.Identity), nil
}

// Close stops the poller and subscriptions and closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	b.hub.Stop()
	return b.db.Close()
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// MaxRetries implements store.Engine.
func (b *Backend) MaxRetries() int { return b.maxRetries }

// Assign implements store.Engine. Identities are recorded so they survive
// restarts and can be resumed.
func (b *Backend) Assign(ctx context.Context, identity string) (string, error) {
	if b.isClosed() {
		return "", fmt.Errorf("%w: backend closed", store.ErrUnavailable)
	}
	if identity == "" {
		identity = uuid.NewString()
	}
	if _, err := b.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO identities (id, created_at) VALUES (?, ?)`,
		identity, nowMillis(),
	); err != nil {
		return "", fmt.Errorf("%w: assign identity: %v", store.ErrUnavailable, err)
	}
	return identity, nil
}

// Load implements store.Swapper.
func (b *Backend) Load(ctx context.Context, p store.Path) (json.RawMessage, error) {
	if b.isClosed() {
		return nil, store.ErrClosed
	}
	doc, _, _, err := b.loadRoot(ctx, p.Root)
	if err != nil {
		return nil, err
	}
	return store.Get(doc, p), nil
}

// CompareAndSwap implements store.Swapper. A row version mismatch caused by
// a change elsewhere in the same root is retried here; only a change to the
// subtree itself reports false.
func (b *Backend) CompareAndSwap(ctx context.Context, p store.Path, old, next json.RawMessage) (bool, error) {
	if b.isClosed() {
		return false, store.ErrClosed
	}
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		doc, version, found, err := b.loadRoot(ctx, p.Root)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(store.Get(doc, p), old) {
			return false, nil
		}
		updated, err := store.Set(doc, p, next)
		if err != nil {
			return false, err
		}
		ok, err := b.commitAndBroadcast(ctx, p.Root, updated, version, found)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Put implements store.Engine.
func (b *Backend) Put(ctx context.Context, p store.Path, value json.RawMessage) error {
	if b.isClosed() {
		return store.ErrClosed
	}
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		doc, version, found, err := b.loadRoot(ctx, p.Root)
		if err != nil {
			return err
		}
		updated, err := store.Set(doc, p, value)
		if err != nil {
			return err
		}
		ok, err := b.commitAndBroadcast(ctx, p.Root, updated, version, found)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("write %s: %w", p, store.ErrConflict)
}

// Watch implements store.Engine.
func (b *Backend) Watch(p store.Path, onChange func(json.RawMessage)) (store.Subscription, error) {
	if b.isClosed() {
		return nil, store.ErrClosed
	}
	b.commitMu.Lock()
	defer b.commitMu.Unlock()
	doc, _, _, err := b.loadRoot(context.Background(), p.Root)
	if err != nil {
		return nil, err
	}
	return b.hub.Watch(p, store.Get(doc, p), onChange)
}

func (b *Backend) commitAndBroadcast(ctx context.Context, root string, doc []byte, version int64, found bool) (bool, error) {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()
	ok, err := b.commitRoot(ctx, root, doc, version, found)
	if err != nil || !ok {
		return ok, err
	}
	b.hub.Broadcast(root, doc)
	return true, nil
}

func (b *Backend) loadRoot(ctx context.Context, root string) ([]byte, int64, bool, error) {
	var (
		doc     sql.NullString
		version int64
	)
	err := b.db.QueryRowContext(ctx, `SELECT doc, version FROM nodes WHERE root = ?`, root).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("load %s: %w", root, err)
	}
	if !doc.Valid {
		return nil, version, true, nil
	}
	return []byte(doc.String), version, true, nil
}

// commitRoot writes doc when the row still has version. It reports false
// when another writer got there first.
func (b *Backend) commitRoot(ctx context.Context, root string, doc []byte, version int64, found bool) (bool, error) {
	var value sql.NullString
	if doc != nil {
		value = sql.NullString{String: string(doc), Valid: true}
	}

	var (
		res sql.Result
		err error
	)
	if !found {
		res, err = b.db.ExecContext(ctx,
			`INSERT INTO nodes (root, doc, version, rev, updated_at)
			 VALUES (?, ?, 1, (SELECT COALESCE(MAX(rev), 0) + 1 FROM nodes), ?)
			 ON CONFLICT(root) DO NOTHING`,
			root, value, nowMillis(),
		)
	} else {
		res, err = b.db.ExecContext(ctx,
			`UPDATE nodes
			 SET doc = ?, version = version + 1,
			     rev = (SELECT COALESCE(MAX(rev), 0) + 1 FROM nodes),
			     updated_at = ?
			 WHERE root = ? AND version = ?`,
			value, nowMillis(), root, version,
		)
	}
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", root, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", root, err)
	}
	return n == 1, nil
}

func (b *Backend) pollLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.poll(context.Background()); err != nil {
				log.Warn().Str("module", "store.sqlite").Err(err).Msg("poll failed")
			}
		}
	}
}

// poll broadcasts every root committed since the last poll. The hub drops
// values its watchers have already seen, including this process's commits.
// Holding commitMu keeps a polled document from overtaking a newer local
// commit in the hub.
func (b *Backend) poll(ctx context.Context) error {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()

	b.mu.Lock()
	since := b.lastRev
	b.mu.Unlock()

	rows, err := b.db.QueryContext(ctx, `SELECT root, doc, rev FROM nodes WHERE rev > ? ORDER BY rev`, since)
	if err != nil {
		return err
	}
	defer rows.Close()

	maxRev := since
	for rows.Next() {
		var (
			root string
			doc  sql.NullString
			rev  int64
		)
		if err := rows.Scan(&root, &doc, &rev); err != nil {
			return err
		}
		var raw []byte
		if doc.Valid {
			raw = []byte(doc.String)
		}
		b.hub.Broadcast(root, raw)
		if rev > maxRev {
			maxRev = rev
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if maxRev > b.lastRev {
		b.lastRev = maxRev
	}
	b.mu.Unlock()
	return nil
}
