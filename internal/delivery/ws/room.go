package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase/room"
)

// The demo host stores free-form game and public sections and a
// PlayerData payload per participant.
type (
	Engine  = room.Engine[domain.Fields, domain.PlayerData, domain.Fields]
	Session = room.Session[domain.Fields, domain.PlayerData, domain.Fields]
	View    = room.View[domain.Fields, domain.PlayerData, domain.Fields]
)

// defaultRoomName labels rooms recovered from the store after a restart
const defaultRoomName = "Room"

// Room is a room the host knows a label for
type Room struct {
	Code      string // 12-character unique code, also the store root
	Name      string // User-defined room name
	CreatedAt time.Time
}

// ManagerConfig tunes the connections a RoomManager serves
type ManagerConfig struct {
	MessageLimit    rate.Limit // inbound frames/sec per connection
	MessageBurst    int
	MaxMessageSize  int64
	SessionTTL      time.Duration
	TeardownTimeout time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.MessageLimit <= 0 {
		c.MessageLimit = domain.DefaultRateLimitMessages
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = int(c.MessageLimit) * 2
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = domain.MaxMessageSize
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = domain.SessionTTL
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = domain.DefaultTeardownTimeout
	}
	return c
}

// RoomManager tracks room labels and the sessions attached through this host
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room // map[code]*Room
	sessions map[*Session]struct{}

	engine    *Engine
	tokens    *SessionStore
	suggester *usecase.NameSuggester
	cfg       ManagerConfig
}

// NewRoomManager creates a new room manager
func NewRoomManager(engine *Engine, cfg ManagerConfig) *RoomManager {
	cfg = cfg.withDefaults()
	return &RoomManager{
		rooms:     make(map[string]*Room),
		sessions:  make(map[*Session]struct{}),
		engine:    engine,
		tokens:    NewSessionStore(cfg.SessionTTL),
		suggester: usecase.NewNameSuggester(time.Now().UnixNano()),
		cfg:       cfg,
	}
}

// Engine returns the room engine sessions attach through
func (rm *RoomManager) Engine() *Engine { return rm.engine }

// Tokens returns the reconnect token store
func (rm *RoomManager) Tokens() *SessionStore { return rm.tokens }

// GenerateRoomCode generates a 12-character hex code
func GenerateRoomCode() string {
	bytes := make([]byte, domain.RoomCodeLength/2)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// CreateRoom registers a new room with the given name. The room document
// itself is founded by the first session that attaches.
func (rm *RoomManager) CreateRoom(name string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	code := GenerateRoomCode()
	for {
		if _, exists := rm.rooms[code]; !exists {
			break
		}
		code = GenerateRoomCode()
	}

	r := &Room{Code: code, Name: name, CreatedAt: time.Now()}
	rm.rooms[code] = r
	return r
}

// GetRoom returns a room by its code
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[code]
}

// FindRoom returns a known room, or registers one the store already holds.
// It returns nil when neither knows the code or the code is malformed.
func (rm *RoomManager) FindRoom(ctx context.Context, code string) (*Room, error) {
	if r := rm.GetRoom(code); r != nil {
		return r, nil
	}
	exists, err := rm.engine.Exists(ctx, code)
	if errors.Is(err, domain.ErrInvalidInput) {
		return nil, nil
	}
	if err != nil || !exists {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if r, ok := rm.rooms[code]; ok {
		return r, nil
	}
	r := &Room{Code: code, Name: defaultRoomName, CreatedAt: time.Now()}
	rm.rooms[code] = r
	return r, nil
}

// DeleteRoom forgets a room label
func (rm *RoomManager) DeleteRoom(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, code)
}

// RoomExists checks if a room label is registered
func (rm *RoomManager) RoomExists(code string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, exists := rm.rooms[code]
	return exists
}

// GetRoomCount returns the number of registered rooms
func (rm *RoomManager) GetRoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// SessionCount returns the number of attached sessions
func (rm *RoomManager) SessionCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.sessions)
}

func (rm *RoomManager) track(s *Session) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sessions[s] = struct{}{}
}

// release tears a session down and stops tracking it
func (rm *RoomManager) release(s *Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), rm.cfg.TeardownTimeout)
	defer cancel()
	err := s.Teardown(ctx)

	rm.mu.Lock()
	delete(rm.sessions, s)
	rm.mu.Unlock()
	return err
}

// Shutdown tears down every attached session concurrently and stops the
// token store. Each teardown is bounded by ctx.
func (rm *RoomManager) Shutdown(ctx context.Context) error {
	rm.mu.Lock()
	sessions := make([]*Session, 0, len(rm.sessions))
	for s := range rm.sessions {
		sessions = append(sessions, s)
	}
	rm.sessions = make(map[*Session]struct{})
	rm.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.Teardown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	rm.tokens.Close()

	log.Info().Str("module", "ws").Int("sessions", len(sessions)).Msg("room manager shut down")
	return errors.Join(errs...)
}
