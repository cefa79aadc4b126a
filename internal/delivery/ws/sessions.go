package ws

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SessionToken lets a browser resume its store identity in one room
type SessionToken struct {
	Token     string
	Identity  string
	RoomCode  string
	CreatedAt time.Time
	LastUsed  time.Time
}

type tokenKey struct {
	identity string
	roomCode string
}

// SessionStore manages reconnect tokens
type SessionStore struct {
	tokens map[string]*SessionToken // token -> session
	owners map[tokenKey]string      // identity+room -> token
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a session store whose tokens expire after ttl
func NewSessionStore(ttl time.Duration) *SessionStore {
	store := &SessionStore{
		tokens: make(map[string]*SessionToken),
		owners: make(map[tokenKey]string),
		ttl:    ttl,
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	go store.cleanupLoop()

	return store
}

// GenerateToken issues a token for identity in roomCode, replacing any
// earlier one for the same pair
func (s *SessionStore) GenerateToken(identity, roomCode string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{identity, roomCode}
	if old, exists := s.owners[key]; exists {
		delete(s.tokens, old)
	}

	tokenBytes := make([]byte, 32) // 256 bits
	_, _ = rand.Read(tokenBytes)
	token := hex.EncodeToString(tokenBytes)

	now := s.now()
	s.tokens[token] = &SessionToken{
		Token:     token,
		Identity:  identity,
		RoomCode:  roomCode,
		CreatedAt: now,
		LastUsed:  now,
	}
	s.owners[key] = token

	return token
}

// ValidateToken returns the session for token if it exists, has not expired
// and belongs to roomCode
func (s *SessionStore) ValidateToken(token, roomCode string) (*SessionToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.tokens[token]
	if !exists || session.RoomCode != roomCode {
		return nil, false
	}
	if s.now().Sub(session.CreatedAt) > s.ttl {
		s.removeLocked(token)
		return nil, false
	}

	session.LastUsed = s.now()
	cp := *session
	return &cp, true
}

// RemoveToken removes a token from the store
func (s *SessionStore) RemoveToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(token)
}

func (s *SessionStore) removeLocked(token string) {
	if session, exists := s.tokens[token]; exists {
		delete(s.owners, tokenKey{session.Identity, session.RoomCode})
		delete(s.tokens, token)
	}
}

// RemoveByIdentity drops the token identity holds in roomCode
func (s *SessionStore) RemoveByIdentity(identity, roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{identity, roomCode}
	if token, exists := s.owners[key]; exists {
		delete(s.tokens, token)
		delete(s.owners, key)
	}
}

func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup removes expired tokens
func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, session := range s.tokens {
		if now.Sub(session.CreatedAt) > s.ttl {
			s.removeLocked(token)
		}
	}
}

// Count returns the number of live tokens
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Close stops the cleanup loop
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
