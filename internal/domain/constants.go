package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// ==== Session Constants ====

// SessionTTL is the default reconnect token time-to-live
const SessionTTL = 24 * time.Hour

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket upgrades (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitMessages is the default inbound frame rate per connection (frames/sec)
	DefaultRateLimitMessages = 20
)

// ==== Room Constants ====

const (
	// MaxDisplayNameLength caps a participant's display name, in runes
	MaxDisplayNameLength = 24

	// MaxRoomNameLength caps a room's label, in runes
	MaxRoomNameLength = 40

	// MaxFieldKeyLength caps a keyed game/player/public field name
	MaxFieldKeyLength = 64

	// RoomCodeLength is the number of hex characters in a generated room code
	RoomCodeLength = 12
)

// ==== Store Constants ====

const (
	// DefaultWriteTimeout bounds one asynchronous room write
	DefaultWriteTimeout = 10 * time.Second

	// DefaultTeardownTimeout bounds leaving a room during shutdown
	DefaultTeardownTimeout = 5 * time.Second

	// DefaultPollInterval is how often the SQLite store looks for foreign commits
	DefaultPollInterval = 500 * time.Millisecond
)
