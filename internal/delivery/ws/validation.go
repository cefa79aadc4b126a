package ws

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

// htmlTagRegex matches anything that looks like an HTML tag
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// reservedPlayerKeys are written by the room engine, never by "my" frames
var reservedPlayerKeys = map[string]bool{
	domain.KeyName:   true,
	domain.KeyStatus: true,
}

// SanitizeDisplayName strips tags and control characters, collapses
// whitespace and caps the name at MaxDisplayNameLength runes
func SanitizeDisplayName(name string) string {
	name = htmlTagRegex.ReplaceAllString(name, "")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	runes := []rune(name)
	if len(runes) > domain.MaxDisplayNameLength {
		name = strings.TrimSpace(string(runes[:domain.MaxDisplayNameLength]))
	}
	return name
}

// IsValidFieldKey reports whether key can name a game, player or public field
func IsValidFieldKey(key string) bool {
	if len(key) > domain.MaxFieldKeyLength {
		return false
	}
	return store.ValidSegment(key) == nil
}

// IsValidPlayerKey is IsValidFieldKey minus the keys the engine owns
func IsValidPlayerKey(key string) bool {
	return IsValidFieldKey(key) && !reservedPlayerKeys[key]
}
