package ws

import (
	"strings"
	"testing"
)

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "Ann", "Ann"},
		{"Trims", "  Ann  ", "Ann"},
		{"Collapses spaces", "Kucing    Kalem", "Kucing Kalem"},
		{"Strips tags", "<script>x</script>Bo", "xBo"},
		{"Strips control chars", "A\x00n\tn", "Ann"},
		{"Only whitespace", "   ", ""},
		{"Caps length", strings.Repeat("é", 30), strings.Repeat("é", 24)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeDisplayName(tc.input); got != tc.expected {
				t.Errorf("SanitizeDisplayName(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestIsValidFieldKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"round", true},
		{"round_2", true},
		{"", false},
		{"a/b", false},
		{"a.b", false},
		{"a#b", false},
		{"x:1", false},
		{strings.Repeat("k", 64), true},
		{strings.Repeat("k", 65), false},
	}

	for _, tc := range tests {
		if got := IsValidFieldKey(tc.key); got != tc.expected {
			t.Errorf("IsValidFieldKey(%q) = %v, expected %v", tc.key, got, tc.expected)
		}
	}
}

func TestIsValidPlayerKey(t *testing.T) {
	if !IsValidPlayerKey("score") {
		t.Error("Expected score to be writable")
	}
	for _, key := range []string{"name", "status"} {
		if IsValidPlayerKey(key) {
			t.Errorf("Expected %s to be reserved", key)
		}
	}
}
