package domain

import (
	"encoding/json"

	"golang.org/x/text/cases"
)

// PlayerData is the per-participant payload the demo host stores next to
// name and status.
type PlayerData struct {
	Color string `json:"color"` // hex neon color
	Score int    `json:"score"`
}

// Fields is a free-form keyed JSON object; the demo host uses it for the
// game and public data sections.
type Fields map[string]json.RawMessage

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// FoldName is the form display names are compared in. Full Unicode case
// folding makes "STRASSE" and "Straße" the same name.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

// NameTaken reports whether candidate matches one of the non-empty names
// under FoldName.
func NameTaken(names []string, candidate string) bool {
	want := FoldName(candidate)
	for _, name := range names {
		if name != "" && FoldName(name) == want {
			return true
		}
	}
	return false
}
