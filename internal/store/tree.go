package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Characters that are path syntax for gjson/sjson or reserved by the tree.
const forbiddenSegmentChars = ".#$[]*?|@\\:"

// Path is a parsed "/"-separated store path. The first segment names the
// root document (one room); the rest address a subtree inside it.
type Path struct {
	Root     string
	segments []string
}

// ParsePath validates and splits p.
func ParsePath(p string) (Path, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(trimmed, "/")
	for _, seg := range parts {
		if seg == "" || strings.ContainsAny(seg, forbiddenSegmentChars) {
			return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return Path{Root: parts[0], segments: parts[1:]}, nil
}

// ValidSegment reports whether seg can be used as a single path segment,
// such as a room id, identity or field key.
func ValidSegment(seg string) error {
	if seg == "" || strings.ContainsAny(seg, "/"+forbiddenSegmentChars) {
		return fmt.Errorf("%w: segment %q", ErrInvalidPath, seg)
	}
	return nil
}

// Join builds a path from segments without validating them.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// IsRoot reports whether p addresses the whole root document.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// String renders p back into "/" form.
func (p Path) String() string {
	if p.IsRoot() {
		return p.Root
	}
	return p.Root + "/" + strings.Join(p.segments, "/")
}

func (p Path) getPath() string {
	return strings.Join(p.segments, ".")
}

// sjson creates arrays for numeric components on missing paths; a ':'
// prefix forces an object key instead.
func (p Path) setPath() string {
	parts := make([]string, len(p.segments))
	for i, seg := range p.segments {
		if _, err := strconv.Atoi(seg); err == nil {
			parts[i] = ":" + seg
			continue
		}
		parts[i] = seg
	}
	return strings.Join(parts, ".")
}

// IsEmpty reports whether raw encodes an absent value.
func IsEmpty(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Get returns a copy of the value at p inside doc, or nil.
func Get(doc []byte, p Path) json.RawMessage {
	if IsEmpty(doc) {
		return nil
	}
	if p.IsRoot() {
		return clone(doc)
	}
	r := gjson.GetBytes(doc, p.getPath())
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	return clone([]byte(r.Raw))
}

// Set returns a new root document with value stored at p. An empty value
// deletes the subtree; deleting the root yields a nil document.
func Set(doc []byte, p Path, value json.RawMessage) ([]byte, error) {
	if IsEmpty(value) {
		value = nil
	}
	if value != nil && !json.Valid(value) {
		return nil, fmt.Errorf("set %s: value is not valid JSON", p)
	}
	if p.IsRoot() {
		return clone(value), nil
	}
	if value == nil {
		if IsEmpty(doc) {
			return nil, nil
		}
		out, err := sjson.DeleteBytes(doc, p.setPath())
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", p, err)
		}
		return out, nil
	}
	base := doc
	if IsEmpty(base) || !gjson.ParseBytes(base).IsObject() {
		base = []byte("{}")
	}
	out, err := sjson.SetRawBytes(clone(base), p.setPath(), value)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", p, err)
	}
	return out, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
