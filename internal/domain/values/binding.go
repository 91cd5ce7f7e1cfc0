// Package values contains domain value objects that encapsulate
// primitive types with validation and such.
package values

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a binding path: a field name, optionally
// carrying an array index for repeating-group traversal.
type Segment struct {
	Key   string
	Index int // -1 when the segment is not indexed
}

// Indexed reports whether the segment carries an array index.
func (s Segment) Indexed() bool {
	return s.Index >= 0
}

// String returns the segment in binding syntax.
func (s Segment) String() string {
	if s.Indexed() {
		return fmt.Sprintf("%s[%d]", s.Key, s.Index)
	}
	return s.Key
}

// BindingPath is a parsed data-model binding expression such as
// "mainGroup[0].comments". It is immutable after creation; operations
// that change the path return a new value.
type BindingPath struct {
	segments []Segment
	raw      string
}

// ParseBinding parses a binding expression into a BindingPath.
// Supported syntax: dotted field names with optional bracketed numeric
// indexes ("a.b", "a[2].b"). Malformed syntax is an error; callers are
// expected to report it once at layout-load time.
func ParseBinding(s string) (BindingPath, error) {
	if s == "" {
		return BindingPath{}, fmt.Errorf("empty binding")
	}

	parts := strings.Split(s, ".")
	segments := make([]Segment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return BindingPath{}, fmt.Errorf("binding %q: empty segment", s)
		}

		key := part
		index := -1

		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return BindingPath{}, fmt.Errorf("binding %q: unterminated index in %q", s, part)
			}
			key = part[:open]
			if key == "" {
				return BindingPath{}, fmt.Errorf("binding %q: index without field name", s)
			}

			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return BindingPath{}, fmt.Errorf("binding %q: invalid index in %q", s, part)
			}
			index = idx
		}

		if strings.ContainsAny(key, "[]") {
			return BindingPath{}, fmt.Errorf("binding %q: stray bracket in %q", s, part)
		}

		segments = append(segments, Segment{Key: key, Index: index})
	}

	return BindingPath{segments: segments, raw: s}, nil
}

// MustParseBinding parses a binding or panics (for tests and static layouts).
func MustParseBinding(s string) BindingPath {
	b, err := ParseBinding(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Segments returns a copy of the path's segments.
func (b BindingPath) Segments() []Segment {
	out := make([]Segment, len(b.segments))
	copy(out, b.segments)
	return out
}

// Len returns the number of segments.
func (b BindingPath) Len() int {
	return len(b.segments)
}

// IsZero returns true for the zero (unparsed) binding.
func (b BindingPath) IsZero() bool {
	return len(b.segments) == 0
}

// String returns the canonical binding syntax.
func (b BindingPath) String() string {
	if b.raw != "" {
		return b.raw
	}
	parts := make([]string, len(b.segments))
	for i, seg := range b.segments {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}

// WithoutIndexes strips every array index, yielding the layout-declared
// form of the path ("mainGroup[2].comments" -> "mainGroup.comments").
// Used to correlate backend-reported fields with declared bindings.
func (b BindingPath) WithoutIndexes() BindingPath {
	segments := make([]Segment, len(b.segments))
	for i, seg := range b.segments {
		segments[i] = Segment{Key: seg.Key, Index: -1}
	}
	return BindingPath{segments: segments}
}

// WithIndex returns a copy of the path with the index of segment n set.
func (b BindingPath) WithIndex(n, index int) (BindingPath, error) {
	if n < 0 || n >= len(b.segments) {
		return BindingPath{}, fmt.Errorf("binding %q: no segment %d", b, n)
	}
	if index < 0 {
		return BindingPath{}, fmt.Errorf("binding %q: negative index", b)
	}
	segments := make([]Segment, len(b.segments))
	copy(segments, b.segments)
	segments[n] = Segment{Key: segments[n].Key, Index: index}
	return BindingPath{segments: segments}, nil
}

// Child appends a plain field segment.
func (b BindingPath) Child(key string) BindingPath {
	segments := make([]Segment, 0, len(b.segments)+1)
	segments = append(segments, b.segments...)
	segments = append(segments, Segment{Key: key, Index: -1})
	return BindingPath{segments: segments}
}

// Row returns the path of row i within this group path
// ("mainGroup" -> "mainGroup[i]").
func (b BindingPath) Row(i int) BindingPath {
	if len(b.segments) == 0 {
		return b
	}
	segments := make([]Segment, len(b.segments))
	copy(segments, b.segments)
	last := len(segments) - 1
	segments[last] = Segment{Key: segments[last].Key, Index: i}
	return BindingPath{segments: segments}
}

// HasPrefix reports whether prefix is a leading sub-path of b, with
// matching indexes on every prefix segment.
func (b BindingPath) HasPrefix(prefix BindingPath) bool {
	if len(prefix.segments) > len(b.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if b.segments[i] != seg {
			return false
		}
	}
	return true
}

// Equals compares two paths segment by segment.
func (b BindingPath) Equals(other BindingPath) bool {
	if len(b.segments) != len(other.segments) {
		return false
	}
	for i := range b.segments {
		if b.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (b BindingPath) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(b.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BindingPath) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid binding JSON: %w", err)
	}
	parsed, err := ParseBinding(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
