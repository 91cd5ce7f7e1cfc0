package values

import (
	"fmt"
	"strings"
)

// Source identifies an independent producer of validation issues.
// Each source owns a separate slot in the aggregated validation state
// and replaces only its own issues when it re-runs.
type Source int

const (
	// SourceClientSchema is JSON Schema validation run locally.
	SourceClientSchema Source = iota
	// SourceCustomRule covers per-component rules (required fields,
	// row-count constraints, layout-declared expression rules).
	SourceCustomRule
	// SourceBackend is asynchronous server-side validation.
	SourceBackend
)

// Sources lists all sources in presentation order. IssuesFor returns
// issues grouped in this order so rendering is stable across re-reads.
var Sources = []Source{SourceClientSchema, SourceCustomRule, SourceBackend}

// ParseSource creates a Source from string.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clientschema", "client-schema", "schema":
		return SourceClientSchema, nil
	case "customrule", "custom-rule", "rule":
		return SourceCustomRule, nil
	case "backend", "server":
		return SourceBackend, nil
	default:
		return 0, fmt.Errorf("invalid validation source: %s", s)
	}
}

// String returns the string representation.
func (s Source) String() string {
	switch s {
	case SourceClientSchema:
		return "clientSchema"
	case SourceCustomRule:
		return "customRule"
	case SourceBackend:
		return "backend"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// MarshalJSON implements json.Marshaler.
func (s Source) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Source) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) < 2 {
		return fmt.Errorf("invalid source JSON")
	}
	src, err := ParseSource(str[1 : len(str)-1])
	if err != nil {
		return err
	}
	*s = src
	return nil
}
