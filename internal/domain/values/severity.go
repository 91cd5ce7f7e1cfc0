package values

import (
	"fmt"
	"strings"
)

// Severity represents the severity of a validation issue.
// Enforces valid severity values and provides ordering.
type Severity struct {
	value SeverityLevel
}

// SeverityLevel is the internal representation.
type SeverityLevel int

const (
	SeverityUnknown SeverityLevel = 0
	SeveritySuccess SeverityLevel = 1
	SeverityInfo    SeverityLevel = 2
	SeverityWarning SeverityLevel = 3
	SeverityError   SeverityLevel = 4
)

// Predefined severity values
var (
	SevUnknown = Severity{SeverityUnknown}
	SevSuccess = Severity{SeveritySuccess}
	SevInfo    = Severity{SeverityInfo}
	SevWarning = Severity{SeverityWarning}
	SevError   = Severity{SeverityError}
)

// NewSeverity creates a Severity from string.
func NewSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "error":
		return SevError, nil
	case "warning":
		return SevWarning, nil
	case "info", "informational":
		return SevInfo, nil
	case "success":
		return SevSuccess, nil
	case "":
		return SevUnknown, nil
	default:
		return Severity{}, fmt.Errorf("invalid severity: %s", s)
	}
}

// MustNewSeverity creates a Severity or panics.
func MustNewSeverity(s string) Severity {
	sev, err := NewSeverity(s)
	if err != nil {
		panic(err)
	}
	return sev
}

// SeverityFromWireCode maps the numeric severity codes used by the
// platform's validation endpoints (1=error, 2=warning, 3=informational,
// 5=success; 4 marks a previously reported issue as fixed and is
// rejected here because fixed issues are pruned, not stored).
func SeverityFromWireCode(code int) (Severity, error) {
	switch code {
	case 1:
		return SevError, nil
	case 2:
		return SevWarning, nil
	case 3:
		return SevInfo, nil
	case 5:
		return SevSuccess, nil
	default:
		return Severity{}, fmt.Errorf("invalid severity code: %d", code)
	}
}

// String returns the string representation.
func (s Severity) String() string {
	switch s.value {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	default:
		return ""
	}
}

// Level returns the numeric severity level (for ordering).
func (s Severity) Level() int {
	return int(s.value)
}

// IsHigherOrEqual returns true if this severity is higher or equal to the other.
func (s Severity) IsHigherOrEqual(other Severity) bool {
	return s.value >= other.value
}

// Equals checks if two severities are equal.
func (s Severity) Equals(other Severity) bool {
	return s.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) < 2 {
		return fmt.Errorf("invalid severity JSON")
	}

	sev, err := NewSeverity(str[1 : len(str)-1])
	if err != nil {
		return err
	}
	*s = sev
	return nil
}
