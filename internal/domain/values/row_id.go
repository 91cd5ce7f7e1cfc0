package values

import (
	"fmt"

	"github.com/google/uuid"
)

// RowID is the stable identity of a repeating-group row. It is assigned
// once when the row is materialized and never reused; the row's array
// index shifts when siblings are removed, the RowID does not. It is a
// runtime side channel only and is never written into the data model.
type RowID struct {
	value uuid.UUID
}

// NewRowID creates a new random row ID.
func NewRowID() RowID {
	return RowID{value: uuid.New()}
}

// ParseRowID parses a string into a RowID.
func ParseRowID(s string) (RowID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RowID{}, fmt.Errorf("invalid row ID: %w", err)
	}
	return RowID{value: id}, nil
}

// MustParseRowID parses a string or panics (for tests only).
func MustParseRowID(s string) RowID {
	id, err := ParseRowID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation.
func (r RowID) String() string {
	return r.value.String()
}

// IsZero returns true if this is the zero value.
func (r RowID) IsZero() bool {
	return r.value == uuid.Nil
}

// Equals checks if two RowIDs are equal.
func (r RowID) Equals(other RowID) bool {
	return r.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (r RowID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.value.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RowID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid row ID JSON")
	}
	id, err := ParseRowID(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*r = id
	return nil
}
