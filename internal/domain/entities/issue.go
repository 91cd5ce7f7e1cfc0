package entities

import (
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Issue is a single validation finding for a binding path. Issues are
// immutable after creation; a source replaces its issue set wholesale
// on re-validation instead of editing issues in place.
type Issue struct {
	Path        values.BindingPath `json:"path"`
	ComponentID string             `json:"componentId"`
	Source      values.Source      `json:"source"`
	Severity    values.Severity    `json:"severity"`
	Message     string             `json:"message"`
	Code        string             `json:"code,omitempty"`

	// CustomTextKey and CustomTextParams carry templated-message
	// references from the backend verbatim; text-resource lookup
	// happens outside this core.
	CustomTextKey    string   `json:"customTextKey,omitempty"`
	CustomTextParams []string `json:"customTextParameters,omitempty"`
}

// Equal compares all fields, treating nil and empty parameter lists as
// the same. Used for idempotency checks when a source re-sends an
// identical issue set.
func (i Issue) Equal(other Issue) bool {
	if !i.Path.Equals(other.Path) ||
		i.ComponentID != other.ComponentID ||
		i.Source != other.Source ||
		!i.Severity.Equals(other.Severity) ||
		i.Message != other.Message ||
		i.Code != other.Code ||
		i.CustomTextKey != other.CustomTextKey {
		return false
	}
	if len(i.CustomTextParams) != len(other.CustomTextParams) {
		return false
	}
	for n := range i.CustomTextParams {
		if i.CustomTextParams[n] != other.CustomTextParams[n] {
			return false
		}
	}
	return true
}
