// Package entities contains domain entities for the formflow domain model.
// These are pure domain types with NO infrastructure dependencies.
package entities

import (
	"fmt"

	"github.com/formflow-dev/formflow/internal/domain/values"
)

// ComponentType is the closed set of component kinds the binding and
// validation engine distinguishes. Rendering-specific component fields
// live outside this core; each variant carries only its binding set and
// group membership.
type ComponentType string

const (
	TypeInput          ComponentType = "Input"
	TypeRepeatingGroup ComponentType = "RepeatingGroup"
	TypeLikert         ComponentType = "Likert"
	TypeFileUpload     ComponentType = "FileUpload"
	TypeDatepicker     ComponentType = "Datepicker"
)

// ParseComponentType validates a component type string.
func ParseComponentType(s string) (ComponentType, error) {
	switch ComponentType(s) {
	case TypeInput, TypeRepeatingGroup, TypeLikert, TypeFileUpload, TypeDatepicker:
		return ComponentType(s), nil
	default:
		return "", fmt.Errorf("unknown component type: %s", s)
	}
}

// BindingKeySimple is the conventional key of a component's primary
// data-model binding.
const BindingKeySimple = "simpleBinding"

// BindingKeyGroup is the binding key a repeating group uses for the
// array it materializes rows into.
const BindingKeyGroup = "group"

// Component is a single layout component as seen by the binding engine.
//
// Entity Identity: ID uniquely identifies the component within a layout.
// Bindings are declared statically and never change at runtime; a
// component whose declared binding failed to parse has an empty Bindings
// map and never participates in save or validation.
type Component struct {
	ID   string
	Type ComponentType

	// Bindings maps binding keys (BindingKeySimple et al.) to parsed
	// binding paths, always in layout-declared (index-free) form.
	Bindings map[string]values.BindingPath

	// Required marks the component for empty-field validation.
	Required bool

	// HiddenExpr is an optional visibility expression evaluated against
	// the flattened data model; truthy means hidden.
	HiddenExpr string

	// RuleExprs are optional custom-rule expressions; each produces an
	// issue with its message when the expression evaluates to false.
	RuleExprs []RuleExpr

	// Group configures repeating-group behaviour. Nil for all other
	// component types.
	Group *GroupConfig

	// GroupID is the ID of the repeating group this component is a
	// child of, or empty for top-level components.
	GroupID string

	// PageID is the layout page the component is placed on.
	PageID string
}

// RuleExpr is a layout-declared custom validation rule.
type RuleExpr struct {
	// Expr must evaluate to a boolean; false produces an issue.
	Expr string
	// Severity of the produced issue; defaults to error when unset.
	Severity values.Severity
	Message  string
	Code     string
}

// GroupConfig holds the repeating-group declaration.
type GroupConfig struct {
	// MinCount rows are pre-populated on row creation of the parent
	// (or at session start for top-level groups) and enforced by the
	// submission gate.
	MinCount int
	// MaxCount caps user-added rows; 0 means unbounded.
	MaxCount int
	// Children lists component IDs rendered inside each row. Their
	// bindings are declared relative to the model root but must extend
	// the group binding.
	Children []string
}

// GroupBinding returns the group's array binding, or a zero path when
// the declaration was malformed.
func (c *Component) GroupBinding() values.BindingPath {
	if c.Group == nil {
		return values.BindingPath{}
	}
	return c.Bindings[BindingKeyGroup]
}

// SimpleBinding returns the component's primary binding, or a zero path.
func (c *Component) SimpleBinding() values.BindingPath {
	return c.Bindings[BindingKeySimple]
}

// HasBindings reports whether the component participates in data
// binding at all.
func (c *Component) HasBindings() bool {
	return len(c.Bindings) > 0
}
