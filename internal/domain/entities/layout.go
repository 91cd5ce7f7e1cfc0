package entities

import (
	"fmt"

	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Layout is the aggregate root for a form's declared structure.
//
// Aggregate Boundary:
// - Layout is the root
// - Pages order the form's navigation
// - Components are entities within pages
//
// Invariants Enforced:
// - Component IDs are unique across all pages
// - Group children reference existing components
// - A child component's bindings extend its group's binding
type Layout struct {
	// ID names the layout set (one data task of the form).
	ID string

	// SpecVersion is the layout schema version the file declares,
	// checked against the engine's supported constraint at load time.
	SpecVersion string

	// Pages in navigation order.
	Pages []Page

	components map[string]*Component
}

// Page is one navigable page of the form.
type Page struct {
	ID string
	// HiddenExpr optionally hides the whole page. Issues on hidden
	// pages still block submission; see SubmissionGate.
	HiddenExpr string
	// ComponentIDs in render order.
	ComponentIDs []string
}

// NewLayout assembles a layout and verifies its structural invariants.
func NewLayout(id, specVersion string, pages []Page, components []*Component) (*Layout, error) {
	l := &Layout{
		ID:          id,
		SpecVersion: specVersion,
		Pages:       pages,
		components:  make(map[string]*Component, len(components)),
	}

	for _, c := range components {
		if _, dup := l.components[c.ID]; dup {
			return nil, fmt.Errorf("layout %s: duplicate component ID %q", id, c.ID)
		}
		l.components[c.ID] = c
	}

	for _, c := range components {
		if c.Group == nil {
			continue
		}
		groupBinding := c.GroupBinding()
		for _, childID := range c.Group.Children {
			child, ok := l.components[childID]
			if !ok {
				return nil, fmt.Errorf("layout %s: group %s references unknown child %q", id, c.ID, childID)
			}
			child.GroupID = c.ID
			if groupBinding.IsZero() {
				continue
			}
			for key, binding := range child.Bindings {
				if !binding.HasPrefix(groupBinding) {
					return nil, fmt.Errorf(
						"layout %s: component %s binding %s (%s) does not extend group binding %s",
						id, childID, key, binding, groupBinding,
					)
				}
			}
		}
	}

	return l, nil
}

// Component looks up a component by ID.
func (l *Layout) Component(id string) (*Component, bool) {
	c, ok := l.components[id]
	return c, ok
}

// Components returns all components, page by page in declared order.
func (l *Layout) Components() []*Component {
	var out []*Component
	for _, page := range l.Pages {
		for _, cid := range page.ComponentIDs {
			if c, ok := l.components[cid]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// PageOf returns the page ID a component lives on.
func (l *Layout) PageOf(componentID string) string {
	c, ok := l.components[componentID]
	if !ok {
		return ""
	}
	return c.PageID
}

// Groups returns every repeating-group component, outermost first.
// Shallow-to-deep ordering matters for minimum-row pre-population:
// inner bindings only resolve once the outer row exists.
func (l *Layout) Groups() []*Component {
	var groups []*Component
	for _, c := range l.Components() {
		if c.Group != nil {
			groups = append(groups, c)
		}
	}
	// Order by binding depth; stable for equal depths.
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && depth(groups[j]) < depth(groups[j-1]); j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
	return groups
}

// NestedGroups returns the repeating groups declared as children of g.
func (l *Layout) NestedGroups(g *Component) []*Component {
	if g.Group == nil {
		return nil
	}
	var nested []*Component
	for _, childID := range g.Group.Children {
		if child, ok := l.components[childID]; ok && child.Group != nil {
			nested = append(nested, child)
		}
	}
	return nested
}

// ComponentsBoundTo returns components whose declared (index-free)
// binding matches the given path's index-free form.
func (l *Layout) ComponentsBoundTo(path values.BindingPath) []*Component {
	bare := path.WithoutIndexes()
	var out []*Component
	for _, c := range l.Components() {
		for _, b := range c.Bindings {
			if b.WithoutIndexes().Equals(bare) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func depth(c *Component) int {
	return c.GroupBinding().Len()
}
