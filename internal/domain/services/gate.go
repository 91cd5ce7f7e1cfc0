package services

import (
	"fmt"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Threshold is the severity policy a transition is gated on.
type Threshold int

const (
	// BlockErrors blocks on error issues only (page navigation).
	BlockErrors Threshold = iota
	// BlockErrorsAndWarnings additionally blocks on warnings; enabled
	// per deployment for final submission.
	BlockErrorsAndWarnings
)

// Scope restricts a gate read to one page or to the whole form.
type Scope struct {
	// PageID limits the read to components on that page; empty means
	// the whole form. Issues that cannot be attributed to a component
	// (backend issues for unmapped fields) only appear in whole-form
	// reads.
	PageID string
}

// WholeForm is the submission scope.
var WholeForm = Scope{}

// RowCounter is the materializer capability the gate needs for min/max
// row enforcement. Counting is a read; the gate never materializes.
type RowCounter interface {
	RowCount(model entities.DataModel, groupPath values.BindingPath) int
	Rows(model entities.DataModel, groupPath values.BindingPath) []Row
}

// Gate decides whether a page transition or final submission may
// proceed, from the aggregated validation state and the declared row
// constraints. Reads are deterministic: for a fixed state, scope and
// model, every call returns the same ordered list and never re-runs
// validation as a side effect.
//
// Issues on pages hidden by expressions still block submission. That
// policy is deliberate (hidden unreachable data must not be accepted
// silently) though disputed; do not change it without product sign-off.
type Gate struct {
	layout *entities.Layout
	counts RowCounter
}

// NewGate creates a gate over one layout. counts may be nil when no
// repeating groups declare row constraints.
func NewGate(layout *entities.Layout, counts RowCounter) *Gate {
	return &Gate{layout: layout, counts: counts}
}

// CanAdvance reports whether the transition may proceed. It is true
// exactly when BlockingIssues is empty for the same scope and
// threshold; no other hidden state affects the result.
func (g *Gate) CanAdvance(state *ValidationState, model entities.DataModel, scope Scope, threshold Threshold) bool {
	return len(g.BlockingIssues(state, model, scope, threshold)) == 0
}

// BlockingIssues returns the issues that block the transition, in the
// error-summary order: aggregated state issues (path then source)
// followed by row-constraint violations in layout order.
func (g *Gate) BlockingIssues(state *ValidationState, model entities.DataModel, scope Scope, threshold Threshold) []entities.Issue {
	var out []entities.Issue

	for _, issue := range state.AllIssues() {
		if !g.inScope(issue.ComponentID, scope) {
			continue
		}
		if blocks(issue.Severity, threshold) {
			out = append(out, issue)
		}
	}

	out = append(out, g.rowConstraintIssues(model, scope)...)
	return out
}

// AllIssues returns every visible issue regardless of severity, plus
// row-constraint violations: the full error-summary content.
func (g *Gate) AllIssues(state *ValidationState, model entities.DataModel) []entities.Issue {
	out := state.AllIssues()
	return append(out, g.rowConstraintIssues(model, WholeForm)...)
}

// rowConstraintIssues synthesizes issues for groups below their
// declared minimum or above their maximum row count.
func (g *Gate) rowConstraintIssues(model entities.DataModel, scope Scope) []entities.Issue {
	if g.counts == nil {
		return nil
	}

	var out []entities.Issue
	for _, group := range g.layout.Groups() {
		cfg := group.Group
		if cfg.MinCount <= 0 && cfg.MaxCount <= 0 {
			continue
		}
		if !g.inScope(group.ID, scope) {
			continue
		}
		groupPath := group.GroupBinding()
		if groupPath.IsZero() {
			continue
		}

		for _, concrete := range concreteGroupPaths(g.layout, g.counts, model, group) {
			count := g.counts.RowCount(model, concrete)
			if cfg.MinCount > 0 && count < cfg.MinCount {
				out = append(out, entities.Issue{
					Path:        concrete,
					ComponentID: group.ID,
					Source:      values.SourceCustomRule,
					Severity:    values.SevError,
					Message:     fmt.Sprintf("group %s requires at least %d rows, has %d", group.ID, cfg.MinCount, count),
					Code:        "rowCountBelowMin",
				})
			}
			if cfg.MaxCount > 0 && count > cfg.MaxCount {
				out = append(out, entities.Issue{
					Path:        concrete,
					ComponentID: group.ID,
					Source:      values.SourceCustomRule,
					Severity:    values.SevError,
					Message:     fmt.Sprintf("group %s allows at most %d rows, has %d", group.ID, cfg.MaxCount, count),
					Code:        "rowCountAboveMax",
				})
			}
		}
	}
	return out
}

func (g *Gate) inScope(componentID string, scope Scope) bool {
	if scope.PageID == "" {
		return true
	}
	return g.layout.PageOf(componentID) == scope.PageID
}

func blocks(severity values.Severity, threshold Threshold) bool {
	if severity.Equals(values.SevError) {
		return true
	}
	return threshold == BlockErrorsAndWarnings && severity.Equals(values.SevWarning)
}
