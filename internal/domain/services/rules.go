package services

import (
	"log/slog"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// RuleResult is one CustomRule validation pass over the layout.
// CheckedIssues holds an entry for every concrete path that was
// validated, empty slices included, so the caller can replace the
// CustomRule slot wholesale and clear resolved issues. Hidden lists
// the concrete paths whose component is currently hidden; the caller
// prunes those.
type RuleResult struct {
	CheckedIssues map[string][]entities.Issue
	CheckedPaths  []values.BindingPath
	Hidden        []values.BindingPath
}

// RuleValidator is the CustomRule validation source: required-field
// checks and layout-declared expression rules, evaluated per concrete
// component instance (per repeating-group row). Soft-removed rows are
// skipped entirely.
type RuleValidator struct {
	layout *entities.Layout
	eval   *ExpressionEvaluator
	counts RowCounter
	logger *slog.Logger
}

// NewRuleValidator creates a validator over one layout.
func NewRuleValidator(layout *entities.Layout, eval *ExpressionEvaluator, counts RowCounter, logger *slog.Logger) *RuleValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleValidator{layout: layout, eval: eval, counts: counts, logger: logger}
}

// Validate runs the full CustomRule pass against the current model.
func (v *RuleValidator) Validate(model entities.DataModel) RuleResult {
	result := RuleResult{CheckedIssues: make(map[string][]entities.Issue)}
	flat := Flatten(model)

	for _, component := range v.layout.Components() {
		if component.Group != nil || !component.HasBindings() {
			continue
		}
		binding := component.SimpleBinding()
		if binding.IsZero() {
			continue
		}

		hidden := v.isHidden(component, flat)

		for _, concrete := range v.concreteInstances(model, component, binding) {
			if hidden {
				result.Hidden = append(result.Hidden, concrete)
				continue
			}
			issues := v.validateInstance(model, component, concrete, flat)
			result.CheckedIssues[concrete.String()] = issues
			result.CheckedPaths = append(result.CheckedPaths, concrete)
		}
	}

	return result
}

// validateInstance checks one concrete component instance.
func (v *RuleValidator) validateInstance(model entities.DataModel, component *entities.Component, concrete values.BindingPath, flat FlatMap) []entities.Issue {
	issues := []entities.Issue{}
	loc := Resolve(model, concrete)

	if component.Required && isEmptyValue(loc) {
		issues = append(issues, entities.Issue{
			Path:        concrete,
			ComponentID: component.ID,
			Source:      values.SourceCustomRule,
			Severity:    values.SevError,
			Message:     "field is required",
			Code:        "required",
		})
	}

	for _, rule := range component.RuleExprs {
		ok, err := v.eval.EvalBool(rule.Expr, flat)
		if err != nil {
			// A broken rule expression is a layout defect, not a user
			// error; log it and skip rather than failing the pass.
			v.logger.Warn("rule expression failed",
				"component", component.ID, "expr", rule.Expr, "error", err)
			continue
		}
		if ok {
			continue
		}
		severity := rule.Severity
		if severity.Equals(values.SevUnknown) {
			severity = values.SevError
		}
		issues = append(issues, entities.Issue{
			Path:        concrete,
			ComponentID: component.ID,
			Source:      values.SourceCustomRule,
			Severity:    severity,
			Message:     rule.Message,
			Code:        rule.Code,
		})
	}

	return issues
}

// isHidden evaluates the component's visibility expression. Evaluation
// failure counts as visible: better a spurious issue than a silently
// skipped validation.
func (v *RuleValidator) isHidden(component *entities.Component, flat FlatMap) bool {
	if component.HiddenExpr == "" {
		return false
	}
	hidden, err := v.eval.EvalBool(component.HiddenExpr, flat)
	if err != nil {
		v.logger.Warn("visibility expression failed",
			"component", component.ID, "expr", component.HiddenExpr, "error", err)
		return false
	}
	return hidden
}

// concreteInstances expands a component's declared binding into the
// concrete per-row paths that exist right now.
func (v *RuleValidator) concreteInstances(model entities.DataModel, component *entities.Component, declared values.BindingPath) []values.BindingPath {
	if component.GroupID == "" {
		return []values.BindingPath{declared}
	}

	parent, ok := v.layout.Component(component.GroupID)
	if !ok || parent.Group == nil {
		return nil
	}

	var out []values.BindingPath
	for _, groupConcrete := range concreteGroupPaths(v.layout, v.counts, model, parent) {
		for i, row := range v.counts.Rows(model, groupConcrete) {
			if row.Removed {
				continue
			}
			concrete, err := Concretize(declared, groupConcrete.Row(i))
			if err != nil {
				continue
			}
			out = append(out, concrete)
		}
	}
	return out
}

// concreteGroupPaths expands a declared group binding into the
// concrete paths existing for the current model: one for a top-level
// group, one per live parent row for a nested group.
func concreteGroupPaths(layout *entities.Layout, counts RowCounter, model entities.DataModel, group *entities.Component) []values.BindingPath {
	declared := group.GroupBinding()
	if declared.IsZero() {
		return nil
	}
	if group.GroupID == "" {
		return []values.BindingPath{declared}
	}

	parent, ok := layout.Component(group.GroupID)
	if !ok || parent.Group == nil {
		return nil
	}

	var out []values.BindingPath
	for _, parentConcrete := range concreteGroupPaths(layout, counts, model, parent) {
		for i, row := range counts.Rows(model, parentConcrete) {
			if row.Removed {
				continue
			}
			concrete, err := Concretize(declared, parentConcrete.Row(i))
			if err == nil {
				out = append(out, concrete)
			}
		}
	}
	return out
}

// isEmptyValue implements the required-field notion of empty: absent,
// null, or an empty string. Zero numbers and false are values.
func isEmptyValue(loc Located) bool {
	if !loc.Exists || loc.Value == nil {
		return true
	}
	if s, ok := loc.Value.(string); ok {
		return s == ""
	}
	return false
}
