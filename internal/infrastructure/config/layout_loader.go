// Package config provides infrastructure for loading form layouts.
// Layouts are authored in YAML or JSON; parsing,
// binding validation and version checks happen here so the domain only
// ever sees structurally sound layouts.
package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	apperrors "github.com/formflow-dev/formflow/internal/application/errors"
	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// supportedSpec is the layout schema versions this engine accepts.
var supportedSpec = mustConstraint("^1.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Ensure interface compliance
var _ ports.LayoutLoader = (*LayoutLoader)(nil)

// LayoutLoader loads a layout file and validates it structurally.
// Malformed component bindings do not fail the load: they are reported
// once, and the offending component is kept without bindings so it
// renders but never participates in save or validation.
type LayoutLoader struct{}

// NewLayoutLoader creates a new layout loader.
func NewLayoutLoader() *LayoutLoader {
	return &LayoutLoader{}
}

// layoutFile is the on-disk layout shape. JSON layouts parse through
// the same path; JSON is a subset of YAML.
type layoutFile struct {
	Layout struct {
		ID   string `yaml:"id"`
		Spec string `yaml:"spec"`
	} `yaml:"layout"`
	Pages []pageFile `yaml:"pages"`
}

type pageFile struct {
	ID         string          `yaml:"id"`
	Hidden     string          `yaml:"hidden,omitempty"`
	Components []componentFile `yaml:"components"`
}

type componentFile struct {
	ID       string            `yaml:"id"`
	Type     string            `yaml:"type"`
	Bindings map[string]string `yaml:"dataModelBindings,omitempty"`
	Required bool              `yaml:"required,omitempty"`
	Hidden   string            `yaml:"hidden,omitempty"`
	Rules    []ruleFile        `yaml:"rules,omitempty"`
	MinCount int               `yaml:"minCount,omitempty"`
	MaxCount int               `yaml:"maxCount,omitempty"`
	Children []string          `yaml:"children,omitempty"`
}

type ruleFile struct {
	Expr     string `yaml:"expr"`
	Severity string `yaml:"severity,omitempty"`
	Message  string `yaml:"message"`
	Code     string `yaml:"code,omitempty"`
}

// Load reads and assembles a layout. The second return value lists
// per-component binding problems (reported once, non-fatal); the third
// is fatal: unreadable file, unsupported version, broken structure.
func (l *LayoutLoader) Load(path string) (*entities.Layout, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.NewLayoutError(path, fmt.Sprintf("reading file: %v", err))
	}
	return l.Parse(path, data)
}

// Parse assembles a layout from raw bytes; path is only used in error
// messages.
func (l *LayoutLoader) Parse(path string, data []byte) (*entities.Layout, []error, error) {
	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, apperrors.NewLayoutError(path, fmt.Sprintf("parsing: %v", err))
	}
	if file.Layout.ID == "" {
		return nil, nil, apperrors.NewLayoutError(path, "layout id is required")
	}
	if err := checkSpecVersion(file.Layout.Spec); err != nil {
		return nil, nil, apperrors.NewLayoutError(path, err.Error())
	}

	var (
		pages       []entities.Page
		components  []*entities.Component
		bindingErrs []error
	)

	for _, pf := range file.Pages {
		page := entities.Page{ID: pf.ID, HiddenExpr: pf.Hidden}
		for _, cf := range pf.Components {
			component, errs := buildComponent(pf.ID, cf)
			bindingErrs = append(bindingErrs, errs...)
			components = append(components, component)
			page.ComponentIDs = append(page.ComponentIDs, component.ID)
		}
		pages = append(pages, page)
	}

	layout, err := entities.NewLayout(file.Layout.ID, file.Layout.Spec, pages, components)
	if err != nil {
		return nil, bindingErrs, apperrors.NewLayoutError(path, err.Error())
	}
	return layout, bindingErrs, nil
}

// buildComponent converts one file entry. A malformed binding drops
// only that binding and is reported; the component survives.
func buildComponent(pageID string, cf componentFile) (*entities.Component, []error) {
	var errs []error

	componentType, err := entities.ParseComponentType(cf.Type)
	if err != nil {
		// Unknown render types still bind data; treat them as inputs.
		componentType = entities.TypeInput
	}

	component := &entities.Component{
		ID:         cf.ID,
		Type:       componentType,
		Bindings:   make(map[string]values.BindingPath, len(cf.Bindings)),
		Required:   cf.Required,
		HiddenExpr: cf.Hidden,
		PageID:     pageID,
	}

	for key, raw := range cf.Bindings {
		binding, err := values.ParseBinding(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("component %s: binding %s: %w", cf.ID, key, err))
			continue
		}
		component.Bindings[key] = binding
	}

	for _, rf := range cf.Rules {
		severity, err := values.NewSeverity(rf.Severity)
		if err != nil {
			errs = append(errs, fmt.Errorf("component %s: rule severity: %w", cf.ID, err))
			severity = values.SevError
		}
		component.RuleExprs = append(component.RuleExprs, entities.RuleExpr{
			Expr:     rf.Expr,
			Severity: severity,
			Message:  rf.Message,
			Code:     rf.Code,
		})
	}

	if componentType == entities.TypeRepeatingGroup {
		component.Group = &entities.GroupConfig{
			MinCount: cf.MinCount,
			MaxCount: cf.MaxCount,
			Children: cf.Children,
		}
	}

	return component, errs
}

func checkSpecVersion(spec string) error {
	if spec == "" {
		return fmt.Errorf("layout spec version is required")
	}
	version, err := semver.NewVersion(spec)
	if err != nil {
		return fmt.Errorf("layout spec version %q is not valid semver", spec)
	}
	if !supportedSpec.Check(version) {
		return fmt.Errorf("layout spec version %s is not supported (requires %s)", spec, supportedSpec)
	}
	return nil
}
