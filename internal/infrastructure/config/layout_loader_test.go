package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

const validLayout = `
layout:
  id: moving-notice
  spec: 1.2.0
pages:
  - id: page1
    components:
      - id: name
        type: Input
        dataModelBindings:
          simpleBinding: name
        required: true
      - id: mainGroup
        type: RepeatingGroup
        dataModelBindings:
          group: mainGroup
        minCount: 1
        maxCount: 5
        children: [comments]
      - id: comments
        type: Input
        dataModelBindings:
          simpleBinding: mainGroup.comments
        rules:
          - expr: 'len(data["mainGroup[0].comments"] ?? "") < 100'
            severity: warning
            message: keep it short
            code: tooChatty
`

func Test_LayoutLoader_Parse(t *testing.T) {
	layout, bindingErrs, err := NewLayoutLoader().Parse("layout.yaml", []byte(validLayout))
	require.NoError(t, err)
	assert.Empty(t, bindingErrs)

	assert.Equal(t, "moving-notice", layout.ID)
	assert.Equal(t, "1.2.0", layout.SpecVersion)
	require.Len(t, layout.Pages, 1)

	name, ok := layout.Component("name")
	require.True(t, ok)
	assert.Equal(t, entities.TypeInput, name.Type)
	assert.True(t, name.Required)
	assert.Equal(t, "name", name.SimpleBinding().String())

	group, ok := layout.Component("mainGroup")
	require.True(t, ok)
	require.NotNil(t, group.Group)
	assert.Equal(t, 1, group.Group.MinCount)
	assert.Equal(t, 5, group.Group.MaxCount)
	assert.Equal(t, []string{"comments"}, group.Group.Children)

	comments, ok := layout.Component("comments")
	require.True(t, ok)
	assert.Equal(t, "mainGroup", comments.GroupID)
	require.Len(t, comments.RuleExprs, 1)
	assert.True(t, comments.RuleExprs[0].Severity.Equals(values.SevWarning))
	assert.Equal(t, "tooChatty", comments.RuleExprs[0].Code)
}

func Test_LayoutLoader_JSONLayout(t *testing.T) {
	data := []byte(`{
		"layout": {"id": "form", "spec": "1.0.0"},
		"pages": [{"id": "page1", "components": [
			{"id": "name", "type": "Input",
			 "dataModelBindings": {"simpleBinding": "name"}}
		]}]
	}`)

	layout, bindingErrs, err := NewLayoutLoader().Parse("layout.json", data)
	require.NoError(t, err)
	assert.Empty(t, bindingErrs)
	_, ok := layout.Component("name")
	assert.True(t, ok)
}

func Test_LayoutLoader_MalformedBindingIsNonFatal(t *testing.T) {
	data := []byte(`
layout:
  id: form
  spec: 1.0.0
pages:
  - id: page1
    components:
      - id: broken
        type: Input
        dataModelBindings:
          simpleBinding: "a[[2].b"
`)
	layout, bindingErrs, err := NewLayoutLoader().Parse("layout.yaml", data)
	require.NoError(t, err)
	require.Len(t, bindingErrs, 1)

	// the component survives without the binding and never validates
	component, ok := layout.Component("broken")
	require.True(t, ok)
	assert.False(t, component.HasBindings())
}

func Test_LayoutLoader_UnknownTypeBecomesInput(t *testing.T) {
	data := []byte(`
layout:
  id: form
  spec: 1.0.0
pages:
  - id: page1
    components:
      - id: widget
        type: FancyCarousel
        dataModelBindings:
          simpleBinding: widget.value
`)
	layout, _, err := NewLayoutLoader().Parse("layout.yaml", data)
	require.NoError(t, err)

	component, ok := layout.Component("widget")
	require.True(t, ok)
	assert.Equal(t, entities.TypeInput, component.Type)
}

func Test_LayoutLoader_SpecVersion(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"supported", "1.0.0", false},
		{"supported minor", "1.4.0", false},
		{"next major", "2.0.0", true},
		{"missing", "", true},
		{"not semver", "banana", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSpecVersion(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_LayoutLoader_StructuralErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", "layout:\n  spec: 1.0.0\n"},
		{"unknown child", `
layout:
  id: form
  spec: 1.0.0
pages:
  - id: page1
    components:
      - id: mainGroup
        type: RepeatingGroup
        dataModelBindings:
          group: mainGroup
        children: [nobody]
`},
		{"not yaml at all", "\t{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLayoutLoader().Parse("layout.yaml", []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func Test_LayoutLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validLayout), 0o644))

	layout, _, err := NewLayoutLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "moving-notice", layout.ID)

	_, _, err = NewLayoutLoader().Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
