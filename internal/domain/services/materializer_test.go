package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// groupLayout declares a top-level repeating group with a nested group
// that pre-populates two rows.
func groupLayout(t *testing.T) *entities.Layout {
	t.Helper()

	components := []*entities.Component{
		{
			ID:   "mainGroup",
			Type: entities.TypeRepeatingGroup,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeyGroup: values.MustParseBinding("mainGroup"),
			},
			Group: &entities.GroupConfig{
				MaxCount: 5,
				Children: []string{"comments", "nestedGroup"},
			},
		},
		{
			ID:   "comments",
			Type: entities.TypeInput,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeySimple: values.MustParseBinding("mainGroup.comments"),
			},
			Required: true,
			PageID:   "page1",
		},
		{
			ID:   "nestedGroup",
			Type: entities.TypeRepeatingGroup,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeyGroup: values.MustParseBinding("mainGroup.nested"),
			},
			Group: &entities.GroupConfig{
				MinCount: 2,
				Children: []string{"nestedValue"},
			},
		},
		{
			ID:   "nestedValue",
			Type: entities.TypeInput,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeySimple: values.MustParseBinding("mainGroup.nested.value"),
			},
			PageID: "page1",
		},
	}
	for _, c := range components {
		if c.PageID == "" {
			c.PageID = "page1"
		}
	}

	layout, err := entities.NewLayout("form", "1.0.0", []entities.Page{
		{ID: "page1", ComponentIDs: []string{"mainGroup", "comments", "nestedGroup", "nestedValue"}},
	}, components)
	require.NoError(t, err)
	return layout
}

func mainGroupPath() values.BindingPath {
	return values.MustParseBinding("mainGroup")
}

func Test_Materializer_AddRow(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	row, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "seeded"})
	require.NoError(t, err)
	assert.False(t, row.ID.IsZero())

	arr := model["mainGroup"].([]any)
	require.Len(t, arr, 1)
	assert.Equal(t, "seeded", arr[0].(map[string]any)["comments"])
}

func Test_Materializer_AddRow_NestedMinimums(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	_, err := m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)

	// the nested group declares minCount 2, so the fresh row arrives
	// with two nested rows already materialized
	nested := model["mainGroup"].([]any)[0].(map[string]any)["nested"].([]any)
	assert.Len(t, nested, 2)
	assert.Equal(t, 2, m.RowCount(model, values.MustParseBinding("mainGroup[0].nested")))
}

func Test_Materializer_AddRow_ReplacesNonArray(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{"mainGroup": "not an array"}

	_, err := m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)

	arr, ok := model["mainGroup"].([]any)
	require.True(t, ok, "non-array group value is replaced, not an error")
	assert.Len(t, arr, 1)
}

func Test_Materializer_AddRow_UnknownGroup(t *testing.T) {
	m := NewMaterializer(groupLayout(t))

	_, err := m.AddRow(entities.DataModel{}, values.MustParseBinding("noSuchGroup"), nil)
	assert.Error(t, err)
}

func Test_Materializer_HardRemove_KeepsIdentities(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	first, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "a"})
	require.NoError(t, err)
	second, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "b"})
	require.NoError(t, err)
	third, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "c"})
	require.NoError(t, err)

	index, err := m.RemoveRow(model, mainGroupPath(), first.ID, RemoveHard)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	arr := model["mainGroup"].([]any)
	require.Len(t, arr, 2)
	assert.Equal(t, "b", arr[0].(map[string]any)["comments"])
	assert.Equal(t, "c", arr[1].(map[string]any)["comments"])

	// identities stay with their rows while indexes shift
	rows := m.Rows(model, mainGroupPath())
	require.Len(t, rows, 2)
	assert.True(t, rows[0].ID.Equals(second.ID))
	assert.True(t, rows[1].ID.Equals(third.ID))
}

func Test_Materializer_HardRemove_ReindexesNested(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	first, err := m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)
	_, err = m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)

	secondNested := m.Rows(model, values.MustParseBinding("mainGroup[1].nested"))
	require.Len(t, secondNested, 2)

	_, err = m.RemoveRow(model, mainGroupPath(), first.ID, RemoveHard)
	require.NoError(t, err)

	// the surviving row's nested registry moved down to index 0
	shifted := m.Rows(model, values.MustParseBinding("mainGroup[0].nested"))
	require.Len(t, shifted, 2)
	assert.True(t, shifted[0].ID.Equals(secondNested[0].ID))
	assert.True(t, shifted[1].ID.Equals(secondNested[1].ID))
}

func Test_Materializer_SoftRemove_And_Undo(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	row, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "keep me"})
	require.NoError(t, err)

	index, err := m.RemoveRow(model, mainGroupPath(), row.ID, RemoveSoft)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	// the value is retained, the row just stops counting
	assert.Len(t, model["mainGroup"].([]any), 1)
	assert.Equal(t, 0, m.RowCount(model, mainGroupPath()))

	require.NoError(t, m.UndoRemove(mainGroupPath(), row.ID))
	assert.Equal(t, 1, m.RowCount(model, mainGroupPath()))

	// undoing a live row is an error
	assert.Error(t, m.UndoRemove(mainGroupPath(), row.ID))
}

func Test_Materializer_EnsureMinimumRows(t *testing.T) {
	components := []*entities.Component{
		{
			ID:   "mainGroup",
			Type: entities.TypeRepeatingGroup,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeyGroup: values.MustParseBinding("mainGroup"),
			},
			Group:  &entities.GroupConfig{MinCount: 2, Children: []string{"comments"}},
			PageID: "page1",
		},
		{
			ID:   "comments",
			Type: entities.TypeInput,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeySimple: values.MustParseBinding("mainGroup.comments"),
			},
			PageID: "page1",
		},
	}
	layout, err := entities.NewLayout("form", "1.0.0", []entities.Page{
		{ID: "page1", ComponentIDs: []string{"mainGroup", "comments"}},
	}, components)
	require.NoError(t, err)

	m := NewMaterializer(layout)
	model := entities.DataModel{}

	require.NoError(t, m.EnsureMinimumRows(model))
	assert.Len(t, model["mainGroup"].([]any), 2)

	// idempotent once the minimum is met
	require.NoError(t, m.EnsureMinimumRows(model))
	assert.Len(t, model["mainGroup"].([]any), 2)
}

func Test_Materializer_AdoptsServerRows(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{
		"mainGroup": []any{
			map[string]any{"comments": "prefilled"},
			map[string]any{"comments": "also prefilled"},
		},
	}

	rows := m.Rows(model, mainGroupPath())
	require.Len(t, rows, 2)
	assert.False(t, rows[0].ID.IsZero())
	assert.False(t, rows[1].ID.IsZero())
	assert.Equal(t, 2, m.RowCount(model, mainGroupPath()))
}

func Test_Materializer_SubmissionModelStripsSoftRemovedRows(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	first, err := m.AddRow(model, mainGroupPath(), map[string]any{"comments": "one"})
	require.NoError(t, err)
	_, err = m.AddRow(model, mainGroupPath(), map[string]any{"comments": "two"})
	require.NoError(t, err)

	_, err = m.RemoveRow(model, mainGroupPath(), first.ID, RemoveSoft)
	require.NoError(t, err)

	out := m.SubmissionModel(model)

	rows, ok := out["mainGroup"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "two", rows[0].(map[string]any)["comments"])

	// The live model keeps both rows until the removal is confirmed.
	live, ok := model["mainGroup"].([]any)
	require.True(t, ok)
	assert.Len(t, live, 2)
	assert.True(t, m.HasSoftRemoved())
}

func Test_Materializer_SubmissionModelStripsNestedBeforeOuter(t *testing.T) {
	m := NewMaterializer(groupLayout(t))
	model := entities.DataModel{}

	first, err := m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)
	_, err = m.AddRow(model, mainGroupPath(), nil)
	require.NoError(t, err)

	nestedPath := values.MustParseBinding("mainGroup[1].nested")
	nestedRows := m.Rows(model, nestedPath)
	require.Len(t, nestedRows, 2)

	_, err = m.RemoveRow(model, nestedPath, nestedRows[0].ID, RemoveSoft)
	require.NoError(t, err)
	_, err = m.RemoveRow(model, mainGroupPath(), first.ID, RemoveSoft)
	require.NoError(t, err)

	out := m.SubmissionModel(model)

	rows, ok := out["mainGroup"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	nested, ok := rows[0].(map[string]any)["nested"].([]any)
	require.True(t, ok)
	assert.Len(t, nested, 1)
}
