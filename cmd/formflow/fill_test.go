package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservices "github.com/formflow-dev/formflow/internal/application/services"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/services"
	"github.com/formflow-dev/formflow/internal/domain/values"
	"github.com/formflow-dev/formflow/internal/infrastructure/persistence/memory"
)

// fillLayout declares a repeating group with two minimum rows and a
// required comments child.
func fillLayout(t *testing.T) *entities.Layout {
	t.Helper()

	components := []*entities.Component{
		{
			ID:   "mainGroup",
			Type: entities.TypeRepeatingGroup,
			Bindings: map[string]values.BindingPath{
				entities.BindingKeyGroup: values.MustParseBinding("mainGroup"),
			},
			Group:  &entities.GroupConfig{Children: []string{"comments"}, MinCount: 2, MaxCount: 4},
			PageID: "page1",
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
	}

	layout, err := entities.NewLayout("form", "1.0.0", []entities.Page{
		{ID: "page1", ComponentIDs: []string{"mainGroup", "comments"}},
	}, components)
	require.NoError(t, err)
	return layout
}

func stubPrompts(t *testing.T, answer string, confirmations []bool) *[]string {
	t.Helper()

	origInput, origConfirm := promptInput, promptConfirm
	t.Cleanup(func() {
		promptInput, promptConfirm = origInput, origConfirm
	})

	prompted := &[]string{}
	promptInput = func(title string, value *string) error {
		*prompted = append(*prompted, title)
		*value = answer
		return nil
	}
	confirmIdx := 0
	promptConfirm = func(_ string, value *bool) error {
		if confirmIdx < len(confirmations) {
			*value = confirmations[confirmIdx]
			confirmIdx++
		}
		return nil
	}
	return prompted
}

func Test_FillGroup_VisitsMinimumRows(t *testing.T) {
	layout := fillLayout(t)
	session, err := appservices.NewSession(context.Background(), appservices.Deps{
		Layout:  layout,
		Backend: memory.NewBackend(nil),
	})
	require.NoError(t, err)

	// Session start materialized the two minimum rows; both block
	// until their required comments are filled.
	require.Len(t, session.Rows(values.MustParseBinding("mainGroup")), 2)
	require.False(t, session.CanAdvance(services.WholeForm))

	prompted := stubPrompts(t, "answered", []bool{false})

	group, ok := layout.Component("mainGroup")
	require.True(t, ok)
	require.NoError(t, fillGroup(session, layout, group, values.BindingPath{}))

	assert.Equal(t, []string{"comments *", "comments *"}, *prompted)
	for i := 0; i < 2; i++ {
		value, exists := session.Value(values.MustParseBinding(fmt.Sprintf("mainGroup[%d].comments", i)))
		require.True(t, exists)
		assert.Equal(t, "answered", value)
	}
	assert.Empty(t, session.BlockingIssues(services.WholeForm))
	assert.True(t, session.CanAdvance(services.WholeForm))
}

func Test_FillGroup_AddsAndFillsExtraRows(t *testing.T) {
	layout := fillLayout(t)
	session, err := appservices.NewSession(context.Background(), appservices.Deps{
		Layout:  layout,
		Backend: memory.NewBackend(nil),
	})
	require.NoError(t, err)

	prompted := stubPrompts(t, "answered", []bool{true, false})

	group, ok := layout.Component("mainGroup")
	require.True(t, ok)
	require.NoError(t, fillGroup(session, layout, group, values.BindingPath{}))

	// Two minimum rows plus one confirmed addition, each prompted once.
	assert.Len(t, *prompted, 3)
	assert.Len(t, session.Rows(values.MustParseBinding("mainGroup")), 3)
	value, exists := session.Value(values.MustParseBinding("mainGroup[2].comments"))
	require.True(t, exists)
	assert.Equal(t, "answered", value)
}
