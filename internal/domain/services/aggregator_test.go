package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

func issueAt(path string, source values.Source, message string) entities.Issue {
	return entities.Issue{
		Path:     values.MustParseBinding(path),
		Source:   source,
		Severity: values.SevError,
		Message:  message,
	}
}

func Test_ValidationState_ReplaceBySource(t *testing.T) {
	state := NewValidationState()
	path := values.MustParseBinding("name")

	state.SetIssues(path, values.SourceClientSchema, []entities.Issue{
		issueAt("name", values.SourceClientSchema, "too short"),
	})
	state.SetIssues(path, values.SourceBackend, []entities.Issue{
		issueAt("name", values.SourceBackend, "already registered"),
	})

	// a source re-running replaces only its own slot
	state.SetIssues(path, values.SourceClientSchema, []entities.Issue{
		issueAt("name", values.SourceClientSchema, "bad pattern"),
	})

	issues := state.IssuesFor(path)
	require.Len(t, issues, 2)
	assert.Equal(t, "bad pattern", issues[0].Message)
	assert.Equal(t, "already registered", issues[1].Message)

	// clearing one source keeps the other
	state.SetIssues(path, values.SourceClientSchema, nil)
	issues = state.IssuesFor(path)
	require.Len(t, issues, 1)
	assert.Equal(t, values.SourceBackend, issues[0].Source)
}

func Test_ValidationState_Idempotent(t *testing.T) {
	state := NewValidationState()
	path := values.MustParseBinding("name")
	set := []entities.Issue{issueAt("name", values.SourceCustomRule, "field is required")}

	state.SetIssues(path, values.SourceCustomRule, set)
	first := state.IssuesFor(path)
	state.SetIssues(path, values.SourceCustomRule, set)
	second := state.IssuesFor(path)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func Test_ValidationState_SourceOrder(t *testing.T) {
	state := NewValidationState()
	path := values.MustParseBinding("name")

	// submitted in reverse presentation order
	state.SetIssues(path, values.SourceBackend, []entities.Issue{issueAt("name", values.SourceBackend, "c")})
	state.SetIssues(path, values.SourceCustomRule, []entities.Issue{issueAt("name", values.SourceCustomRule, "b")})
	state.SetIssues(path, values.SourceClientSchema, []entities.Issue{issueAt("name", values.SourceClientSchema, "a")})

	issues := state.IssuesFor(path)
	require.Len(t, issues, 3)
	assert.Equal(t, values.SourceClientSchema, issues[0].Source)
	assert.Equal(t, values.SourceCustomRule, issues[1].Source)
	assert.Equal(t, values.SourceBackend, issues[2].Source)
}

func Test_ValidationState_PruneBlocksStaleResends(t *testing.T) {
	state := NewValidationState()
	path := values.MustParseBinding("employer.name")
	stale := []entities.Issue{issueAt("employer.name", values.SourceBackend, "stale")}

	state.SetIssues(path, values.SourceBackend, stale)
	require.Len(t, state.IssuesFor(path), 1)

	state.PrunePath(path)
	assert.Empty(t, state.IssuesFor(path))

	// late async completion for the hidden field is dropped
	state.SetIssues(path, values.SourceBackend, stale)
	assert.Empty(t, state.IssuesFor(path))

	// showing the field again re-admits fresh results
	state.MarkVisible(path)
	state.SetIssues(path, values.SourceBackend, stale)
	assert.Len(t, state.IssuesFor(path), 1)
}

func Test_ValidationState_PruneRow(t *testing.T) {
	state := NewValidationState()
	group := values.MustParseBinding("mainGroup")

	state.SetIssues(values.MustParseBinding("mainGroup[0].comments"), values.SourceCustomRule,
		[]entities.Issue{issueAt("mainGroup[0].comments", values.SourceCustomRule, "row zero")})
	state.SetIssues(values.MustParseBinding("mainGroup[1].comments"), values.SourceCustomRule,
		[]entities.Issue{issueAt("mainGroup[1].comments", values.SourceCustomRule, "row one")})
	state.SetIssues(values.MustParseBinding("mainGroup[2].comments"), values.SourceCustomRule,
		[]entities.Issue{issueAt("mainGroup[2].comments", values.SourceCustomRule, "row two")})
	state.SetIssues(values.MustParseBinding("other"), values.SourceCustomRule,
		[]entities.Issue{issueAt("other", values.SourceCustomRule, "unrelated")})

	state.PruneRow(group, 1)

	// row one's issues are gone, row two's moved down with it
	assert.Empty(t, state.IssuesFor(values.MustParseBinding("mainGroup[2].comments")))
	shifted := state.IssuesFor(values.MustParseBinding("mainGroup[1].comments"))
	require.Len(t, shifted, 1)
	assert.Equal(t, "row two", shifted[0].Message)
	assert.Equal(t, "mainGroup[1].comments", shifted[0].Path.String())

	// untouched paths stay put
	require.Len(t, state.IssuesFor(values.MustParseBinding("mainGroup[0].comments")), 1)
	require.Len(t, state.IssuesFor(values.MustParseBinding("other")), 1)
}

func Test_ValidationState_SuppressRow(t *testing.T) {
	state := NewValidationState()
	group := values.MustParseBinding("mainGroup")
	path := values.MustParseBinding("mainGroup[0].comments")

	state.SetIssues(path, values.SourceCustomRule,
		[]entities.Issue{issueAt("mainGroup[0].comments", values.SourceCustomRule, "field is required")})

	state.SuppressRow(group, 0)
	assert.Empty(t, state.IssuesFor(path))
	assert.Empty(t, state.AllIssues())

	// undo restores the prior validation context without re-running
	state.UnsuppressRow(group, 0)
	require.Len(t, state.IssuesFor(path), 1)
}

func Test_ValidationState_StaleFlag(t *testing.T) {
	state := NewValidationState()
	path := values.MustParseBinding("name")

	state.SetIssues(path, values.SourceBackend,
		[]entities.Issue{issueAt("name", values.SourceBackend, "server said no")})
	assert.False(t, state.IsStale(path, values.SourceBackend))

	state.MarkStale(path, values.SourceBackend)
	assert.True(t, state.IsStale(path, values.SourceBackend))

	// the issues stay, failed refreshes never silently clear them
	require.Len(t, state.IssuesFor(path), 1)

	// a successful refresh clears the flag
	state.SetIssues(path, values.SourceBackend,
		[]entities.Issue{issueAt("name", values.SourceBackend, "server said no")})
	assert.False(t, state.IsStale(path, values.SourceBackend))
}

func Test_ValidationState_AllIssues_Sorted(t *testing.T) {
	state := NewValidationState()

	state.SetIssues(values.MustParseBinding("zeta"), values.SourceCustomRule,
		[]entities.Issue{issueAt("zeta", values.SourceCustomRule, "z")})
	state.SetIssues(values.MustParseBinding("alpha"), values.SourceCustomRule,
		[]entities.Issue{issueAt("alpha", values.SourceCustomRule, "a")})

	issues := state.AllIssues()
	require.Len(t, issues, 2)
	assert.Equal(t, "alpha", issues[0].Path.String())
	assert.Equal(t, "zeta", issues[1].Path.String())
}

func Test_ValidationState_AllIssues_RowIndexesOrderNumerically(t *testing.T) {
	state := NewValidationState()

	for _, key := range []string{
		"mainGroup[10].comments", "mainGroup[2].comments", "name",
	} {
		state.SetIssues(values.MustParseBinding(key), values.SourceCustomRule,
			[]entities.Issue{issueAt(key, values.SourceCustomRule, "x")})
	}

	issues := state.AllIssues()
	require.Len(t, issues, 3)
	assert.Equal(t, "mainGroup[2].comments", issues[0].Path.String())
	assert.Equal(t, "mainGroup[10].comments", issues[1].Path.String())
	assert.Equal(t, "name", issues[2].Path.String())
}

func Test_ValidationState_BackendPaths(t *testing.T) {
	state := NewValidationState()

	state.SetIssues(values.MustParseBinding("a"), values.SourceBackend,
		[]entities.Issue{issueAt("a", values.SourceBackend, "x")})
	state.SetIssues(values.MustParseBinding("b"), values.SourceClientSchema,
		[]entities.Issue{issueAt("b", values.SourceClientSchema, "y")})

	paths := state.BackendPaths()
	require.Len(t, paths, 1)
	assert.Equal(t, "a", paths[0].String())
}
