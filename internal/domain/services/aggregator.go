package services

import (
	"sort"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// ValidationState aggregates validation issues from the independent
// sources into one indexed state, keyed by concrete binding path. Each
// source owns a separate slot per path and replaces only its own
// issues when it re-runs; replace-by-source is idempotent, which keeps
// out-of-order async completions safe without locking.
type ValidationState struct {
	paths map[string]*pathSlots
	// hidden paths reject new issues until explicitly shown again;
	// the caller re-validates on re-show.
	hidden map[string]bool
	// suppressed row prefixes (soft-removed rows): their issues are
	// invisible to reads and the gate but survive for undo.
	suppressed map[string]bool
}

type pathSlots struct {
	path   values.BindingPath
	issues map[values.Source][]entities.Issue
	stale  map[values.Source]bool
}

// NewValidationState creates an empty aggregate.
func NewValidationState() *ValidationState {
	return &ValidationState{
		paths:      make(map[string]*pathSlots),
		hidden:     make(map[string]bool),
		suppressed: make(map[string]bool),
	}
}

// SetIssues fully replaces one source's issues for a path. Other
// sources' issues for the same path are untouched. Re-submitting an
// identical set produces an identical aggregate. Issues arriving for a
// pruned (hidden) path are dropped: stale async results must not
// resurrect issues for a field the user can no longer see.
func (s *ValidationState) SetIssues(path values.BindingPath, source values.Source, issues []entities.Issue) {
	key := path.String()
	if s.hidden[key] {
		return
	}

	slots := s.paths[key]
	if slots == nil {
		if len(issues) == 0 {
			return
		}
		slots = &pathSlots{
			path:   path,
			issues: make(map[values.Source][]entities.Issue),
			stale:  make(map[values.Source]bool),
		}
		s.paths[key] = slots
	}

	delete(slots.stale, source)
	if len(issues) == 0 {
		delete(slots.issues, source)
		if len(slots.issues) == 0 {
			delete(s.paths, key)
		}
		return
	}
	stored := make([]entities.Issue, len(issues))
	copy(stored, issues)
	slots.issues[source] = stored
}

// PrunePath removes all issues for a path and marks it hidden, so that
// a source re-sending stale issues cannot resurrect them. Invoked when
// the path is hidden by a visibility expression. MarkVisible reverses
// the hiding; the caller is expected to re-validate afterwards.
func (s *ValidationState) PrunePath(path values.BindingPath) {
	key := path.String()
	delete(s.paths, key)
	s.hidden[key] = true
}

// MarkVisible re-admits issues for a previously pruned path. It does
// not re-create any issues by itself.
func (s *ValidationState) MarkVisible(path values.BindingPath) {
	delete(s.hidden, path.String())
}

// PruneRow removes all issues owned by one hard-removed row and shifts
// issue paths of later rows down one index, keeping them aligned with
// the re-indexed array. Unlike PrunePath this does not mark anything
// hidden: the vacated indexes remain valid targets for future rows.
func (s *ValidationState) PruneRow(groupPath values.BindingPath, removedIndex int) {
	seg := groupPath.Len() - 1
	updated := make(map[string]*pathSlots, len(s.paths))

	for key, slots := range s.paths {
		if !pathUnderGroup(slots.path, groupPath) {
			updated[key] = slots
			continue
		}
		rowIdx := slots.path.Segments()[seg].Index
		switch {
		case rowIdx == removedIndex:
			// dropped with the row
		case rowIdx > removedIndex:
			shifted, err := slots.path.WithIndex(seg, rowIdx-1)
			if err == nil {
				slots.path = shifted
				reindexIssues(slots, shifted)
				updated[shifted.String()] = slots
			}
		default:
			updated[key] = slots
		}
	}

	s.paths = updated
	s.suppressed = shiftPrefixSet(s.suppressed, groupPath, removedIndex)
	s.hidden = shiftPrefixSet(s.hidden, groupPath, removedIndex)
}

// SuppressRow hides a soft-removed row's issues from reads and the
// gate without deleting them, so UndoRemove restores the prior
// validation context without re-validating.
func (s *ValidationState) SuppressRow(groupPath values.BindingPath, index int) {
	s.suppressed[groupPath.Row(index).String()] = true
}

// UnsuppressRow reverses SuppressRow.
func (s *ValidationState) UnsuppressRow(groupPath values.BindingPath, index int) {
	delete(s.suppressed, groupPath.Row(index).String())
}

// MarkStale records that a source failed to refresh its issues for a
// path. The previous issue set stays untouched: silently clearing on a
// failed refresh would let a form with real outstanding server errors
// through the gate.
func (s *ValidationState) MarkStale(path values.BindingPath, source values.Source) {
	slots := s.paths[path.String()]
	if slots == nil {
		return
	}
	slots.stale[source] = true
}

// IsStale reports whether a source's issues for a path come from a
// refresh that has since failed.
func (s *ValidationState) IsStale(path values.BindingPath, source values.Source) bool {
	slots := s.paths[path.String()]
	return slots != nil && slots.stale[source]
}

// IssuesFor returns the current issues for a path in deterministic
// order: ClientSchema first, then CustomRule, then Backend, each in
// submission order. Suppressed rows read as empty.
func (s *ValidationState) IssuesFor(path values.BindingPath) []entities.Issue {
	if s.isSuppressed(path) {
		return nil
	}
	slots := s.paths[path.String()]
	if slots == nil {
		return nil
	}
	var out []entities.Issue
	for _, source := range values.Sources {
		out = append(out, slots.issues[source]...)
	}
	return out
}

// AllIssues returns every visible issue ordered by path then source,
// the stable order the error summary renders in. Row indexes within a
// path compare numerically, so mainGroup[2] precedes mainGroup[10].
func (s *ValidationState) AllIssues() []entities.Issue {
	keys := make([]string, 0, len(s.paths))
	for key, slots := range s.paths {
		if s.isSuppressed(slots.path) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return comparePaths(s.paths[keys[i]].path, s.paths[keys[j]].path) < 0
	})

	var out []entities.Issue
	for _, key := range keys {
		slots := s.paths[key]
		for _, source := range values.Sources {
			out = append(out, slots.issues[source]...)
		}
	}
	return out
}

// BackendPaths returns the paths currently holding backend issues.
// Used to prune issues the server no longer reports.
func (s *ValidationState) BackendPaths() []values.BindingPath {
	var out []values.BindingPath
	for _, slots := range s.paths {
		if len(slots.issues[values.SourceBackend]) > 0 {
			out = append(out, slots.path)
		}
	}
	return out
}

// IsSuppressed reports whether the path lies within a soft-removed
// row. Suppressed paths keep their stored issues for undo; sources
// must not clear them just because the row dropped out of a pass.
func (s *ValidationState) IsSuppressed(path values.BindingPath) bool {
	return s.isSuppressed(path)
}

func (s *ValidationState) isSuppressed(path values.BindingPath) bool {
	for prefix := range s.suppressed {
		p, err := values.ParseBinding(prefix)
		if err != nil {
			continue
		}
		if path.HasPrefix(p) {
			return true
		}
	}
	return false
}

func reindexIssues(slots *pathSlots, path values.BindingPath) {
	for source, issues := range slots.issues {
		for i := range issues {
			issues[i].Path = path
		}
		slots.issues[source] = issues
	}
}

func shiftPrefixSet(set map[string]bool, groupPath values.BindingPath, removedIndex int) map[string]bool {
	seg := groupPath.Len() - 1
	out := make(map[string]bool, len(set))
	for key := range set {
		path, err := values.ParseBinding(key)
		if err != nil || !pathUnderOrAtRow(path, groupPath) {
			out[key] = true
			continue
		}
		rowIdx := path.Segments()[seg].Index
		switch {
		case rowIdx == removedIndex:
			// dropped with the row
		case rowIdx > removedIndex:
			if shifted, err := path.WithIndex(seg, rowIdx-1); err == nil {
				out[shifted.String()] = true
			}
		default:
			out[key] = true
		}
	}
	return out
}

// pathUnderOrAtRow matches both the row path itself ("g[1]") and paths
// within the row ("g[1].field").
func pathUnderOrAtRow(path, groupPath values.BindingPath) bool {
	gsegs := groupPath.Segments()
	psegs := path.Segments()
	if len(psegs) < len(gsegs) {
		return false
	}
	for i := 0; i < len(gsegs)-1; i++ {
		if psegs[i] != gsegs[i] {
			return false
		}
	}
	last := len(gsegs) - 1
	return psegs[last].Key == gsegs[last].Key && psegs[last].Indexed()
}

// comparePaths orders two binding paths segment-wise: keys
// lexicographically, indexes as numbers. Unindexed sorts before
// indexed at the same key.
func comparePaths(a, b values.BindingPath) int {
	as, bs := a.Segments(), b.Segments()
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i].Key != bs[i].Key {
			if as[i].Key < bs[i].Key {
				return -1
			}
			return 1
		}
		if as[i].Index != bs[i].Index {
			if as[i].Index < bs[i].Index {
				return -1
			}
			return 1
		}
	}
	return len(as) - len(bs)
}
