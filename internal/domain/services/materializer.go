package services

import (
	"fmt"
	"sort"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// RemoveMode selects between hard and soft row removal.
type RemoveMode int

const (
	// RemoveHard deletes the array element; remaining rows shift down
	// one index, their identities unchanged.
	RemoveHard RemoveMode = iota
	// RemoveSoft flags the row as removed: excluded from validation
	// and submission but retained until confirmed or undone.
	RemoveSoft
)

// Row is the runtime identity of one repeating-group row. The ID is a
// side channel; it never appears in the persisted model value.
type Row struct {
	ID      values.RowID
	Removed bool
}

// Materializer performs all structural changes to repeating groups:
// creating rows, removing them, and keeping the row-identity registry
// aligned with the arrays in the model. Resolution stays read-only;
// this is the only service that creates containers.
//
// The registry is keyed by concrete group path ("mainGroup",
// "mainGroup[0].nested"); entries are positionally parallel to the
// model array, including soft-removed rows.
type Materializer struct {
	layout *entities.Layout
	rows   map[string][]Row
}

// NewMaterializer creates a materializer for one layout.
func NewMaterializer(layout *entities.Layout) *Materializer {
	return &Materializer{
		layout: layout,
		rows:   make(map[string][]Row),
	}
}

// AddRow appends a new row at the end of the group's array and assigns
// it a fresh stable identity. Nested groups declared within the row
// that configure a minimum row count are pre-populated recursively,
// outer groups before inner ones, because inner bindings only resolve
// once the outer row exists. Seed fields are written into the new row
// before nested pre-population.
//
// If the group binding currently resolves to a non-array value the
// group is treated as empty and replaced with a fresh single-element
// array; authoring-time layout/schema mismatches must not crash the
// session.
func (m *Materializer) AddRow(model entities.DataModel, groupPath values.BindingPath, seed map[string]any) (Row, error) {
	group, err := m.groupFor(groupPath)
	if err != nil {
		return Row{}, err
	}
	m.syncRows(model, groupPath)

	arr := m.currentArray(model, groupPath)
	rowValue := map[string]any{}
	for key, val := range seed {
		rowValue[key] = val
	}
	arr = append(arr, rowValue)
	if err := SetValue(model, groupPath, arr); err != nil {
		return Row{}, fmt.Errorf("materializing %s: %w", groupPath, err)
	}

	row := Row{ID: values.NewRowID()}
	key := groupPath.String()
	m.rows[key] = append(m.rows[key], row)
	rowIndex := len(arr) - 1

	// Minimum-row pre-population, shallow-to-deep. Recursion keeps the
	// ordering: each nested AddRow fills its own nested minimums only
	// after its row exists.
	for _, nested := range m.layout.NestedGroups(group) {
		if nested.Group.MinCount <= 0 {
			continue
		}
		nestedPath, err := Concretize(nested.GroupBinding(), groupPath.Row(rowIndex))
		if err != nil {
			return Row{}, err
		}
		for m.RowCount(model, nestedPath) < nested.Group.MinCount {
			if _, err := m.AddRow(model, nestedPath, nil); err != nil {
				return Row{}, err
			}
		}
	}

	return row, nil
}

// EnsureMinimumRows pre-populates minimum row counts for the layout's
// top-level groups, typically at session start against a fresh or
// server-provided model. Nested minimums are handled by AddRow.
func (m *Materializer) EnsureMinimumRows(model entities.DataModel) error {
	for _, group := range m.layout.Groups() {
		if group.GroupID != "" || group.Group.MinCount <= 0 {
			continue
		}
		groupPath := group.GroupBinding()
		if groupPath.IsZero() {
			continue
		}
		for m.RowCount(model, groupPath) < group.Group.MinCount {
			if _, err := m.AddRow(model, groupPath, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveRow removes the row with the given identity. Hard removal
// deletes the array element and shifts later rows down; soft removal
// only flags the row. The removed row's former index is returned so
// callers can prune validation state for the affected paths.
func (m *Materializer) RemoveRow(model entities.DataModel, groupPath values.BindingPath, rowID values.RowID, mode RemoveMode) (int, error) {
	if _, err := m.groupFor(groupPath); err != nil {
		return 0, err
	}
	m.syncRows(model, groupPath)

	key := groupPath.String()
	index := -1
	for i, row := range m.rows[key] {
		if row.ID.Equals(rowID) {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, fmt.Errorf("group %s: no row with ID %s", groupPath, rowID)
	}

	if mode == RemoveSoft {
		m.rows[key][index].Removed = true
		return index, nil
	}

	arr := m.currentArray(model, groupPath)
	if index < len(arr) {
		arr = append(arr[:index], arr[index+1:]...)
		if err := SetValue(model, groupPath, arr); err != nil {
			return 0, fmt.Errorf("materializing %s: %w", groupPath, err)
		}
	}
	m.rows[key] = append(m.rows[key][:index], m.rows[key][index+1:]...)
	m.reindexNested(groupPath, index)

	return index, nil
}

// UndoRemove reverses a soft removal without re-running row
// initialization.
func (m *Materializer) UndoRemove(groupPath values.BindingPath, rowID values.RowID) error {
	key := groupPath.String()
	for i, row := range m.rows[key] {
		if row.ID.Equals(rowID) {
			if !row.Removed {
				return fmt.Errorf("group %s: row %s is not removed", groupPath, rowID)
			}
			m.rows[key][i].Removed = false
			return nil
		}
	}
	return fmt.Errorf("group %s: no row with ID %s", groupPath, rowID)
}

// RowCount returns the number of rows excluding soft-removed ones,
// which are invisible to validation and submission.
func (m *Materializer) RowCount(model entities.DataModel, groupPath values.BindingPath) int {
	m.syncRows(model, groupPath)
	count := 0
	for _, row := range m.rows[groupPath.String()] {
		if !row.Removed {
			count++
		}
	}
	return count
}

// HasSoftRemoved reports whether any row is currently soft-removed.
func (m *Materializer) HasSoftRemoved() bool {
	for _, registry := range m.rows {
		for _, row := range registry {
			if row.Removed {
				return true
			}
		}
	}
	return false
}

// SubmissionModel returns a copy of the model with soft-removed rows
// stripped out of their arrays. The live model keeps the rows until
// the removal is confirmed or undone; only the outgoing payload drops
// them. Deeper groups are stripped before their ancestors so an outer
// removal cannot shift the indexes a nested registry key refers to.
func (m *Materializer) SubmissionModel(model entities.DataModel) entities.DataModel {
	out := model.Clone()

	var keys []string
	for key, registry := range m.rows {
		for _, row := range registry {
			if row.Removed {
				keys = append(keys, key)
				break
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return bindingDepth(keys[i]) > bindingDepth(keys[j])
	})

	for _, key := range keys {
		registry := m.rows[key]
		path, err := values.ParseBinding(key)
		if err != nil {
			continue
		}
		arr, ok := Resolve(out, path).Value.([]any)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(arr))
		for i, elem := range arr {
			if i < len(registry) && registry[i].Removed {
				continue
			}
			kept = append(kept, elem)
		}
		if err := SetValue(out, path, kept); err != nil {
			continue
		}
	}
	return out
}

func bindingDepth(key string) int {
	path, err := values.ParseBinding(key)
	if err != nil {
		return 0
	}
	return path.Len()
}

// Rows returns the registry for a group, positionally parallel to the
// model array and including soft-removed rows.
func (m *Materializer) Rows(model entities.DataModel, groupPath values.BindingPath) []Row {
	m.syncRows(model, groupPath)
	registry := m.rows[groupPath.String()]
	out := make([]Row, len(registry))
	copy(out, registry)
	return out
}

// groupFor finds the repeating-group component declared for a concrete
// group path.
func (m *Materializer) groupFor(groupPath values.BindingPath) (*entities.Component, error) {
	bare := groupPath.WithoutIndexes()
	for _, c := range m.layout.Groups() {
		if c.GroupBinding().WithoutIndexes().Equals(bare) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no repeating group declared for binding %s", groupPath)
}

// currentArray resolves the group's array, treating absent or
// non-array values as empty.
func (m *Materializer) currentArray(model entities.DataModel, groupPath values.BindingPath) []any {
	loc := Resolve(model, groupPath)
	if arr, ok := loc.Value.([]any); ok {
		return arr
	}
	return nil
}

// syncRows adopts rows that exist in the model but not in the registry
// (server-prefilled data), and drops registry entries beyond the
// array's current length.
func (m *Materializer) syncRows(model entities.DataModel, groupPath values.BindingPath) {
	arr := m.currentArray(model, groupPath)
	key := groupPath.String()
	registry := m.rows[key]

	for len(registry) < len(arr) {
		registry = append(registry, Row{ID: values.NewRowID()})
	}
	if len(registry) > len(arr) {
		registry = registry[:len(arr)]
	}
	m.rows[key] = registry
}

// reindexNested shifts registry keys of nested groups after a hard
// removal: entries under the removed row are dropped, entries under
// later rows move down one index.
func (m *Materializer) reindexNested(groupPath values.BindingPath, removedIndex int) {
	seg := groupPath.Len() - 1
	updated := make(map[string][]Row, len(m.rows))

	for key, registry := range m.rows {
		path, err := values.ParseBinding(key)
		if err != nil || path.Len() <= groupPath.Len() {
			updated[key] = registry
			continue
		}
		segs := path.Segments()
		if !pathUnderGroup(path, groupPath) {
			updated[key] = registry
			continue
		}
		rowIdx := segs[seg].Index
		switch {
		case rowIdx == removedIndex:
			// dropped with its row
		case rowIdx > removedIndex:
			shifted, err := path.WithIndex(seg, rowIdx-1)
			if err == nil {
				updated[shifted.String()] = registry
			}
		default:
			updated[key] = registry
		}
	}

	m.rows = updated
}

// pathUnderGroup reports whether path addresses something inside a row
// of groupPath (matching keys and indexes up to the group segment).
func pathUnderGroup(path, groupPath values.BindingPath) bool {
	gsegs := groupPath.Segments()
	psegs := path.Segments()
	if len(psegs) <= len(gsegs) {
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

// Concretize projects a layout-declared nested binding onto a concrete
// row path: declared "mainGroup.nested" under row "mainGroup[1]"
// becomes "mainGroup[1].nested".
func Concretize(declared, rowPath values.BindingPath) (values.BindingPath, error) {
	dsegs := declared.Segments()
	rsegs := rowPath.Segments()
	if len(dsegs) <= len(rsegs) {
		return values.BindingPath{}, fmt.Errorf("binding %s does not extend row path %s", declared, rowPath)
	}
	for i, rseg := range rsegs {
		if dsegs[i].Key != rseg.Key {
			return values.BindingPath{}, fmt.Errorf("binding %s does not extend row path %s", declared, rowPath)
		}
	}

	out := rowPath
	for i := len(rsegs); i < len(dsegs); i++ {
		out = out.Child(dsegs[i].Key)
		if dsegs[i].Indexed() {
			var err error
			out, err = out.WithIndex(i, dsegs[i].Index)
			if err != nil {
				return values.BindingPath{}, err
			}
		}
	}
	return out, nil
}
