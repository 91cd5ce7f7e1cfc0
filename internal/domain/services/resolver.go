// Package services contains domain services for the binding and
// validation engine. These services are stateless unless noted and
// operate on the session-owned data model.
package services

import (
	"fmt"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Located is the result of resolving a binding path: the terminal
// container, the terminal key or index within it, and the current
// value. Absence is a normal result, never an error.
type Located struct {
	// Parent is the container holding the terminal segment:
	// a map[string]any, a []any, or nil when resolution went absent
	// before reaching the terminal container.
	Parent any
	// Key is the terminal field name (valid for map parents).
	Key string
	// Index is the terminal array index, or -1 when the terminal
	// segment is not indexed.
	Index int
	// Value is the resolved value; nil when absent.
	Value any
	// Exists distinguishes an explicit null value from absence.
	Exists bool
}

// Resolve walks a binding path through the model. It is read-only and
// side-effect-free: missing containers are never created, out-of-range
// indexes resolve to absent. Indexes are resolved against the current
// materialized arrays, never a cached count.
func Resolve(model entities.DataModel, path values.BindingPath) Located {
	segments := path.Segments()
	if len(segments) == 0 {
		return Located{Index: -1}
	}

	var current any = map[string]any(model)

	for i, seg := range segments {
		container, ok := current.(map[string]any)
		if !ok {
			return Located{Index: -1}
		}

		value, present := container[seg.Key]
		last := i == len(segments)-1

		if !seg.Indexed() {
			if last {
				return Located{Parent: container, Key: seg.Key, Index: -1, Value: value, Exists: present}
			}
			if !present {
				return Located{Index: -1}
			}
			current = value
			continue
		}

		arr, isArr := value.([]any)
		if !isArr || seg.Index >= len(arr) {
			if last {
				return Located{Parent: container, Key: seg.Key, Index: seg.Index}
			}
			return Located{Index: -1}
		}

		if last {
			return Located{Parent: arr, Key: seg.Key, Index: seg.Index, Value: arr[seg.Index], Exists: true}
		}
		current = arr[seg.Index]
	}

	// Unreachable: the loop always returns on the last segment.
	return Located{Index: -1}
}

// SetValue writes a scalar leaf through a binding path. Intermediate
// object containers are created on demand; array rows are not -- row
// materialization belongs to the Materializer, so a write through a
// missing or out-of-range row fails.
func SetValue(model entities.DataModel, path values.BindingPath, value any) error {
	segments := path.Segments()
	if len(segments) == 0 {
		return fmt.Errorf("cannot write through empty binding")
	}

	current := map[string]any(model)

	for i, seg := range segments {
		last := i == len(segments)-1

		if !seg.Indexed() {
			if last {
				current[seg.Key] = value
				return nil
			}
			next, present := current[seg.Key]
			if !present || next == nil {
				child := map[string]any{}
				current[seg.Key] = child
				current = child
				continue
			}
			obj, ok := next.(map[string]any)
			if !ok {
				return fmt.Errorf("binding %s: segment %q is not an object", path, seg.Key)
			}
			current = obj
			continue
		}

		arr, ok := current[seg.Key].([]any)
		if !ok || seg.Index >= len(arr) {
			return fmt.Errorf("binding %s: row %s[%d] does not exist", path, seg.Key, seg.Index)
		}
		if last {
			arr[seg.Index] = value
			return nil
		}
		obj, ok := arr[seg.Index].(map[string]any)
		if !ok {
			return fmt.Errorf("binding %s: row %s[%d] is not an object", path, seg.Key, seg.Index)
		}
		current = obj
	}

	return nil
}

// RemoveValue deletes the leaf a path points to. Removing an absent
// path is a no-op; removing an array element is refused (that is a row
// operation, not a field operation).
func RemoveValue(model entities.DataModel, path values.BindingPath) error {
	loc := Resolve(model, path)
	if !loc.Exists {
		return nil
	}
	container, ok := loc.Parent.(map[string]any)
	if !ok {
		return fmt.Errorf("binding %s: cannot remove an array element as a field", path)
	}
	delete(container, loc.Key)
	return nil
}
