package services

import (
	"fmt"
	"strconv"

	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// FlatMap is the flat, UI-addressable view of a data model: one entry
// per scalar leaf, keyed in binding syntax ("a.b", "group[0].field").
// Explicit nulls are retained; missing keys are simply not present.
// Empty containers have no representation in the flat form, so an
// empty array or object round-trips to an absent key. A group whose
// rows were all removed and an absent group are indistinguishable
// here; the Materializer's row registry keeps that distinction.
type FlatMap map[string]any

// Flatten converts a nested model to its flat form. Array index order
// is preserved in the generated keys, so flatten/unflatten cycles keep
// repeating-group ordering stable.
func Flatten(model entities.DataModel) FlatMap {
	flat := make(FlatMap)
	flattenValue("", map[string]any(model), flat)
	return flat
}

func flattenValue(prefix string, v any, out FlatMap) {
	switch val := v.(type) {
	case map[string]any:
		for key, elem := range val {
			child := key
			if prefix != "" {
				child = prefix + "." + key
			}
			flattenValue(child, elem, out)
		}
	case []any:
		for i, elem := range val {
			flattenValue(prefix+"["+strconv.Itoa(i)+"]", elem, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

// Unflatten reconstructs a nested model from a flat map. Any key
// segment using index syntax produces an array, with length inferred
// from the maximum index seen plus one. Index gaps are filled with
// empty objects rather than rejected, so sparse edits stay resolvable;
// the Materializer is expected to keep gaps from persisting.
func Unflatten(flat FlatMap) (entities.DataModel, error) {
	model := map[string]any{}
	for key, value := range flat {
		path, err := values.ParseBinding(key)
		if err != nil {
			return nil, fmt.Errorf("flat key %q: %w", key, err)
		}
		if err := unflattenInsert(model, path.Segments(), value); err != nil {
			return nil, fmt.Errorf("flat key %q: %w", key, err)
		}
	}
	return model, nil
}

func unflattenInsert(root map[string]any, segments []values.Segment, value any) error {
	current := root

	for i, seg := range segments {
		last := i == len(segments)-1

		if !seg.Indexed() {
			if last {
				current[seg.Key] = value
				return nil
			}
			next, ok := current[seg.Key]
			if !ok {
				child := map[string]any{}
				current[seg.Key] = child
				current = child
				continue
			}
			obj, isObj := next.(map[string]any)
			if !isObj {
				return fmt.Errorf("segment %q: conflicting scalar and object", seg.Key)
			}
			current = obj
			continue
		}

		arr, _ := current[seg.Key].([]any)
		for len(arr) <= seg.Index {
			arr = append(arr, map[string]any{})
		}
		current[seg.Key] = arr

		if last {
			arr[seg.Index] = value
			return nil
		}
		obj, isObj := arr[seg.Index].(map[string]any)
		if !isObj {
			return fmt.Errorf("segment %q[%d]: conflicting scalar and object", seg.Key, seg.Index)
		}
		current = obj
	}

	return nil
}
