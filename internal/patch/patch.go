// Package patch builds the minimal replace/remove patch documents used
// by list and administrative editing flows outside the form runtime.
// This is deliberately not a full RFC 6902 implementation: no add,
// move or test operations.
package patch

// Operation is a single patch step.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// FieldChange is one key's computed new value, in application order.
type FieldChange struct {
	Key   string
	Value any
}

// CreateReplacePatch converts an ordered set of field changes into a
// patch document: a remove for every empty new value, a replace
// otherwise. Order follows the input.
func CreateReplacePatch(changes []FieldChange) []Operation {
	ops := make([]Operation, 0, len(changes))
	for _, change := range changes {
		if isEmpty(change.Value) {
			ops = append(ops, Operation{Op: "remove", Path: "/" + change.Key})
			continue
		}
		ops = append(ops, Operation{Op: "replace", Path: "/" + change.Key, Value: change.Value})
	}
	return ops
}

// isEmpty mirrors the falsy notion of the consuming API: nil, empty
// string, false, numeric zero, and empty containers all clear the key.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
