package entities

import (
	"encoding/json"
	"fmt"
)

// DataModel is the canonical nested form data document: objects, arrays
// and scalars (string, float64, bool, nil) as produced by encoding/json.
// It is owned by the active session and mutated only through the
// resolver and materializer; external collaborators see serialized
// snapshots.
type DataModel map[string]any

// ParseDataModel decodes a JSON document into a DataModel.
func ParseDataModel(data []byte) (DataModel, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing data model: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Bytes serializes the model for save and submit payloads.
func (m DataModel) Bytes() ([]byte, error) {
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("serializing data model: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy. Array and object containers are copied;
// scalars are shared (they are immutable).
func (m DataModel) Clone() DataModel {
	return cloneValue(map[string]any(m)).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
