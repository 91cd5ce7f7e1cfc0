package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseDataModel(t *testing.T) {
	model, err := ParseDataModel([]byte(`{"name":"Ola","mainGroup":[{"comments":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Ola", model["name"])

	_, err = ParseDataModel([]byte(`not json`))
	assert.Error(t, err)

	empty, err := ParseDataModel([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func Test_DataModel_Clone(t *testing.T) {
	original := DataModel{
		"name": "Ola",
		"mainGroup": []any{
			map[string]any{"comments": "first"},
		},
	}

	clone := original.Clone()
	clone["name"] = "changed"
	clone["mainGroup"].([]any)[0].(map[string]any)["comments"] = "changed"

	assert.Equal(t, "Ola", original["name"])
	assert.Equal(t, "first", original["mainGroup"].([]any)[0].(map[string]any)["comments"])
}

func Test_DataModel_BytesRoundTrip(t *testing.T) {
	model := DataModel{"name": "Ola", "age": float64(42)}

	data, err := model.Bytes()
	require.NoError(t, err)

	back, err := ParseDataModel(data)
	require.NoError(t, err)
	assert.Equal(t, model, back)
}
