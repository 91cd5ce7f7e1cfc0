package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Severity
		wantErr bool
	}{
		{"error", "error", SevError, false},
		{"warning", "warning", SevWarning, false},
		{"info", "info", SevInfo, false},
		{"informational", "informational", SevInfo, false},
		{"success", "success", SevSuccess, false},
		{"uppercase", "ERROR", SevError, false},
		{"whitespace", "  warning  ", SevWarning, false},
		{"empty", "", SevUnknown, false},
		{"invalid", "fatal", Severity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, err := NewSeverity(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, sev.Equals(tt.want))
			}
		})
	}
}

func Test_SeverityFromWireCode(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		want    Severity
		wantErr bool
	}{
		{"error", 1, SevError, false},
		{"warning", 2, SevWarning, false},
		{"informational", 3, SevInfo, false},
		{"success", 5, SevSuccess, false},
		{"fixed is rejected", 4, Severity{}, true},
		{"zero", 0, Severity{}, true},
		{"out of range", 9, Severity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, err := SeverityFromWireCode(tt.code)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, sev.Equals(tt.want))
			}
		})
	}
}

func Test_Severity_IsHigherOrEqual(t *testing.T) {
	assert.True(t, SevError.IsHigherOrEqual(SevWarning))
	assert.True(t, SevWarning.IsHigherOrEqual(SevWarning))
	assert.False(t, SevInfo.IsHigherOrEqual(SevWarning))
	assert.True(t, SevWarning.IsHigherOrEqual(SevSuccess))
}

func Test_Severity_JSON(t *testing.T) {
	data, err := json.Marshal(SevWarning)
	require.NoError(t, err)
	assert.Equal(t, `"warning"`, string(data))

	var sev Severity
	require.NoError(t, json.Unmarshal([]byte(`"error"`), &sev))
	assert.True(t, sev.Equals(SevError))

	assert.Error(t, json.Unmarshal([]byte(`"fatal"`), &sev))
}
