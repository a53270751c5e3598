package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONObject(t *testing.T) {
	type answer struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing"`
	}

	tests := []struct {
		name string
		text string
		want answer
	}{
		{"plain", `{"status":"SUFFICIENT","missing":[]}`, answer{Status: "SUFFICIENT", Missing: []string{}}},
		{"fenced", "```json\n{\"status\": \"INSUFFICIENT\", \"missing\": [\"breed\"]}\n```", answer{Status: "INSUFFICIENT", Missing: []string{"breed"}}},
		{"prose around", "Here is the analysis: {\"status\": \"SUFFICIENT\"} hope it helps", answer{Status: "SUFFICIENT"}},
		{"braces in strings", `{"status":"a}b","missing":["{x"]}`, answer{Status: "a}b", Missing: []string{"{x"}}},
		{"trailing comma repaired", `{"status":"SUFFICIENT","missing":["age",],}`, answer{Status: "SUFFICIENT", Missing: []string{"age"}}},
		{"single quotes repaired", `{'status': 'INSUFFICIENT'}`, answer{Status: "INSUFFICIENT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got answer
			require.NoError(t, DecodeJSONObject(tt.text, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONObjectNoObject(t *testing.T) {
	var v map[string]any
	err := DecodeJSONObject("no json here", &v)
	assert.ErrorIs(t, err, ErrNoJSONObject)
}
