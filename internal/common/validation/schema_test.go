package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "properties": {
    "sessionId": {"type": "string", "minLength": 1}
  },
  "required": ["sessionId"]
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name      string
		document  string
		valid     bool
		errorPath string
	}{
		{name: "valid", document: `{"sessionId":"abc"}`, valid: true},
		{name: "missing field", document: `{}`, valid: false, errorPath: "(root)"},
		{name: "empty id", document: `{"sessionId":""}`, valid: false, errorPath: "sessionId"},
		{name: "wrong type", document: `{"sessionId":42}`, valid: false, errorPath: "sessionId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ValidateJSON(tt.document)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.True(t, result.HasErrors(tt.errorPath), result.GetErrorMessages())
				assert.NotEmpty(t, result.GetErrorMessages())
			}
		})
	}
}

func TestSchema_ValidateGoValue(t *testing.T) {
	s := MustCompile(testSchema)
	result, err := s.Validate(map[string]interface{}{"sessionId": "s-1"})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestSchema_ValidateJSON_Malformed(t *testing.T) {
	s := MustCompile(testSchema)
	_, err := s.ValidateJSON(`{not json`)
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
