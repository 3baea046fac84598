package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"name1": "Marco", "name2": "Rossi", "genre": "Mr.", "is_personal": true, "confidence": 0.9}`,
		},
		{
			name:    "fenced json block",
			content: "```json\n{\"name1\": \"Marco\", \"name2\": \"Rossi\", \"genre\": null, \"is_personal\": true, \"confidence\": 0.9}\n```",
		},
		{
			name:    "prose around object",
			content: "Here is the result:\n{\"name1\": \"Marco\", \"name2\": \"Rossi\", \"genre\": null, \"is_personal\": true, \"confidence\": 0.9}\nHope this helps.",
		},
		{
			name:    "no json at all",
			content: "I cannot determine the name.",
			wantErr: true,
		},
		{
			name:    "broken json",
			content: `{"name1": "Marco",`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out RecipientExtraction
			err := decodeJSON(tt.content, &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Marco", out.Name1)
			assert.Equal(t, "Rossi", out.Name2)
		})
	}
}

func TestDecodeJSONNullGenre(t *testing.T) {
	var out RecipientExtraction
	err := decodeJSON(`{"name1": "Sasha", "name2": "Petrov", "genre": null, "is_personal": true, "confidence": 0.8}`, &out)
	require.NoError(t, err)
	assert.Nil(t, out.Genre)
}

// Deep-reasoning responses carry step-by-step prose before the object.
func TestDecodeJSONReasoningPreamble(t *testing.T) {
	content := `1. The domain is Italian.
2. Rossi is the family name.
3. Sig. maps to Mr.
{"name1": "Marco", "name2": "Rossi", "genre": "Mr.", "is_personal": true, "confidence": 0.95, "reasoning": "Italian honorific"}`

	var out RecipientExtraction
	err := decodeJSON(content, &out)
	require.NoError(t, err)
	require.NotNil(t, out.Genre)
	assert.Equal(t, "Mr.", *out.Genre)
	assert.Equal(t, 0.95, out.Confidence)
}
