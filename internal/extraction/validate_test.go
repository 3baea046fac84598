package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contact-recon/backend/internal/storage/models"
)

func TestSanitizeRejectsJunkNames(t *testing.T) {
	tests := []struct {
		name    string
		in      models.ExtractionResult
		local   string
		want1   string
		want2   string
		harmful string
	}{
		{
			name:    "name containing address",
			in:      models.ExtractionResult{Name1: "mario@rossi.it", Name2: "Rossi", IsPersonal: true, Confidence: 0.9},
			local:   "mario.rossi",
			want1:   "",
			want2:   "Rossi",
			harmful: "name contained @",
		},
		{
			name:    "service token as name",
			in:      models.ExtractionResult{Name1: "Info", Name2: "Support", IsPersonal: true, Confidence: 0.9},
			local:   "mario.rossi",
			want1:   "",
			want2:   "",
			harmful: "service token",
		},
		{
			name:    "numeric name",
			in:      models.ExtractionResult{Name1: "12345", Name2: "Rossi", IsPersonal: true, Confidence: 0.9},
			local:   "mario.rossi",
			want1:   "",
			want2:   "Rossi",
			harmful: "numeric",
		},
		{
			name:    "url as name",
			in:      models.ExtractionResult{Name1: "www.example.com", Name2: "Rossi", IsPersonal: true, Confidence: 0.9},
			local:   "mario.rossi",
			want1:   "",
			want2:   "Rossi",
			harmful: "URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, tt.local, 0.85, 0.60)
			assert.Equal(t, tt.want1, got.Name1)
			assert.Equal(t, tt.want2, got.Name2)
			assert.Contains(t, got.Reasoning, tt.harmful)
		})
	}
}

func TestSanitizeStatusTiers(t *testing.T) {
	tests := []struct {
		name string
		in   models.ExtractionResult
		want models.ExtractionStatus
	}{
		{
			name: "both names high confidence",
			in:   models.ExtractionResult{Name1: "Mario", Name2: "Rossi", IsPersonal: true, Confidence: 0.92},
			want: models.ExtractionHigh,
		},
		{
			name: "one name never reaches high",
			in:   models.ExtractionResult{Name1: "Mario", IsPersonal: true, Confidence: 0.95},
			want: models.ExtractionMedium,
		},
		{
			name: "medium confidence",
			in:   models.ExtractionResult{Name1: "Mario", Name2: "Rossi", IsPersonal: true, Confidence: 0.70},
			want: models.ExtractionMedium,
		},
		{
			name: "low confidence",
			in:   models.ExtractionResult{Name1: "Mario", Name2: "Rossi", IsPersonal: true, Confidence: 0.40},
			want: models.ExtractionLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, "mario.rossi", 0.85, 0.60)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestSanitizeServiceAddress(t *testing.T) {
	in := models.ExtractionResult{Name1: "Mario", Name2: "Rossi", Genre: "Mr.", IsPersonal: true, Confidence: 0.9}
	got := Sanitize(in, "noreply-a1b2c3d4e5f6a7b8c9", 0.85, 0.60)

	assert.Equal(t, models.ExtractionNotApplicable, got.Status)
	assert.False(t, got.IsPersonal)
	assert.Empty(t, got.Name1)
	assert.Empty(t, got.Name2)
	assert.Empty(t, got.Genre)
	assert.Equal(t, "noreply~", got.RoleLabel)
}

func TestSanitizeConfidenceClampAndGenre(t *testing.T) {
	in := models.ExtractionResult{Name1: "Mario", Name2: "Rossi", Genre: "male", IsPersonal: true, Confidence: 1.4}
	got := Sanitize(in, "mario.rossi", 0.85, 0.60)

	assert.Equal(t, 1.0, got.Confidence)
	assert.Empty(t, got.Genre, "free-form genre values are dropped")

	in.Confidence = -0.2
	got = Sanitize(in, "mario.rossi", 0.85, 0.60)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestInitialsFallBackToLocalPart(t *testing.T) {
	in := models.ExtractionResult{IsPersonal: true, Confidence: 0.3}
	got := Sanitize(in, "mario.rossi", 0.85, 0.60)

	assert.Equal(t, "M.", got.Name1Initial)
	assert.Equal(t, "R.", got.Name2Initial)
}

func TestSimplifyLocalPart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"noreply", "noreply"},
		{"orders-2024", "orders~"},
		{"invoice_20240115", "invoice~"},
		{"bounce-550e8400-e29b-41d4-a716-446655440000", "bounce~"},
		{"notifications.4f3a2b1c0d9e", "notifications~"},
		{"support-42", "support~"},
		{"a1", "a1"},
		{"x-123456", "x-123456"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SimplifyLocalPart(tt.in), "input %q", tt.in)
	}
}

func TestGenreFromTitle(t *testing.T) {
	assert.Equal(t, "Mr.", genreFromTitle("Sig."))
	assert.Equal(t, "Ms.", genreFromTitle("Dott.ssa"))
	assert.Equal(t, "Ms.", genreFromTitle("Prof. Dott.ssa"))
	assert.Equal(t, "", genreFromTitle("Prof."))
	assert.Equal(t, "", genreFromTitle(""))
}
