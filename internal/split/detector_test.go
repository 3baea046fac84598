package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-recon/backend/internal/storage/models"
)

func records(names ...[2]string) []models.RawRecord {
	out := make([]models.RawRecord, len(names))
	for i, n := range names {
		out[i] = models.RawRecord{
			ID:         int64(i + 1),
			Extraction: models.ExtractionResult{Name1: n[0], Name2: n[1]},
		}
	}
	return out
}

func repeat(n int, name [2]string) [][2]string {
	out := make([][2]string, n)
	for i := range out {
		out[i] = name
	}
	return out
}

func TestInspectFlagsTwoDistinctNames(t *testing.T) {
	recs := records(append(
		repeat(4, [2]string{"Mario", "Rossi"}),
		repeat(3, [2]string{"Luigi", "Verdi"})...)...)

	cand, ok := Inspect(models.Identity{ID: 7, Name: "Mario Rossi"}, recs)
	require.True(t, ok)

	require.Len(t, cand.Clusters, 2)
	assert.Equal(t, "mario rossi", cand.Clusters[0].Name, "most frequent name is primary")
	assert.Equal(t, 4, cand.Clusters[0].Occurrences)
	assert.Equal(t, "luigi verdi", cand.Clusters[1].Name)
	assert.GreaterOrEqual(t, cand.Confidence, 0.9, "near-even split scores high")
}

func TestInspectIgnoresUnderAttestedVariants(t *testing.T) {
	recs := records(append(
		repeat(5, [2]string{"Mario", "Rossi"}),
		repeat(2, [2]string{"Luigi", "Verdi"})...)...)

	_, ok := Inspect(models.Identity{ID: 7}, recs)
	assert.False(t, ok, "a variant under 3 occurrences is noise, not a person")
}

func TestInspectMergesNameVariants(t *testing.T) {
	var names [][2]string
	names = append(names, repeat(2, [2]string{"Mario", "Rossi"})...)
	names = append(names, [2]string{"Rossi", "Mario"})   // swapped
	names = append(names, [2]string{"M.", "Rossi"})      // initial
	names = append(names, repeat(3, [2]string{"Luigi", "Verdi"})...)

	cand, ok := Inspect(models.Identity{ID: 7}, records(names...))
	require.True(t, ok)

	require.Len(t, cand.Clusters, 2)
	assert.Equal(t, 4, cand.Clusters[0].Occurrences,
		"swapped order and single initials collapse into one cluster")
}

func TestInspectSingleNameNoCandidate(t *testing.T) {
	recs := records(repeat(10, [2]string{"Mario", "Rossi"})...)
	_, ok := Inspect(models.Identity{ID: 7}, recs)
	assert.False(t, ok)
}

func TestInspectStripsTitles(t *testing.T) {
	var names [][2]string
	names = append(names, repeat(3, [2]string{"Sig. Mario", "Rossi"})...)
	names = append(names, repeat(3, [2]string{"Mario", "Rossi"})...)

	_, ok := Inspect(models.Identity{ID: 7}, records(names...))
	assert.False(t, ok, "a title prefix is not a distinct person")
}

func TestConfidenceSkewedDistributionScoresLower(t *testing.T) {
	even := []Cluster{{Occurrences: 5}, {Occurrences: 5}}
	skewed := []Cluster{{Occurrences: 20}, {Occurrences: 3}}

	assert.Greater(t, confidence(even), confidence(skewed))
	assert.InDelta(t, 1.0, confidence(even), 0.001, "perfectly even two-way split maxes the entropy term")
}

func TestConfidenceExtraClusterBonus(t *testing.T) {
	three := []Cluster{{Occurrences: 4}, {Occurrences: 4}, {Occurrences: 4}}
	conf := confidence(three)
	assert.Equal(t, 1.0, conf, "even three-way split caps at 1.0")
}
