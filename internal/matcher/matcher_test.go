package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
)

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()
	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func seedIdentity(t *testing.T, db *sqlite.Client, id models.Identity) int64 {
	t.Helper()
	id.Active = true
	newID, err := db.InsertIdentity(&id)
	require.NoError(t, err)
	return newID
}

func TestNormalizedSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"mario rossi", "mario rossi", 1.0},
		{"Mario Rossi", "mario rossi", 1.0},
		{"", "", 0.0},
		{"mario", "", 0.0},
		{"abcd", "wxyz", 0.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizedSimilarity(tt.a, tt.b), 0.001, "%q vs %q", tt.a, tt.b)
	}

	// one substitution over 11 runes
	sim := NormalizedSimilarity("mario rossi", "maria rossi")
	assert.InDelta(t, 1.0-1.0/11.0, sim, 0.001)
}

func TestMatchExactEmailLinks(t *testing.T) {
	db := newTestDB(t)
	id := seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "mario.rossi@acme.it",
		Domain:       "acme.it",
	})

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Name1:  "Mario",
		Name2:  "Rossi",
		Email:  "mario.rossi@acme.it",
		Domain: "acme.it",
	}, "mario.rossi", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DecisionLinkIdentity, res.Decision)
	require.NotNil(t, res.Best)
	assert.Equal(t, id, res.Best.Identity.ID)
	assert.Equal(t, 1.0, res.Best.Score)
	assert.Contains(t, res.Best.Factors, "primary_email")
}

func TestMatchSecondaryEmail(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, models.Identity{
		Name:           "Mario Rossi",
		PrimaryEmail:   "m.rossi@acme.it",
		SecondaryEmail: "mario@gmail.com",
		Domain:         "acme.it",
	})

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Email:  "mario@gmail.com",
		Domain: "gmail.com",
	}, "mario", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DecisionLinkIdentity, res.Decision)
	assert.Contains(t, res.Best.Factors, "secondary_email")
	assert.InDelta(t, 0.95, res.Best.Score, 0.001)
}

func TestMatchNoCandidatesCreates(t *testing.T) {
	db := newTestDB(t)

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Email:  "nobody@nowhere.it",
		Domain: "nowhere.it",
	}, "nobody", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DecisionCreateIdentity, res.Decision)
	assert.Nil(t, res.Best)
}

func TestMatchSharedDomainSkipsMembership(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "mario.rossi@gmail.com",
		Domain:       "gmail.com",
	})

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Name1:  "Luigi",
		Name2:  "Verdi",
		Email:  "luigi.verdi@gmail.com",
		Domain: "gmail.com",
	}, "luigi.verdi", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DecisionCreateIdentity, res.Decision,
		"webmail neighbors must not surface as candidates")
}

func TestMatchDomainAndNameGoesToReview(t *testing.T) {
	db := newTestDB(t)
	id := seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "m.rossi@acme.it",
		Domain:       "acme.it",
	})

	m := NewMatcher(db, nil, 0.90)
	// different address, same corporate domain, exact name: 0.3 + 0.4
	// plus convention match 0.35 = capped but here no pattern given
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Name1:  "Mario",
		Name2:  "Rossi",
		Email:  "mario.rossi@acme.it.invalid",
		Domain: "acme.it",
	}, "mario.rossi", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DecisionManualReview, res.Decision)
	assert.Equal(t, id, res.Best.Identity.ID)
	assert.InDelta(t, 0.7, res.Best.Score, 0.001)
}

func TestMatchConventionFactor(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "old.alias@acme.it",
		Domain:       "acme.it",
	})

	pattern := &models.DomainPattern{Domain: "acme.it", Convention: models.ConventionFirstLast}

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Name1:  "Mario",
		Name2:  "Rossi",
		Email:  "mario.rossi@acme.it",
		Domain: "acme.it",
	}, "mario.rossi", nil, pattern)
	require.NoError(t, err)

	// domain 0.3 + exact name 0.4 + convention 0.35, capped at 1.0
	assert.Equal(t, 1.0, res.Best.Score)
	assert.Contains(t, res.Best.Factors, "naming_convention")
	assert.Equal(t, DecisionLinkIdentity, res.Decision)
}

func TestMatchDuplicateSuspectOnCloseRunnerUp(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "m.rossi@acme.it",
		Domain:       "acme.it",
	})
	seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "mrossi2@acme.it",
		Domain:       "acme.it",
	})

	m := NewMatcher(db, nil, 0.90)
	// both candidates score domain 0.3 + fuzzy-ish name, landing
	// below 0.70 and within 0.10 of each other
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Name1:  "Maria",
		Name2:  "Rossi",
		Email:  "maria@acme.it",
		Domain: "acme.it",
	}, "maria", nil, nil)
	require.NoError(t, err)

	require.NotNil(t, res.RunnerUp)
	assert.Equal(t, DecisionDuplicateSuspect, res.Decision)
}

func TestMatchSharedEntityFactor(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "m.rossi@acme.it",
		Domain:       "acme.it",
		EntityIDs:    []string{"ent-42"},
	})

	m := NewMatcher(db, nil, 0.90)
	res, err := m.Match(context.Background(), models.ExtractionResult{
		Email:  "unknown@elsewhere.it",
		Domain: "elsewhere.it",
	}, "unknown", []string{"ent-42"}, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Best)
	assert.Contains(t, res.Best.Factors, "shared_entity")
	assert.InDelta(t, 0.15, res.Best.Score, 0.001)
	assert.Equal(t, DecisionCreateIdentity, res.Decision)
}
