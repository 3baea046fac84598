package dedupe

import (
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

func seed(t *testing.T, db *sqlite.Client, id models.Identity) int64 {
	t.Helper()
	id.Active = true
	newID, err := db.InsertIdentity(&id)
	require.NoError(t, err)
	return newID
}

func TestScanFindsSamePrimaryEmail(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})
	seed(t, db, models.Identity{Name: "Mario Rosso", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})

	pairs, err := NewDetector(db).Scan()
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	// same primary 0.5 + fuzzy name + same domain 0.1 crosses the
	// reporting threshold
	assert.Contains(t, pairs[0].Signals, "same_primary_email")
	assert.GreaterOrEqual(t, pairs[0].Similarity, ReportThreshold)
}

func TestScanCrossDomainEmailCollision(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario.rossi@beta.com", SecondaryEmail: "mario@acme.it", Domain: "beta.com"})

	pairs, err := NewDetector(db).Scan()
	require.NoError(t, err)
	require.Len(t, pairs, 1, "email collision must be found across domain groups")

	// cross email 0.4 + same name 0.4 = 0.8
	assert.Contains(t, pairs[0].Signals, "cross_email")
	assert.Contains(t, pairs[0].Signals, "same_name")
	assert.InDelta(t, 0.8, pairs[0].Similarity, 0.001)
	assert.Equal(t, NeedsReview, pairs[0].Direction)
}

func TestScanDiscardsWeakPairs(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})
	seed(t, db, models.Identity{Name: "Luigi Verdi", PrimaryEmail: "luigi@acme.it", Domain: "acme.it"})

	pairs, err := NewDetector(db).Scan()
	require.NoError(t, err)
	assert.Empty(t, pairs, "same domain alone (0.1) never reaches the threshold")
}

func TestScanMergeDirectionFavorsCompleteness(t *testing.T) {
	db := newTestDB(t)
	first := seed(t, db, models.Identity{
		Name:           "Mario Rossi",
		PrimaryEmail:   "mario@acme.it",
		SecondaryEmail: "mario.rossi@gmail.com",
		Code:           "MR-001",
		Domain:         "acme.it",
		EntityIDs:      []string{"ent-1"},
	})
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})

	pairs, err := NewDetector(db).Scan()
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	// same primary 0.5 + same name 0.4 + same domain 0.1 = 1.0
	assert.Equal(t, 1.0, pairs[0].Similarity)
	assert.Equal(t, KeepFirst, pairs[0].Direction)
	assert.Equal(t, first, pairs[0].First.ID)
}

func TestScanPairReportedOnce(t *testing.T) {
	db := newTestDB(t)
	// pair discoverable via both the domain group and the email pass
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})
	seed(t, db, models.Identity{Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it"})

	pairs, err := NewDetector(db).Scan()
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}
