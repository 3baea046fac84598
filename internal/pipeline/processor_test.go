package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-recon/backend/internal/domainpattern"
	"github.com/contact-recon/backend/internal/extraction"
	"github.com/contact-recon/backend/internal/matcher"
	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/config"
)

// newProcessor builds a processor backed by an in-memory store and no
// completion service, so every stage runs its deterministic path.
func newProcessor(t *testing.T) (*Processor, *sqlite.Client, *queue.Manager) {
	t.Helper()

	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	pcfg := config.PipelineConfig{
		Version:              1,
		EscalationThreshold:  0.70,
		HighConfidence:       0.85,
		MediumConfidence:     0.60,
		BatchConcurrency:     3,
		ArbitrationThreshold: 0.90,
	}

	cache := domainpattern.NewCache(db, nil, time.Minute)
	analyzer := domainpattern.NewAnalyzer(db, nil, cache)
	extractor := extraction.NewPipeline(nil, pcfg)
	match := matcher.NewMatcher(db, nil, pcfg.ArbitrationThreshold)
	qm := queue.NewManager(db, queue.NewBroker(), config.QueueConfig{BulkApproveFloor: 0.90, RetentionDays: 90})

	return NewProcessor(db, extractor, analyzer, match, qm, pcfg), db, qm
}

func seedRecord(t *testing.T, db *sqlite.Client, raw string) int64 {
	t.Helper()
	id, err := db.InsertRawRecord(&models.RawRecord{RawInput: raw})
	require.NoError(t, err)
	return id
}

func TestProcessRecordCreatesProposalForUnknownPerson(t *testing.T) {
	p, db, _ := newProcessor(t)
	recID := seedRecord(t, db, `"Mario Rossi" <mario.rossi@acme.it>`)

	out, err := p.ProcessRecord(context.Background(), recID)
	require.NoError(t, err)

	assert.Equal(t, matcher.DecisionCreateIdentity, out.Decision)
	require.NotNil(t, out.QueueID)

	entry, err := db.GetQueueEntry(*out.QueueID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueCreateUser, entry.QueueType)
	assert.Equal(t, "Mario Rossi", entry.Proposed.Name)
	assert.Equal(t, "mario.rossi@acme.it", entry.Proposed.PrimaryEmail)

	rec, err := db.GetRawRecord(recID)
	require.NoError(t, err)
	assert.Equal(t, "mario.rossi@acme.it", rec.Extraction.Email)
	assert.Equal(t, 1, rec.PipelineVersion)
}

func TestProcessRecordLinksKnownEmail(t *testing.T) {
	p, db, _ := newProcessor(t)

	identID, err := db.InsertIdentity(&models.Identity{
		Name:         "Mario Rossi",
		PrimaryEmail: "mario.rossi@acme.it",
		Domain:       "acme.it",
		Active:       true,
	})
	require.NoError(t, err)

	recID := seedRecord(t, db, `"Mario Rossi" <mario.rossi@acme.it>`)

	out, err := p.ProcessRecord(context.Background(), recID)
	require.NoError(t, err)

	assert.Equal(t, matcher.DecisionLinkIdentity, out.Decision)
	require.NotNil(t, out.QueueID)

	entry, err := db.GetQueueEntry(*out.QueueID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueLink, entry.QueueType)
	require.NotNil(t, entry.TargetRef)
	assert.Equal(t, identID, *entry.TargetRef)
	require.NotNil(t, entry.Current, "link proposals carry the current identity for the reviewer")
}

func TestProcessRecordServiceAddressNoProposal(t *testing.T) {
	p, db, _ := newProcessor(t)
	recID := seedRecord(t, db, "noreply@acme.it")

	out, err := p.ProcessRecord(context.Background(), recID)
	require.NoError(t, err)

	assert.Nil(t, out.QueueID)
	assert.Equal(t, models.ExtractionNotApplicable, out.Extraction.Status)
}

func TestProcessRecordSuppressedWhenPending(t *testing.T) {
	p, db, _ := newProcessor(t)
	recID := seedRecord(t, db, `"Mario Rossi" <mario.rossi@acme.it>`)

	_, err := p.ProcessRecord(context.Background(), recID)
	require.NoError(t, err)

	out, err := p.ProcessRecord(context.Background(), recID)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Nil(t, out.QueueID)
}

func TestProcessBatch(t *testing.T) {
	p, db, _ := newProcessor(t)
	seedRecord(t, db, `"Mario Rossi" <mario.rossi@acme.it>`)
	seedRecord(t, db, `"Luigi Verdi" <luigi.verdi@beta.com>`)
	seedRecord(t, db, "info@acme.it")

	report, err := p.ProcessBatch(context.Background(), 10, false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Enqueued, "the service address produces no proposal")
	assert.Zero(t, report.Failed)

	// all records now carry the current pipeline version
	again, err := p.ProcessBatch(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}

func TestSweepDuplicatesEnqueuesMerge(t *testing.T) {
	p, db, _ := newProcessor(t)

	_, err := db.InsertIdentity(&models.Identity{
		Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it",
		SecondaryEmail: "mario.rossi@gmail.com", Active: true,
	})
	require.NoError(t, err)
	_, err = db.InsertIdentity(&models.Identity{
		Name: "Mario Rossi", PrimaryEmail: "mario@acme.it", Domain: "acme.it", Active: true,
	})
	require.NoError(t, err)

	report, err := p.SweepDuplicates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Enqueued)

	entries, err := db.ListQueueEntries(models.QueueFilter{QueueType: models.QueueMerge})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].TargetRef)
}

func TestSweepSplitsEnqueuesSecondaryClusters(t *testing.T) {
	p, db, _ := newProcessor(t)

	identID, err := db.InsertIdentity(&models.Identity{
		Name: "Mario Rossi", PrimaryEmail: "shared@acme.it", Active: true,
	})
	require.NoError(t, err)

	addLinked := func(n int, name1, name2 string) {
		for i := 0; i < n; i++ {
			recID := seedRecord(t, db, name1+" "+name2+" <shared@acme.it>")
			require.NoError(t, db.UpdateExtraction(recID, models.ExtractionResult{
				Name1: name1, Name2: name2, Email: "shared@acme.it", IsPersonal: true,
			}, 1))
			require.NoError(t, db.ApplyLink(recID, identID))
		}
	}
	addLinked(4, "Mario", "Rossi")
	addLinked(3, "Luigi", "Verdi")

	report, err := p.SweepSplits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Enqueued)

	entries, err := db.ListQueueEntries(models.QueueFilter{QueueType: models.QueueSplit})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, identID, entries[0].SourceRef)
	assert.Equal(t, "Luigi Verdi", entries[0].Proposed.Name)
	assert.Len(t, entries[0].Proposed.RecordIDs, 3)
}
