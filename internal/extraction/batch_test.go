package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-recon/backend/internal/parser"
	"github.com/contact-recon/backend/pkg/config"
)

func newBatchPipeline(pauseMS int) *Pipeline {
	return NewPipeline(nil, config.PipelineConfig{
		EscalationThreshold: 0.70,
		HighConfidence:      0.85,
		MediumConfidence:    0.60,
		BatchConcurrency:    2,
		BatchPauseMS:        pauseMS,
	})
}

func batchItems(inputs ...string) []BatchItem {
	items := make([]BatchItem, len(inputs))
	for i, in := range inputs {
		items[i] = BatchItem{RecordID: int64(i + 1), Parsed: parser.Parse(in)}
	}
	return items
}

func TestExtractBatchPreservesOrder(t *testing.T) {
	p := newBatchPipeline(1)
	items := batchItems(
		"Mario Rossi <mario.rossi@acme.it>",
		"Luigi Verdi <luigi.verdi@acme.it>",
		"Anna Bianchi <anna.bianchi@acme.it>",
		"Paolo Neri <paolo.neri@acme.it>",
		"Sara Russo <sara.russo@acme.it>",
	)

	results := p.ExtractBatch(context.Background(), items)
	require.Len(t, results, len(items))

	for i, r := range results {
		assert.Equal(t, items[i].RecordID, r.RecordID)
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i].Parsed.Email, r.Result.Email)
	}
}

func TestExtractBatchCancelledContext(t *testing.T) {
	p := newBatchPipeline(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.ExtractBatch(ctx, batchItems(
		"Mario Rossi <mario.rossi@acme.it>",
		"Luigi Verdi <luigi.verdi@acme.it>",
	))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestExtractBatchCancelDuringPauseSkipsRemainder(t *testing.T) {
	p := newBatchPipeline(500)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	items := batchItems(
		"Mario Rossi <mario.rossi@acme.it>",
		"Luigi Verdi <luigi.verdi@acme.it>",
		"Anna Bianchi <anna.bianchi@acme.it>",
		"Paolo Neri <paolo.neri@acme.it>",
	)

	results := p.ExtractBatch(ctx, items)
	require.Len(t, results, 4)

	// first chunk ran before the pause, the rest were cut off
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
	assert.ErrorIs(t, results[3].Err, context.Canceled)
}
