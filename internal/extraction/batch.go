package extraction

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/parser"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/pkg/logger"
)

// BatchItem is one record queued for extraction.
type BatchItem struct {
	RecordID       int64
	Parsed         parser.Recipient
	ConventionHint string
}

// BatchResult carries the per-item outcome; Err is set only for
// cancellation, since extraction itself degrades instead of failing.
type BatchResult struct {
	RecordID int64
	Result   models.ExtractionResult
	Err      error
}

// ExtractBatch processes items with bounded parallelism and a short
// pause between batches to respect the completion service's rate
// limits. One item's failure never aborts its siblings.
func (p *Pipeline) ExtractBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	for start := 0; start < len(items); start += concurrency {
		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()

				item := items[idx]
				if err := ctx.Err(); err != nil {
					results[idx] = BatchResult{RecordID: item.RecordID, Err: err}
					return
				}

				results[idx] = BatchResult{
					RecordID: item.RecordID,
					Result:   p.Extract(ctx, item.Parsed, item.ConventionHint),
				}
			}(i)
		}
		wg.Wait()

		if end < len(items) && p.pause > 0 {
			select {
			case <-ctx.Done():
				for i := end; i < len(items); i++ {
					results[i] = BatchResult{RecordID: items[i].RecordID, Err: ctx.Err()}
				}
				return results
			case <-time.After(p.pause):
			}
		}
	}

	logger.Info("Extraction batch finished", zap.Int("items", len(items)))

	return results
}
