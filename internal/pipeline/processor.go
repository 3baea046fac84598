// Package pipeline wires the stages together: decode a raw recipient,
// parse it deterministically, escalate weak parses to the extraction
// service, reconcile the result against the identity store, and turn
// the decision into a review-queue proposal. It also drives the batch,
// duplicate-sweep and split-sweep runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/decoder"
	"github.com/contact-recon/backend/internal/dedupe"
	"github.com/contact-recon/backend/internal/domainpattern"
	"github.com/contact-recon/backend/internal/extraction"
	"github.com/contact-recon/backend/internal/matcher"
	"github.com/contact-recon/backend/internal/metrics"
	"github.com/contact-recon/backend/internal/parser"
	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/internal/split"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/config"
	"github.com/contact-recon/backend/pkg/logger"
)

type Processor struct {
	db          *sqlite.Client
	extractor   *extraction.Pipeline
	analyzer    *domainpattern.Analyzer
	matcher     *matcher.Matcher
	queue       *queue.Manager
	dedupe      *dedupe.Detector
	split       *split.Detector
	version     int
	escalation  float64
	concurrency int
	pause       time.Duration
}

func NewProcessor(
	db *sqlite.Client,
	extractor *extraction.Pipeline,
	analyzer *domainpattern.Analyzer,
	m *matcher.Matcher,
	q *queue.Manager,
	cfg config.PipelineConfig,
) *Processor {
	return &Processor{
		db:          db,
		extractor:   extractor,
		analyzer:    analyzer,
		matcher:     m,
		queue:       q,
		dedupe:      dedupe.NewDetector(db),
		split:       split.NewDetector(db),
		version:     cfg.Version,
		escalation:  cfg.EscalationThreshold,
		concurrency: cfg.BatchConcurrency,
		pause:       time.Duration(cfg.BatchPauseMS) * time.Millisecond,
	}
}

// Outcome summarizes one record's trip through the pipeline.
type Outcome struct {
	RecordID   int64                   `json:"record_id"`
	Extraction models.ExtractionResult `json:"extraction"`
	Decision   matcher.Decision        `json:"decision,omitempty"`
	QueueID    *int64                  `json:"queue_id,omitempty"`
	Suppressed bool                    `json:"suppressed,omitempty"`
}

// ProcessRecord runs the full stage sequence for one raw record and
// writes the extraction annotation back, whatever the match outcome.
func (p *Processor) ProcessRecord(ctx context.Context, recordID int64) (*Outcome, error) {
	start := time.Now()
	defer func() { metrics.ExtractionDuration.Observe(time.Since(start).Seconds()) }()

	rec, err := p.db.GetRawRecord(recordID)
	if err != nil {
		metrics.RecordsProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	decoded := decoder.Decode(rec.RawInput)
	parsed := parser.Parse(decoded)

	var pattern *models.DomainPattern
	var hint string
	if parsed.Domain != "" && parsed.IsPersonal {
		if pat, err := p.analyzer.Analyze(ctx, parsed.Domain); err == nil {
			pattern = pat
			if !pat.IsShared && pat.Convention != models.ConventionUnknown {
				hint = string(pat.Convention)
			}
		}
	}

	var ext models.ExtractionResult
	if parsed.Confidence >= p.escalation || !parsed.IsPersonal {
		ext = p.extractor.HeuristicOnly(parsed)
	} else {
		ext = p.extractor.Extract(ctx, parsed, hint)
	}

	if err := p.db.UpdateExtraction(recordID, ext, p.version); err != nil {
		metrics.RecordsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store extraction: %w", err)
	}
	metrics.RecordsProcessed.WithLabelValues("ok").Inc()
	metrics.ExtractionTier.WithLabelValues(string(ext.Status)).Inc()

	out := &Outcome{RecordID: recordID, Extraction: ext}

	// Service addresses and records already linked to an identity
	// never produce proposals.
	if !ext.IsPersonal || ext.Email == "" || rec.IdentityID != nil {
		return out, nil
	}

	match, err := p.matcher.Match(ctx, ext, parsed.LocalPart, rec.ContextIDs, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to match record %d: %w", recordID, err)
	}
	out.Decision = match.Decision
	metrics.MatchDecisions.WithLabelValues(string(match.Decision)).Inc()
	if match.Best != nil {
		metrics.MatchConfidence.Observe(match.Best.Score)
	}

	entry := p.proposalFor(rec, ext, match)
	if entry == nil {
		return out, nil
	}

	qid, err := p.queue.Enqueue(entry)
	switch {
	case errors.Is(err, sqlite.ErrDuplicatePending):
		out.Suppressed = true
	case err != nil:
		return nil, fmt.Errorf("failed to enqueue proposal for record %d: %w", recordID, err)
	default:
		out.QueueID = &qid
	}

	return out, nil
}

// proposalFor translates a match decision into a queue entry. High
// confidence links carry the identity directly; everything needing a
// human lands as link-with-low-confidence or create_user.
func (p *Processor) proposalFor(rec *models.RawRecord, ext models.ExtractionResult, match *matcher.Result) *models.QueueEntry {
	proposed := models.ProposedData{
		Name:         fullName(ext.Name1, ext.Name2),
		PrimaryEmail: ext.Email,
		Domain:       ext.Domain,
		EntityIDs:    rec.ContextIDs,
	}

	entry := &models.QueueEntry{
		SourceRef: rec.ID,
		Proposed:  proposed,
		Reasoning: matchReasoning(match),
	}

	switch match.Decision {
	case matcher.DecisionCreateIdentity:
		entry.QueueType = models.QueueCreateUser
		entry.Confidence = ext.Confidence

	case matcher.DecisionLinkIdentity, matcher.DecisionManualReview, matcher.DecisionDuplicateSuspect:
		entry.QueueType = models.QueueLink
		entry.TargetRef = &match.Best.Identity.ID
		entry.Proposed.IdentityID = &match.Best.Identity.ID
		entry.Confidence = match.Best.Score
		current := proposalFromIdentity(match.Best.Identity)
		entry.Current = &current

	default:
		return nil
	}

	return entry
}

// BatchReport aggregates a batch run. RunID ties the report to the
// run's log lines.
type BatchReport struct {
	RunID      string    `json:"run_id"`
	Processed  int       `json:"processed"`
	Enqueued   int       `json:"enqueued"`
	Suppressed int       `json:"suppressed"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
}

// ProcessBatch runs the pipeline over unprocessed records (or, with
// reprocess, over records annotated by an older pipeline version) with
// bounded parallelism.
func (p *Processor) ProcessBatch(ctx context.Context, limit int, reprocess bool) (*BatchReport, error) {
	records, err := p.db.ListRecordsForProcessing(p.version, limit, reprocess)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	report := &BatchReport{RunID: uuid.New().String()}
	var mu sync.Mutex

	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	for start := 0; start < len(records); start += concurrency {
		end := start + concurrency
		if end > len(records) {
			end = len(records)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(rec models.RawRecord) {
				defer wg.Done()

				out, err := p.ProcessRecord(ctx, rec.ID)

				mu.Lock()
				defer mu.Unlock()
				report.Processed++
				if err != nil {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", rec.ID, err))
					return
				}
				if out.QueueID != nil {
					report.Enqueued++
				}
				if out.Suppressed {
					report.Suppressed++
				}
				report.Outcomes = append(report.Outcomes, *out)
			}(records[i])
		}
		wg.Wait()

		if end < len(records) && p.pause > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	logger.Info("Batch run finished",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed),
		zap.Int("enqueued", report.Enqueued),
		zap.Int("suppressed", report.Suppressed),
		zap.Int("failed", report.Failed))

	return report, nil
}

// SweepReport aggregates a duplicate or split sweep.
type SweepReport struct {
	Candidates int      `json:"candidates"`
	Enqueued   int      `json:"enqueued"`
	Suppressed int      `json:"suppressed"`
	Errors     []string `json:"errors,omitempty"`
}

// SweepDuplicates scans identities for duplicates and enqueues a merge
// proposal per suspected pair.
func (p *Processor) SweepDuplicates(ctx context.Context) (*SweepReport, error) {
	pairs, err := p.dedupe.Scan()
	if err != nil {
		return nil, err
	}

	metrics.DuplicatePairs.Add(float64(len(pairs)))

	report := &SweepReport{Candidates: len(pairs)}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		source, target := pair.Second, pair.First
		if pair.Direction == dedupe.KeepSecond {
			source, target = pair.First, pair.Second
		}

		entry := &models.QueueEntry{
			QueueType:  models.QueueMerge,
			SourceRef:  source.ID,
			TargetRef:  &target.ID,
			Confidence: pair.Similarity,
			Reasoning:  fmt.Sprintf("duplicate signals: %v, direction %s", pair.Signals, pair.Direction),
			Proposed:   proposalFromIdentity(target),
		}
		src := proposalFromIdentity(source)
		entry.Current = &src

		p.enqueueSweep(report, entry)
	}

	return report, nil
}

// SweepSplits scans identities for conflated people and enqueues one
// split proposal per secondary name cluster.
func (p *Processor) SweepSplits(ctx context.Context) (*SweepReport, error) {
	candidates, err := p.split.Scan()
	if err != nil {
		return nil, err
	}

	metrics.SplitCandidates.Add(float64(len(candidates)))

	report := &SweepReport{Candidates: len(candidates)}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		// clusters[0] keeps the identity; every other cluster splits off
		for _, cluster := range cand.Clusters[1:] {
			entry := &models.QueueEntry{
				QueueType:  models.QueueSplit,
				SourceRef:  cand.IdentityID,
				Confidence: cand.Confidence,
				Reasoning: fmt.Sprintf("identity %q also attested as %q (%d records)",
					cand.Identity, cluster.Name, cluster.Occurrences),
				Proposed: models.ProposedData{
					Name:      parser.CapitalizeName(cluster.Name),
					RecordIDs: cluster.RecordIDs,
				},
			}
			p.enqueueSweep(report, entry)
		}
	}

	return report, nil
}

// FullReport is the result of a full pipeline run.
type FullReport struct {
	Batch      *BatchReport `json:"batch"`
	Duplicates *SweepReport `json:"duplicates"`
	Splits     *SweepReport `json:"splits"`
}

// RunFull chains a batch run with the duplicate and split sweeps.
func (p *Processor) RunFull(ctx context.Context, limit int, reprocess bool) (*FullReport, error) {
	batch, err := p.ProcessBatch(ctx, limit, reprocess)
	if err != nil {
		return nil, err
	}

	dupes, err := p.SweepDuplicates(ctx)
	if err != nil {
		return nil, err
	}

	splits, err := p.SweepSplits(ctx)
	if err != nil {
		return nil, err
	}

	return &FullReport{Batch: batch, Duplicates: dupes, Splits: splits}, nil
}

func (p *Processor) enqueueSweep(report *SweepReport, entry *models.QueueEntry) {
	_, err := p.queue.Enqueue(entry)
	switch {
	case errors.Is(err, sqlite.ErrDuplicatePending):
		report.Suppressed++
	case err != nil:
		report.Errors = append(report.Errors, err.Error())
	default:
		report.Enqueued++
	}
}

func proposalFromIdentity(id models.Identity) models.ProposedData {
	return models.ProposedData{
		IdentityID:      &id.ID,
		Name:            id.Name,
		PrimaryEmail:    id.PrimaryEmail,
		SecondaryEmail:  id.SecondaryEmail,
		Code:            id.Code,
		Domain:          id.Domain,
		SecondaryDomain: id.SecondaryDomain,
		EntityIDs:       id.EntityIDs,
	}
}

func matchReasoning(m *matcher.Result) string {
	if m.Reasoning != "" {
		return m.Reasoning
	}
	if m.Best != nil {
		return fmt.Sprintf("decision %s, top score %.2f, factors %v",
			m.Decision, m.Best.Score, m.Best.Factors)
	}
	return string(m.Decision)
}

func fullName(name1, name2 string) string {
	switch {
	case name1 == "":
		return name2
	case name2 == "":
		return name1
	default:
		return name1 + " " + name2
	}
}
