// Package extraction turns low-confidence parses into structured
// person data via the text-completion service, with validation and a
// heuristic fallback so extraction never fails a record outright.
package extraction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/llm"
	"github.com/contact-recon/backend/internal/parser"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/pkg/config"
	"github.com/contact-recon/backend/pkg/logger"
)

// fallbackConfidenceCap is applied when the completion service fails
// and the heuristic result must stand in; the record lands in the low
// tier so a human or a later rerun looks at it again.
const fallbackConfidenceCap = 0.5

type Pipeline struct {
	llm              *llm.Client
	escalationThresh float64
	highConf         float64
	mediumConf       float64
	concurrency      int
	pause            time.Duration
}

func NewPipeline(llmClient *llm.Client, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		llm:              llmClient,
		escalationThresh: cfg.EscalationThreshold,
		highConf:         cfg.HighConfidence,
		mediumConf:       cfg.MediumConfidence,
		concurrency:      cfg.BatchConcurrency,
		pause:            time.Duration(cfg.BatchPauseMS) * time.Millisecond,
	}
}

// FromParsed converts a deterministic parse into an extraction result.
func FromParsed(p parser.Recipient) models.ExtractionResult {
	return models.ExtractionResult{
		Name1:      p.GivenName,
		Name2:      p.Surname,
		Genre:      genreFromTitle(p.Title),
		Email:      p.Email,
		Domain:     p.Domain,
		IsPersonal: p.IsPersonal,
		Confidence: p.Confidence,
	}
}

// HeuristicOnly sanitizes the deterministic parse without consulting
// the completion service.
func (p *Pipeline) HeuristicOnly(parsed parser.Recipient) models.ExtractionResult {
	return Sanitize(FromParsed(parsed), parsed.LocalPart, p.highConf, p.mediumConf)
}

// Extract runs LLM extraction for a parsed recipient. A first attempt
// uses the few-shot prompt; if its confidence stays below the
// escalation threshold, a second attempt with extended step-by-step
// reasoning runs and the higher-scoring attempt wins. Service failure
// degrades to the heuristic result with confidence forced low.
func (p *Pipeline) Extract(ctx context.Context, parsed parser.Recipient, conventionHint string) models.ExtractionResult {
	if p.llm == nil || parsed.Email == "" {
		return p.HeuristicOnly(parsed)
	}

	in := llm.ExtractionInput{
		Email:                parsed.Email,
		DisplayName:          parsed.DisplayName,
		Domain:               parsed.Domain,
		DomainConventionHint: conventionHint,
	}

	best, err := p.llm.ExtractRecipient(ctx, in, false)
	if err != nil {
		logger.Warn("Extraction service failed, using heuristic result",
			zap.String("email", parsed.Email), zap.Error(err))
		return p.fallback(parsed, "extraction service unavailable")
	}

	if best.Confidence < p.escalationThresh {
		deep, deepErr := p.llm.ExtractRecipient(ctx, in, true)
		if deepErr != nil {
			logger.Warn("Deep extraction failed, keeping first attempt",
				zap.String("email", parsed.Email), zap.Error(deepErr))
		} else if deep.Confidence > best.Confidence {
			best = deep
		}
	}

	result := models.ExtractionResult{
		Name1:      best.Name1,
		Name2:      best.Name2,
		Email:      parsed.Email,
		Domain:     parsed.Domain,
		IsPersonal: best.IsPersonal,
		Confidence: best.Confidence,
		Reasoning:  best.Reasoning,
	}
	if best.Genre != nil {
		result.Genre = *best.Genre
	}

	return Sanitize(result, parsed.LocalPart, p.highConf, p.mediumConf)
}

func (p *Pipeline) fallback(parsed parser.Recipient, reason string) models.ExtractionResult {
	res := FromParsed(parsed)
	if res.Confidence > fallbackConfidenceCap {
		res.Confidence = fallbackConfidenceCap
	}
	res.Reasoning = reason
	return Sanitize(res, parsed.LocalPart, p.highConf, p.mediumConf)
}

func genreFromTitle(title string) string {
	if title == "" {
		return ""
	}

	first := title
	if idx := indexSpace(title); idx > 0 {
		// compound titles: the last token carries the gendered form
		// ("Prof. Dott.ssa" => Dott.ssa)
		first = title[idx+1:]
	}

	switch first {
	case "Mr.", "Sig.", "Herr", "M.", "Sr.", "Don", "Mister":
		return "Mr."
	case "Mrs.", "Ms.", "Miss", "Sig.ra", "Sig.na", "Frau", "Mme", "Mlle", "Sra.", "Srta.", "Dott.ssa", "Donna":
		return "Ms."
	default:
		return ""
	}
}

func indexSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}
