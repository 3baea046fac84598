// Package matcher reconciles extracted recipient data against the
// identity store: candidate gathering, weighted multi-factor scoring,
// optional LLM arbitration below the high-confidence line, and the
// final decision policy.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/domainpattern"
	"github.com/contact-recon/backend/internal/llm"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

type Decision string

const (
	DecisionCreateIdentity   Decision = "create_identity"
	DecisionLinkIdentity     Decision = "link_identity"
	DecisionManualReview     Decision = "manual_review"
	DecisionDuplicateSuspect Decision = "duplicate_suspect"
)

// Factor weights. A candidate's score is the capped sum of every
// factor that fired.
const (
	weightPrimaryEmail   = 1.0
	weightSecondaryEmail = 0.95
	weightDomain         = 0.3
	weightExactName      = 0.4
	weightFuzzyName      = 0.25
	weightConvention     = 0.35
	weightSharedEntity   = 0.15

	fuzzyNameFloor = 0.8

	// arbitrationCandidateCap bounds the candidate list sent to the
	// completion service.
	arbitrationCandidateCap = 20
)

// Candidate is a scored identity with the factors that contributed.
type Candidate struct {
	Identity models.Identity `json:"identity"`
	Score    float64         `json:"score"`
	Factors  []string        `json:"factors"`
}

// Result is the matcher's verdict for one record.
type Result struct {
	Decision   Decision    `json:"decision"`
	Best       *Candidate  `json:"best,omitempty"`
	RunnerUp   *Candidate  `json:"runner_up,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Reasoning  string      `json:"reasoning,omitempty"`
	Arbitrated bool        `json:"arbitrated,omitempty"`
}

type Matcher struct {
	db                *sqlite.Client
	llm               *llm.Client
	arbitrationThresh float64
}

func NewMatcher(db *sqlite.Client, llmClient *llm.Client, arbitrationThreshold float64) *Matcher {
	return &Matcher{
		db:                db,
		llm:               llmClient,
		arbitrationThresh: arbitrationThreshold,
	}
}

// Match gathers, scores and ranks candidate identities for an
// extraction result. pattern may be nil when the domain has no
// analyzed naming convention yet.
func (m *Matcher) Match(ctx context.Context, ex models.ExtractionResult, localPart string, entityIDs []string, pattern *models.DomainPattern) (*Result, error) {
	candidates, err := m.gather(ex, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to gather candidates: %w", err)
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, id := range candidates {
		c := score(id, ex, localPart, entityIDs, pattern)
		if len(c.Factors) > 0 {
			scored = append(scored, c)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) == 0 {
		return &Result{Decision: DecisionCreateIdentity, Reasoning: "no candidate identities"}, nil
	}

	res := &Result{Candidates: scored, Best: &scored[0]}
	if len(scored) > 1 {
		res.RunnerUp = &scored[1]
	}

	if res.Best.Score < m.arbitrationThresh && m.llm != nil {
		m.arbitrate(ctx, ex, res)
	}

	res.Decision = decide(res)

	return res, nil
}

func (m *Matcher) gather(ex models.ExtractionResult, entityIDs []string) ([]models.Identity, error) {
	seen := make(map[int64]bool)
	var out []models.Identity

	add := func(ids ...models.Identity) {
		for _, id := range ids {
			if !seen[id.ID] {
				seen[id.ID] = true
				out = append(out, id)
			}
		}
	}

	if ex.Email != "" {
		byEmail, err := m.db.FindIdentityByEmail(ex.Email)
		if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
			return nil, err
		}
		if byEmail != nil {
			add(*byEmail)
		}
	}

	// Domain membership is meaningless on webmail providers.
	if ex.Domain != "" && !domainpattern.IsShared(ex.Domain) {
		byDomain, err := m.db.ListIdentitiesByDomain(ex.Domain)
		if err != nil {
			return nil, err
		}
		add(byDomain...)
	}

	for _, entityID := range entityIDs {
		byEntity, err := m.db.ListIdentitiesByEntityID(entityID)
		if err != nil {
			return nil, err
		}
		add(byEntity...)
	}

	return out, nil
}

func score(id models.Identity, ex models.ExtractionResult, localPart string, entityIDs []string, pattern *models.DomainPattern) Candidate {
	c := Candidate{Identity: id}
	email := strings.ToLower(ex.Email)

	add := func(weight float64, factor string) {
		c.Score += weight
		c.Factors = append(c.Factors, factor)
	}

	switch {
	case email != "" && email == strings.ToLower(id.PrimaryEmail):
		add(weightPrimaryEmail, "primary_email")
	case email != "" && email == strings.ToLower(id.SecondaryEmail):
		add(weightSecondaryEmail, "secondary_email")
	}

	if ex.Domain != "" && !domainpattern.IsShared(ex.Domain) &&
		(strings.EqualFold(ex.Domain, id.Domain) || strings.EqualFold(ex.Domain, id.SecondaryDomain)) {
		add(weightDomain, "domain")
	}

	if full := fullName(ex.Name1, ex.Name2); full != "" && id.Name != "" {
		if sameName(full, id.Name) {
			add(weightExactName, "exact_name")
		} else if sim := NormalizedSimilarity(full, id.Name); sim >= fuzzyNameFloor {
			add(weightFuzzyName*sim, fmt.Sprintf("fuzzy_name_%.2f", sim))
		}
	}

	if pattern != nil && pattern.Convention != models.ConventionUnknown &&
		domainpattern.MatchesConvention(localPart, pattern.Convention, ex.Name1, ex.Name2) {
		add(weightConvention, "naming_convention")
	}

	if sharesEntity(entityIDs, id.EntityIDs) {
		add(weightSharedEntity, "shared_entity")
	}

	if c.Score > 1 {
		c.Score = 1
	}

	return c
}

// arbitrate asks the completion service to pick among the scored
// candidates; a higher-confidence verdict replaces the heuristic top.
func (m *Matcher) arbitrate(ctx context.Context, ex models.ExtractionResult, res *Result) {
	limit := len(res.Candidates)
	if limit > arbitrationCandidateCap {
		limit = arbitrationCandidateCap
	}

	lines := make([]string, 0, limit)
	byID := make(map[int64]*Candidate, limit)
	for i := 0; i < limit; i++ {
		c := &res.Candidates[i]
		byID[c.Identity.ID] = c
		lines = append(lines, fmt.Sprintf("id=%d name=%q email=%q domain=%q score=%.2f factors=%s",
			c.Identity.ID, c.Identity.Name, c.Identity.PrimaryEmail, c.Identity.Domain,
			c.Score, strings.Join(c.Factors, "+")))
	}

	recipient := fmt.Sprintf("email=%q name1=%q name2=%q domain=%q",
		ex.Email, ex.Name1, ex.Name2, ex.Domain)

	verdict, err := m.llm.ArbitrateMatch(ctx, recipient, lines)
	if err != nil {
		logger.Warn("Match arbitration failed, keeping heuristic ranking",
			zap.String("email", ex.Email), zap.Error(err))
		return
	}

	chosen, ok := byID[verdict.IdentityID]
	if !ok || verdict.Confidence <= res.Best.Score {
		return
	}

	chosen.Score = verdict.Confidence
	res.Best = chosen
	res.Arbitrated = true
	res.Reasoning = verdict.Reasoning

	sort.SliceStable(res.Candidates, func(i, j int) bool { return res.Candidates[i].Score > res.Candidates[j].Score })
	res.Best = &res.Candidates[0]
	if len(res.Candidates) > 1 {
		res.RunnerUp = &res.Candidates[1]
	}
}

func decide(res *Result) Decision {
	top := res.Best.Score

	switch {
	case top >= 0.90:
		return DecisionLinkIdentity
	case top >= 0.70:
		return DecisionManualReview
	case res.RunnerUp != nil && top-res.RunnerUp.Score <= 0.10:
		return DecisionDuplicateSuspect
	case top >= 0.50:
		return DecisionManualReview
	default:
		return DecisionCreateIdentity
	}
}

func fullName(name1, name2 string) string {
	return strings.TrimSpace(strings.TrimSpace(name1) + " " + strings.TrimSpace(name2))
}

func sameName(a, b string) bool {
	return normalizeName(a) == normalizeName(b)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sharesEntity(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
