// Package domainpattern infers the email naming convention an
// organization uses from the identities already known at its domain.
package domainpattern

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/llm"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

// sharedDomains are public webmail providers; no organization
// convention exists there and inference is skipped outright.
var sharedDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true,
	"yahoo.it": true, "yahoo.fr": true, "yahoo.de": true, "yahoo.es": true,
	"hotmail.com": true, "hotmail.it": true, "hotmail.fr": true,
	"outlook.com": true, "outlook.it": true, "live.com": true,
	"live.it": true, "msn.com": true, "aol.com": true, "icloud.com": true,
	"me.com": true, "libero.it": true, "tiscali.it": true, "alice.it": true,
	"virgilio.it": true, "tin.it": true, "fastwebnet.it": true,
	"email.it": true, "poste.it": true, "protonmail.com": true,
	"proton.me": true, "gmx.de": true, "gmx.net": true, "web.de": true,
	"t-online.de": true, "free.fr": true, "orange.fr": true,
	"wanadoo.fr": true, "laposte.net": true, "yandex.ru": true,
	"mail.ru": true, "163.com": true, "126.com": true, "qq.com": true,
}

// minSampleSize is the known-identity count below which the heuristic
// alone is not trusted and the LLM is consulted.
const minSampleSize = 3

const llmSampleCap = 30

type Analyzer struct {
	db    *sqlite.Client
	llm   *llm.Client
	cache *Cache
}

func NewAnalyzer(db *sqlite.Client, llmClient *llm.Client, cache *Cache) *Analyzer {
	return &Analyzer{db: db, llm: llmClient, cache: cache}
}

// IsShared reports whether a domain is a public webmail provider.
func IsShared(domain string) bool {
	return sharedDomains[strings.ToLower(domain)]
}

// Analyze returns the naming convention for a domain, reading through
// the cache tiers and computing on a full miss.
func (a *Analyzer) Analyze(ctx context.Context, domain string) (*models.DomainPattern, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("empty domain")
	}

	if IsShared(domain) {
		return &models.DomainPattern{
			Domain:     domain,
			Convention: models.ConventionUnknown,
			Confidence: 1.0,
			SampleSize: 0,
			IsShared:   true,
		}, nil
	}

	if p := a.cache.Get(ctx, domain); p != nil {
		return p, nil
	}

	return a.compute(ctx, domain)
}

// Refresh invalidates the cached pattern and recomputes it.
func (a *Analyzer) Refresh(ctx context.Context, domain string) (*models.DomainPattern, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if IsShared(domain) {
		return a.Analyze(ctx, domain)
	}

	a.cache.Invalidate(ctx, domain)
	return a.compute(ctx, domain)
}

func (a *Analyzer) compute(ctx context.Context, domain string) (*models.DomainPattern, error) {
	identities, err := a.db.ListIdentitiesByDomain(domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities for %s: %w", domain, err)
	}

	pattern := heuristicAnalysis(domain, identities)

	if len(identities) < minSampleSize || pattern.Confidence < 0.6 {
		if llmPattern := a.llmAnalysis(ctx, domain, identities); llmPattern != nil &&
			llmPattern.Confidence > pattern.Confidence {
			llmPattern.SampleSize = pattern.SampleSize
			pattern = *llmPattern
		}
	}

	var entityIDs []string
	for _, ident := range identities {
		entityIDs = append(entityIDs, ident.EntityIDs...)
	}
	pattern.EntityIDs = dedupStrings(entityIDs)

	a.cache.Put(ctx, pattern)

	logger.Info("Domain pattern computed",
		zap.String("domain", domain),
		zap.String("convention", string(pattern.Convention)),
		zap.Float64("confidence", pattern.Confidence),
		zap.Int("sample_size", pattern.SampleSize),
	)

	return &pattern, nil
}

// heuristicAnalysis classifies each identity's email against the six
// convention templates; the majority template wins and its fraction of
// the classified samples is the confidence.
func heuristicAnalysis(domain string, identities []models.Identity) models.DomainPattern {
	counts := make(map[models.DomainConvention]int)
	classified := 0

	for _, ident := range identities {
		email := ident.PrimaryEmail
		if !strings.HasSuffix(email, "@"+domain) {
			email = ident.SecondaryEmail
		}
		at := strings.Index(email, "@")
		if at <= 0 {
			continue
		}

		conv := ClassifyLocalPart(email[:at], ident.Name)
		counts[conv]++
		classified++
	}

	pattern := models.DomainPattern{
		Domain:     domain,
		Convention: models.ConventionUnknown,
		SampleSize: classified,
	}

	if classified == 0 {
		return pattern
	}

	best := models.ConventionUnknown
	bestCount := 0
	for conv, n := range counts {
		if conv == models.ConventionUnknown {
			continue
		}
		if n > bestCount {
			best, bestCount = conv, n
		}
	}

	if bestCount > 0 {
		pattern.Convention = best
		pattern.Confidence = float64(bestCount) / float64(classified)
	}

	return pattern
}

// ClassifyLocalPart matches a local part against the convention
// templates given the identity's full name. Separators -, _ and .
// are equivalent.
func ClassifyLocalPart(localPart, fullName string) models.DomainConvention {
	lp := strings.ToLower(localPart)
	lp = strings.NewReplacer("-", ".", "_", ".").Replace(lp)

	tokens := strings.Fields(strings.ToLower(fullName))
	if len(tokens) < 1 {
		return models.ConventionUnknown
	}

	first := tokens[0]
	last := first
	if len(tokens) > 1 {
		last = tokens[len(tokens)-1]
	}

	switch {
	case len(tokens) > 1 && lp == first+"."+last:
		return models.ConventionFirstLast
	case len(tokens) > 1 && lp == last+"."+first:
		return models.ConventionLastFirst
	case len(tokens) > 1 && lp == first[:1]+"."+last:
		return models.ConventionFLast
	case len(tokens) > 1 && lp == first[:1]+last:
		return models.ConventionFlast
	case lp == first:
		return models.ConventionFirst
	default:
		return models.ConventionUnknown
	}
}

// MatchesConvention reports whether a local part is consistent with a
// known convention for the given names. Used by the matcher as a
// scoring factor.
func MatchesConvention(localPart string, convention models.DomainConvention, given, surname string) bool {
	if convention == models.ConventionUnknown || given == "" {
		return false
	}

	lp := strings.ToLower(localPart)
	lp = strings.NewReplacer("-", ".", "_", ".").Replace(lp)
	first := strings.ToLower(strings.TrimSuffix(given, "."))
	last := strings.ToLower(surname)

	switch convention {
	case models.ConventionFirstLast:
		return last != "" && lp == first+"."+last
	case models.ConventionLastFirst:
		return last != "" && lp == last+"."+first
	case models.ConventionFLast:
		return last != "" && lp == first[:1]+"."+last
	case models.ConventionFlast:
		return last != "" && lp == first[:1]+last
	case models.ConventionFirst:
		return lp == first
	default:
		return false
	}
}

func (a *Analyzer) llmAnalysis(ctx context.Context, domain string, identities []models.Identity) *models.DomainPattern {
	if a.llm == nil {
		return nil
	}

	var samples []string
	for _, ident := range identities {
		if len(samples) >= llmSampleCap {
			break
		}
		if ident.PrimaryEmail == "" || ident.Name == "" {
			continue
		}
		samples = append(samples, fmt.Sprintf("%s => %s", ident.PrimaryEmail, ident.Name))
	}
	if len(samples) == 0 {
		return nil
	}

	analysis, err := a.llm.AnalyzeDomain(ctx, domain, samples)
	if err != nil {
		logger.Warn("LLM domain analysis failed",
			zap.String("domain", domain), zap.Error(err))
		return nil
	}

	conv := models.DomainConvention(analysis.Convention)
	switch conv {
	case models.ConventionFirstLast, models.ConventionFLast, models.ConventionFlast,
		models.ConventionFirst, models.ConventionLastFirst, models.ConventionUnknown:
	default:
		conv = models.ConventionUnknown
	}

	confidence := analysis.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.DomainPattern{
		Domain:      domain,
		Convention:  conv,
		Confidence:  confidence,
		CompanyName: analysis.CompanyName,
	}
}

func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
