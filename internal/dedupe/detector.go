// Package dedupe scans the identity store for probable duplicate
// identities. Comparisons are bounded by grouping on domain, with a
// global pass over exact email collisions so cross-domain duplicates
// are still caught.
package dedupe

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/matcher"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

const (
	weightSameEmail    = 0.5
	weightCrossEmail   = 0.4
	weightSameName     = 0.4
	weightFuzzyName    = 0.3
	weightSameDomain   = 0.1
	fuzzyNameFloor     = 0.85
	mergeDirectionLine = 0.9
)

// ReportThreshold discards weak pairs before they reach the queue.
const ReportThreshold = 0.7

// MergeDirection says which identity survives a proposed merge.
type MergeDirection string

const (
	KeepFirst   MergeDirection = "keep_first"
	KeepSecond  MergeDirection = "keep_second"
	NeedsReview MergeDirection = "needs_review"
)

// Pair is one suspected duplicate: First/Second are ordered by ID so a
// pair found through several signals dedups to one report.
type Pair struct {
	First      models.Identity `json:"first"`
	Second     models.Identity `json:"second"`
	Similarity float64         `json:"similarity"`
	Signals    []string        `json:"signals"`
	Direction  MergeDirection  `json:"direction"`
}

type Detector struct {
	db *sqlite.Client
}

func NewDetector(db *sqlite.Client) *Detector {
	return &Detector{db: db}
}

// Scan compares active identities pairwise within each domain group
// and across exact email collisions, returning pairs at or above the
// reporting threshold.
func (d *Detector) Scan() ([]Pair, error) {
	identities, err := d.db.ListActiveIdentities()
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	seen := make(map[[2]int64]bool)
	var pairs []Pair

	consider := func(a, b models.Identity) {
		if a.ID == b.ID {
			return
		}
		if a.ID > b.ID {
			a, b = b, a
		}
		key := [2]int64{a.ID, b.ID}
		if seen[key] {
			return
		}
		seen[key] = true

		if p, ok := compare(a, b); ok {
			pairs = append(pairs, p)
		}
	}

	byDomain := make(map[string][]models.Identity)
	for _, id := range identities {
		if id.Domain != "" {
			byDomain[strings.ToLower(id.Domain)] = append(byDomain[strings.ToLower(id.Domain)], id)
		}
	}
	for _, group := range byDomain {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				consider(group[i], group[j])
			}
		}
	}

	// Global pass: identities sharing any exact email, regardless of
	// domain grouping.
	byEmail := make(map[string][]models.Identity)
	for _, id := range identities {
		for _, e := range []string{id.PrimaryEmail, id.SecondaryEmail} {
			if e != "" {
				byEmail[strings.ToLower(e)] = append(byEmail[strings.ToLower(e)], id)
			}
		}
	}
	for _, group := range byEmail {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				consider(group[i], group[j])
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Similarity > pairs[j].Similarity })

	logger.Info("Duplicate scan finished",
		zap.Int("identities", len(identities)), zap.Int("pairs", len(pairs)))

	return pairs, nil
}

func compare(a, b models.Identity) (Pair, bool) {
	p := Pair{First: a, Second: b}

	add := func(weight float64, signal string) {
		p.Similarity += weight
		p.Signals = append(p.Signals, signal)
	}

	aPrim := strings.ToLower(a.PrimaryEmail)
	bPrim := strings.ToLower(b.PrimaryEmail)
	aSec := strings.ToLower(a.SecondaryEmail)
	bSec := strings.ToLower(b.SecondaryEmail)

	switch {
	case aPrim != "" && aPrim == bPrim:
		add(weightSameEmail, "same_primary_email")
	case aPrim != "" && aPrim == bSec, bPrim != "" && bPrim == aSec:
		add(weightCrossEmail, "cross_email")
	}

	aName := normalizeName(a.Name)
	bName := normalizeName(b.Name)
	if aName != "" && bName != "" {
		if aName == bName {
			add(weightSameName, "same_name")
		} else if sim := matcher.NormalizedSimilarity(aName, bName); sim >= fuzzyNameFloor {
			add(weightFuzzyName*sim, fmt.Sprintf("fuzzy_name_%.2f", sim))
		}
	}

	if a.Domain != "" && strings.EqualFold(a.Domain, b.Domain) {
		add(weightSameDomain, "same_domain")
	}

	if p.Similarity > 1 {
		p.Similarity = 1
	}
	if p.Similarity < ReportThreshold {
		return Pair{}, false
	}

	p.Direction = mergeDirection(a, b, p.Similarity)

	return p, true
}

// mergeDirection keeps the more complete identity when similarity is
// high enough to merge automatically on approval; ties and borderline
// pairs go to human review.
func mergeDirection(a, b models.Identity, similarity float64) MergeDirection {
	if similarity < mergeDirectionLine {
		return NeedsReview
	}

	ca, cb := completeness(a), completeness(b)
	switch {
	case ca > cb:
		return KeepFirst
	case cb > ca:
		return KeepSecond
	default:
		return NeedsReview
	}
}

// completeness weights fields by how hard they are to recover after a
// bad merge.
func completeness(id models.Identity) int {
	score := 0
	if id.Name != "" {
		score += 3
	}
	if id.PrimaryEmail != "" {
		score += 3
	}
	if id.SecondaryEmail != "" {
		score += 2
	}
	if id.Code != "" {
		score += 2
	}
	if id.Domain != "" {
		score++
	}
	if id.SecondaryDomain != "" {
		score++
	}
	score += 2 * len(id.EntityIDs)
	return score
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
