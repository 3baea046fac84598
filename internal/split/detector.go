// Package split finds identities that conflate several distinct
// people. An identity whose raw records carry two or more well-
// attested, mutually dissimilar display names is proposed for a split:
// the most frequent name keeps the identity, every other cluster
// becomes a new one.
package split

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

// minOccurrences is how many records must carry a name variant before
// it counts as evidence of a separate person.
const minOccurrences = 3

const (
	baseConfidence    = 0.5
	extraClusterBonus = 0.05
)

// Cluster is one attested name with the records that carry it.
type Cluster struct {
	Name        string  `json:"name"`
	Occurrences int     `json:"occurrences"`
	RecordIDs   []int64 `json:"record_ids"`
}

// Candidate is one identity suspected of conflating multiple people.
// Clusters are ordered by occurrence count; the first is the primary
// name that keeps the original identity.
type Candidate struct {
	IdentityID int64     `json:"identity_id"`
	Identity   string    `json:"identity_name"`
	Clusters   []Cluster `json:"clusters"`
	Confidence float64   `json:"confidence"`
}

type Detector struct {
	db *sqlite.Client
}

func NewDetector(db *sqlite.Client) *Detector {
	return &Detector{db: db}
}

// Scan inspects every active identity's records for conflated names.
func (d *Detector) Scan() ([]Candidate, error) {
	identities, err := d.db.ListActiveIdentities()
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	var out []Candidate
	for _, id := range identities {
		records, err := d.db.ListRecordsByIdentity(id.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list records for identity %d: %w", id.ID, err)
		}

		if cand, ok := Inspect(id, records); ok {
			out = append(out, cand)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	logger.Info("Split scan finished",
		zap.Int("identities", len(identities)), zap.Int("candidates", len(out)))

	return out, nil
}

// Inspect evaluates a single identity's records. It returns false when
// the records do not support at least two distinct, well-attested
// names.
func Inspect(id models.Identity, records []models.RawRecord) (Candidate, bool) {
	var clusters []Cluster

	for _, rec := range records {
		name := normalizeName(rec.Extraction.Name1 + " " + rec.Extraction.Name2)
		if name == "" {
			continue
		}

		placed := false
		for i := range clusters {
			if sameNameLoose(clusters[i].Name, name) {
				clusters[i].Occurrences++
				clusters[i].RecordIDs = append(clusters[i].RecordIDs, rec.ID)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{Name: name, Occurrences: 1, RecordIDs: []int64{rec.ID}})
		}
	}

	attested := clusters[:0]
	for _, c := range clusters {
		if c.Occurrences >= minOccurrences {
			attested = append(attested, c)
		}
	}
	if len(attested) < 2 {
		return Candidate{}, false
	}

	sort.SliceStable(attested, func(i, j int) bool { return attested[i].Occurrences > attested[j].Occurrences })

	return Candidate{
		IdentityID: id.ID,
		Identity:   id.Name,
		Clusters:   attested,
		Confidence: confidence(attested),
	}, true
}

// confidence starts at a 0.5 base; an even occurrence spread across
// clusters (high normalized entropy) means the variants are equally
// real rather than typos of one dominant name, and every cluster past
// the second adds a small bonus.
func confidence(clusters []Cluster) float64 {
	total := 0
	for _, c := range clusters {
		total += c.Occurrences
	}

	entropy := 0.0
	for _, c := range clusters {
		p := float64(c.Occurrences) / float64(total)
		entropy -= p * math.Log2(p)
	}
	normalized := entropy / math.Log2(float64(len(clusters)))

	conf := baseConfidence + normalized/2 + extraClusterBonus*float64(len(clusters)-2)
	if conf > 1 {
		conf = 1
	}
	return conf
}

// sameNameLoose matches two normalized names on first/last tokens,
// tolerating swapped order ("rossi mario" vs "mario rossi") and a
// single-initial given name ("m rossi" vs "mario rossi").
func sameNameLoose(a, b string) bool {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return false
	}

	aFirst, aLast := at[0], at[len(at)-1]
	bFirst, bLast := bt[0], bt[len(bt)-1]

	if tokenEq(aFirst, bFirst) && tokenEq(aLast, bLast) {
		return true
	}
	// swapped order
	if tokenEq(aFirst, bLast) && tokenEq(aLast, bFirst) {
		return true
	}
	return false
}

// tokenEq treats a single initial as equal to any token it abbreviates.
func tokenEq(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 1 && strings.HasPrefix(b, a) {
		return true
	}
	if len(b) == 1 && strings.HasPrefix(a, b) {
		return true
	}
	return false
}

var namePunct = strings.NewReplacer(".", " ", ",", " ", "'", " ", "-", " ")

func normalizeName(s string) string {
	s = strings.ToLower(namePunct.Replace(s))
	fields := strings.Fields(s)

	// strip leading title tokens that survived extraction
	for len(fields) > 0 && titleToken[fields[0]] {
		fields = fields[1:]
	}

	return strings.Join(fields, " ")
}

var titleToken = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
	"prof": true, "sig": true, "dott": true, "ssa": true, "ing": true, "avv": true,
	"herr": true, "frau": true, "mme": true, "mlle": true,
}
