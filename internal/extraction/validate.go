package extraction

import (
	"regexp"
	"strings"

	"github.com/contact-recon/backend/internal/parser"
	"github.com/contact-recon/backend/internal/storage/models"
)

const maxNameLength = 64

var (
	numericRe   = regexp.MustCompile(`^[\d\s.,-]+$`)
	urlLikeRe   = regexp.MustCompile(`(?i)^(?:https?://)?[a-z0-9-]+(?:\.[a-z0-9-]+)+(?:/\S*)?$`)
	splitPartRe = regexp.MustCompile(`[._-]`)

	// Trailing identifiers stripped from service local parts, in
	// priority order.
	roleSuffixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[-_.]?[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
		regexp.MustCompile(`(?i)[-_.][0-9a-f]{10,}$`),
		regexp.MustCompile(`[-_.]?(19|20)\d{2}[-_.]?\d{2}[-_.]?\d{2}$`),
		regexp.MustCompile(`[-_.]\d+$`),
		regexp.MustCompile(`\d{4,}$`),
	}
)

// simplifiedMarker flags role labels that were shortened from a longer
// machine-generated local part.
const simplifiedMarker = "~"

// Sanitize enforces the extraction invariants on a result, whether it
// came from the LLM or the heuristic parser: no name may carry an @,
// a service token, raw numbers or a URL; confidence is clamped; the
// status tier is recomputed; initials and the role label are derived.
func Sanitize(res models.ExtractionResult, localPart string, highConf, mediumConf float64) models.ExtractionResult {
	var violations []string

	res.Name1, violations = cleanNameField(res.Name1, violations)
	res.Name2, violations = cleanNameField(res.Name2, violations)

	if res.Genre != "Mr." && res.Genre != "Ms." {
		res.Genre = ""
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}

	if !res.IsPersonal || parser.IsServiceLocalPart(localPart) {
		res.IsPersonal = false
		res.Name1 = ""
		res.Name2 = ""
		res.Genre = ""
		res.Status = models.ExtractionNotApplicable
		res.RoleLabel = SimplifyLocalPart(localPart)
	} else {
		res.RoleLabel = ""
		switch {
		case res.Name1 != "" && res.Name2 != "" && res.Confidence >= highConf:
			res.Status = models.ExtractionHigh
		case res.Confidence >= mediumConf:
			res.Status = models.ExtractionMedium
		default:
			res.Status = models.ExtractionLow
		}
	}

	res.Name1Initial, res.Name2Initial = initials(res.Name1, res.Name2, localPart)

	if len(violations) > 0 {
		note := "sanitized: " + strings.Join(violations, ", ")
		if res.Reasoning != "" {
			res.Reasoning += "; " + note
		} else {
			res.Reasoning = note
		}
	}

	return res
}

func cleanNameField(name string, violations []string) (string, []string) {
	s := strings.TrimSpace(name)
	s = strings.Trim(s, `"'.,;:()[]<>`)
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return "", violations
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(s, "@"):
		return "", append(violations, "name contained @")
	case parser.IsServiceLocalPart(lower):
		return "", append(violations, "name was a service token")
	case numericRe.MatchString(s):
		return "", append(violations, "name was numeric")
	case urlLikeRe.MatchString(s):
		return "", append(violations, "name resembled a URL")
	}

	if len(s) > maxNameLength {
		s = s[:maxNameLength]
		violations = append(violations, "name truncated")
	}

	return parser.CapitalizeName(s), violations
}

// initials are the first letter plus a period, falling back to the
// matching segment of the email local part when a name is missing.
func initials(name1, name2, localPart string) (string, string) {
	segments := splitPartRe.Split(localPart, -1)

	init := func(name string, segIdx int) string {
		if name != "" {
			return strings.ToUpper(string([]rune(name)[0])) + "."
		}
		if segIdx < len(segments) && segments[segIdx] != "" {
			r := []rune(segments[segIdx])[0]
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				return strings.ToUpper(string(r)) + "."
			}
		}
		return ""
	}

	return init(name1, 0), init(name2, 1)
}

// SimplifyLocalPart derives a functional label for a service address
// by stripping trailing identifiers (UUIDs, hex tokens, numeric or
// date-like suffixes). A marker is appended when simplification
// occurred and the remainder is long enough to stay meaningful.
func SimplifyLocalPart(localPart string) string {
	lp := strings.TrimSpace(localPart)
	if lp == "" {
		return ""
	}

	simplified := lp
	for _, re := range roleSuffixRes {
		simplified = re.ReplaceAllString(simplified, "")
	}
	simplified = strings.Trim(simplified, "._-")

	if simplified == lp {
		return lp
	}
	if len(simplified) < 3 {
		return lp
	}
	return simplified + simplifiedMarker
}
