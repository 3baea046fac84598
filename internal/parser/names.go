package parser

import (
	"regexp"
	"strings"
)

// serviceTokens are local-part tokens that denote a role or function
// rather than a person, including common Italian, Spanish, German and
// French equivalents seen in the historical data.
var serviceTokens = map[string]bool{
	"info": true, "sales": true, "support": true, "noreply": true,
	"no-reply": true, "donotreply": true, "admin": true, "contact": true,
	"office": true, "mail": true, "post": true, "hello": true,
	"webmaster": true, "postmaster": true, "newsletter": true,
	"marketing": true, "billing": true, "orders": true, "order": true,
	"help": true, "service": true, "team": true, "hr": true, "jobs": true,
	"press": true, "abuse": true, "notifications": true, "notification": true,
	"reply": true, "customerservice": true, "reception": true,
	"booking": true, "export": true, "import": true, "shop": true,
	// Italian
	"segreteria": true, "amministrazione": true, "ufficio": true,
	"vendite": true, "ordini": true, "fatturazione": true,
	"direzione": true, "commerciale": true, "assistenza": true,
	"redazione": true, "acquisti": true, "logistica": true,
	"magazzino": true, "contabilita": true, "qualita": true,
	// Spanish / Portuguese
	"ventas": true, "contacto": true, "contato": true, "pedidos": true,
	"administracion": true, "atencion": true,
	// German
	"kontakt": true, "vertrieb": true, "buchhaltung": true,
	"bestellung": true, "verkauf": true, "einkauf": true,
	// French
	"accueil": true, "commande": true, "comptabilite": true,
	"secretariat": true,
}

// titleTokens map honorific tokens (lowercased, trailing period
// stripped) to a normalized form. Multiple leading titles compound.
var titleTokens = map[string]string{
	"mr": "Mr.", "mister": "Mr.", "mrs": "Mrs.", "ms": "Ms.",
	"miss": "Miss", "dr": "Dr.", "prof": "Prof.", "ing": "Ing.",
	"eng": "Eng.", "arch": "Arch.", "avv": "Avv.", "rag": "Rag.",
	"geom": "Geom.", "sig": "Sig.", "sigra": "Sig.ra", "sig.ra": "Sig.ra",
	"signa": "Sig.na", "sig.na": "Sig.na", "dott": "Dott.",
	"dottssa": "Dott.ssa", "dott.ssa": "Dott.ssa", "herr": "Herr",
	"frau": "Frau", "monsieur": "M.", "madame": "Mme", "mme": "Mme",
	"mlle": "Mlle", "senor": "Sr.", "señor": "Sr.", "sr": "Sr.",
	"sra": "Sra.", "srta": "Srta.", "don": "Don", "donna": "Donna",
}

// legalSuffixes mark a display name as a company rather than a person.
var legalSuffixes = map[string]bool{
	"srl": true, "s.r.l": true, "spa": true, "s.p.a": true, "snc": true,
	"sas": true, "srls": true, "gmbh": true, "ag": true, "kg": true,
	"ltd": true, "llc": true, "inc": true, "corp": true, "sa": true,
	"sl": true, "bv": true, "nv": true, "oy": true, "ab": true,
	"plc": true, "co": true, "kft": true, "sro": true, "sarl": true,
	"eurl": true, "soc": true, "coop": true,
}

// nobiliaryParticles stay lowercase inside a name (van der Berg,
// di Stefano) but are capitalized when they are the final token.
var nobiliaryParticles = map[string]bool{
	"van": true, "von": true, "der": true, "den": true, "ter": true,
	"de": true, "di": true, "da": true, "del": true, "della": true,
	"dello": true, "dei": true, "degli": true, "la": true, "lo": true,
	"le": true, "du": true, "des": true, "dos": true, "das": true,
	"el": true, "al": true, "bin": true, "ibn": true,
}

var (
	initialSurnameRe = regexp.MustCompile(`^([a-zA-Z])[._-]([a-zA-Z]{2,})$`)
	twoTokenRe       = regexp.MustCompile(`^([a-zA-Z]{2,})[._-]([a-zA-Z]{2,})$`)
	camelCaseRe      = regexp.MustCompile(`^([A-Za-z][a-z]+)([A-Z][a-z]+)$`)
	nonLetterTailRe  = regexp.MustCompile(`[^a-zA-Z]+$`)
)

// IsServiceLocalPart reports whether an email local part denotes a
// role address. Trailing digits and punctuation are ignored (info2,
// info-it).
func IsServiceLocalPart(localPart string) bool {
	lp := strings.ToLower(strings.TrimSpace(localPart))
	if lp == "" {
		return false
	}
	if serviceTokens[lp] {
		return true
	}
	base := nonLetterTailRe.ReplaceAllString(lp, "")
	if serviceTokens[base] {
		return true
	}
	// info.milano, sales-export
	if i := strings.IndexAny(lp, ".-_"); i > 0 && serviceTokens[lp[:i]] {
		return true
	}
	return false
}

// CapitalizeName applies historically-correct capitalization:
// apostrophes (O'Brien, D'Angelo), Mc-/Mac- prefixes, hyphenated
// names, and lowercase nobiliary particles that stay lowercase unless
// they are the terminal token.
func CapitalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	words := strings.Fields(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		isLast := i == len(words)-1
		if nobiliaryParticles[lower] && !isLast {
			words[i] = lower
			continue
		}
		words[i] = capitalizeWord(lower)
	}
	return strings.Join(words, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	if idx := strings.Index(w, "-"); idx > 0 && idx < len(w)-1 {
		return capitalizeWord(w[:idx]) + "-" + capitalizeWord(w[idx+1:])
	}
	if idx := strings.Index(w, "'"); idx > 0 && idx < len(w)-1 {
		return upperFirst(w[:idx]) + "'" + upperFirst(w[idx+1:])
	}
	if strings.HasPrefix(w, "mc") && len(w) > 2 {
		return "Mc" + upperFirst(w[2:])
	}
	if strings.HasPrefix(w, "mac") && len(w) > 5 {
		return "Mac" + upperFirst(w[3:])
	}
	return upperFirst(w)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// extractTitles strips leading honorific tokens from a display name
// and returns the compound normalized title plus the remainder.
func extractTitles(display string) (title, rest string) {
	tokens := strings.Fields(display)
	var titles []string

	for len(tokens) > 0 {
		key := strings.ToLower(strings.TrimRight(tokens[0], "."))
		norm, ok := titleTokens[key]
		if !ok {
			// compound written with inner period, e.g. "dott.ssa"
			norm, ok = titleTokens[strings.ToLower(tokens[0])]
		}
		if !ok {
			break
		}
		titles = append(titles, norm)
		tokens = tokens[1:]
	}

	return strings.Join(titles, " "), strings.Join(tokens, " ")
}

// looksLikeCompany reports whether a display name denotes an
// organization: a legal-entity suffix token or an all-caps multi-word
// name.
func looksLikeCompany(display string) bool {
	tokens := strings.Fields(display)
	if len(tokens) == 0 {
		return false
	}

	for _, tok := range tokens {
		key := strings.ToLower(strings.Trim(tok, ".,()"))
		if legalSuffixes[key] {
			return true
		}
	}

	if len(tokens) >= 2 {
		allCaps := true
		for _, tok := range tokens {
			letters := 0
			for _, r := range tok {
				if r >= 'a' && r <= 'z' {
					allCaps = false
				}
				if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
					letters++
				}
			}
			if letters < 2 {
				allCaps = false
			}
			if !allCaps {
				break
			}
		}
		if allCaps {
			return true
		}
	}

	return false
}

// splitPersonName splits a display name into given and surname,
// honoring "Last, First" comma ordering.
func splitPersonName(name string) (given, surname string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	if idx := strings.Index(name, ","); idx > 0 {
		surname = strings.TrimSpace(name[:idx])
		given = strings.TrimSpace(name[idx+1:])
		return CapitalizeName(given), CapitalizeName(surname)
	}

	tokens := strings.Fields(name)
	switch len(tokens) {
	case 1:
		return CapitalizeName(tokens[0]), ""
	default:
		// Nobiliary particles belong to the surname: "Anna van der Berg"
		// splits as given "Anna", surname "van der Berg".
		split := len(tokens) - 1
		for split > 1 && nobiliaryParticles[strings.ToLower(tokens[split-1])] {
			split--
		}
		given = strings.Join(tokens[:split], " ")
		surname = strings.Join(tokens[split:], " ")
		return CapitalizeName(given), CapitalizeName(surname)
	}
}

// DeriveFromLocalPart guesses given/surname from an email local part
// using three patterns in priority order: initial+surname, two
// separated tokens, and camel-case concatenation.
func DeriveFromLocalPart(localPart string) (given, surname string) {
	lp := strings.TrimSpace(localPart)
	if lp == "" {
		return "", ""
	}

	if m := initialSurnameRe.FindStringSubmatch(lp); m != nil {
		return strings.ToUpper(m[1]) + ".", CapitalizeName(m[2])
	}
	if m := twoTokenRe.FindStringSubmatch(lp); m != nil {
		return CapitalizeName(m[1]), CapitalizeName(m[2])
	}
	if m := camelCaseRe.FindStringSubmatch(lp); m != nil {
		return CapitalizeName(m[1]), CapitalizeName(m[2])
	}
	return "", ""
}
