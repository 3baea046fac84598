// Package parser performs deterministic extraction of email, display
// name, title and company from a decoded recipient string. It never
// calls external services; low-confidence results are escalated to the
// LLM pipeline by the caller.
package parser

import (
	"regexp"
	"strings"
)

// Recipient is the ephemeral result of deterministic parsing.
type Recipient struct {
	Email       string
	LocalPart   string
	Domain      string
	DisplayName string
	GivenName   string
	Surname     string
	Title       string
	CompanyName string
	IsPersonal  bool
	Confidence  float64
}

var (
	angleAddrRe = regexp.MustCompile(`<([^<>]*)>`)
	emailRe     = regexp.MustCompile(`(?i)[a-z0-9._%+'\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	validEmail  = regexp.MustCompile(`(?i)^[a-z0-9._%+'\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	noiseCutset = " \t\r\n\"',;:|()[]"
)

// Parse extracts structured recipient data from a decoded string.
// It never fails; absence of a valid email yields confidence 0.
func Parse(decoded string) Recipient {
	var r Recipient

	input := strings.TrimSpace(decoded)
	if input == "" {
		return r
	}

	display, email := separate(input)

	email = strings.ToLower(strings.Trim(email, noiseCutset))
	if !validEmail.MatchString(email) {
		r.DisplayName = strings.Trim(display, noiseCutset)
		return r
	}

	at := strings.LastIndex(email, "@")
	r.Email = email
	r.LocalPart = email[:at]
	r.Domain = email[at+1:]

	r.IsPersonal = !IsServiceLocalPart(r.LocalPart)

	display = strings.Trim(display, noiseCutset)
	display = strings.TrimSpace(display)
	r.DisplayName = display

	if r.IsPersonal {
		r.Title, display = extractTitles(display)
	}
	display = peelCompany(&r, display)

	if r.IsPersonal {
		if display != "" {
			r.GivenName, r.Surname = splitPersonName(display)
		} else {
			r.GivenName, r.Surname = DeriveFromLocalPart(r.LocalPart)
		}
	}

	r.Confidence = score(r)
	return r
}

// separate splits a raw string into display-name and email parts,
// handling `"Name" <email>`, `Name <email>`, `<email>` and bare email.
func separate(input string) (display, email string) {
	if m := angleAddrRe.FindStringSubmatchIndex(input); m != nil {
		email = input[m[2]:m[3]]
		display = strings.TrimSpace(input[:m[0]] + " " + input[m[1]:])
		return display, email
	}

	if m := emailRe.FindStringIndex(input); m != nil {
		email = input[m[0]:m[1]]
		display = strings.TrimSpace(input[:m[0]] + " " + input[m[1]:])
		return display, email
	}

	return input, ""
}

// peelCompany pulls a company name out of the display string. When the
// whole display is a company, name derivation falls back to the local
// part; when a separator joins company and person ("ACME SRL - Mario
// Rossi"), the person side is returned.
func peelCompany(r *Recipient, display string) string {
	if display == "" {
		return display
	}

	for _, sep := range []string{" - ", " | ", " / " } {
		if idx := strings.Index(display, sep); idx > 0 {
			left := strings.TrimSpace(display[:idx])
			right := strings.TrimSpace(display[idx+len(sep):])
			if looksLikeCompany(left) && !looksLikeCompany(right) {
				r.CompanyName = left
				return right
			}
			if looksLikeCompany(right) && !looksLikeCompany(left) {
				r.CompanyName = right
				return left
			}
		}
	}

	if looksLikeCompany(display) {
		r.CompanyName = display
		return ""
	}

	return display
}

// score computes the 0-1 parse confidence as a weighted sum.
func score(r Recipient) float64 {
	c := 0.0
	if r.Email != "" && r.Domain != "" {
		c += 0.3
	}
	if r.DisplayName != "" {
		c += 0.2
	}
	switch {
	case r.GivenName != "" && r.Surname != "":
		c += 0.3
	case r.GivenName != "" || r.Surname != "":
		c += 0.1
	}
	if r.IsPersonal {
		c += 0.1
	}
	if r.Title != "" {
		c += 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
