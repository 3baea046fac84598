// Package decoder reverses legacy RFC 2047 encoded-word header text
// into plain Unicode. It never fails: any segment that cannot be
// decoded is kept as-is.
package decoder

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// maxPasses bounds iteration for inputs where decoding reveals further
// encoded segments (double-encoded headers from legacy gateways).
const maxPasses = 5

var (
	encodedWordRe  = regexp.MustCompile(`=\?[^?\s]+\?[bBqQ]\?[^?]*\?=`)
	wordBoundaryRe = regexp.MustCompile(`\?=\s+=\?`)
	junkRe         = regexp.MustCompile(`\?{3,}`)
)

var wordDecoder = mime.WordDecoder{CharsetReader: charsetReader}

// Decode returns the fully decoded form of a raw header-like string.
func Decode(raw string) string {
	s := raw
	for i := 0; i < maxPasses; i++ {
		next := decodeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return cleanup(s)
}

func decodeOnce(s string) string {
	// Whitespace between adjacent encoded words is insignificant.
	s = wordBoundaryRe.ReplaceAllString(s, "?==?")

	return encodedWordRe.ReplaceAllStringFunc(s, func(seg string) string {
		decoded, err := wordDecoder.Decode(seg)
		if err != nil {
			return seg
		}
		return decoded
	})
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.MIME.Encoding(charset)
	if err == nil && enc != nil {
		return transform.NewReader(input, enc.NewDecoder()), nil
	}

	// Unrecognized charset: assume UTF-8, then Latin-1.
	data, rerr := io.ReadAll(input)
	if rerr != nil {
		return nil, rerr
	}
	if utf8.Valid(data) {
		return bytes.NewReader(data), nil
	}
	return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()), nil
}

func cleanup(s string) string {
	s = strings.ReplaceAll(s, string(utf8.RuneError), "")
	s = junkRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
