package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "Marco Rossi <m.rossi@example.it>",
			want:  "Marco Rossi <m.rossi@example.it>",
		},
		{
			name:  "quoted printable utf8",
			input: "=?UTF-8?Q?Andr=C3=A9?= <andre@example.fr>",
			want:  "André <andre@example.fr>",
		},
		{
			name:  "base64 utf8",
			input: "=?utf-8?B?TcO8bGxlcg==?= <mueller@example.de>",
			want:  "Müller <mueller@example.de>",
		},
		{
			name:  "iso-8859-1 quoted printable",
			input: "=?ISO-8859-1?Q?Jos=E9?= <jose@example.es>",
			want:  "José <jose@example.es>",
		},
		{
			name:  "adjacent encoded words joined without space",
			input: "=?UTF-8?Q?Gi=C3=B9?=  =?UTF-8?Q?lia?=",
			want:  "Giùlia",
		},
		{
			name:  "unknown charset falls back",
			input: "=?X-UNKNOWN?Q?Rossi?=",
			want:  "Rossi",
		},
		{
			name:  "malformed segment kept unchanged",
			input: "=?UTF-8?X?broken?= rest",
			want:  "=?UTF-8?X?broken?= rest",
		},
		{
			name:  "replacement runs stripped",
			input: "name ??????? <x@y.it>",
			want:  "name  <x@y.it>",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.input))
		})
	}
}

// Decoding is idempotent once no encoded segments remain.
func TestDecodeIdempotent(t *testing.T) {
	inputs := []string{
		"Marco Rossi <m.rossi@example.it>",
		"=?UTF-8?Q?Andr=C3=A9?= <andre@example.fr>",
		"=?utf-8?B?TcO8bGxlcg==?=",
		"garbage ???? =?broken",
		"",
	}

	for _, in := range inputs {
		once := Decode(in)
		twice := Decode(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

// Nested encoding is resolved within the bounded pass count.
func TestDecodeDoubleEncoded(t *testing.T) {
	// "=?UTF-8?Q?Caf=C3=A9?=" base64-encoded as an outer encoded word.
	input := "=?UTF-8?B?PT9VVEYtOD9RP0NhZj1DMz1BOT89?="
	assert.Equal(t, "Café", Decode(input))
}
