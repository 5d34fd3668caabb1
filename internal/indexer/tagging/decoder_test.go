package tagging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func toks(pairs ...string) []TaggedToken {
	out := make([]TaggedToken, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, TaggedToken{Word: pairs[i], Tag: pairs[i+1]})
	}
	return out
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		tokens []TaggedToken
		want   []Span
	}{
		{
			name:   "empty",
			tokens: nil,
			want:   nil,
		},
		{
			name:   "multi word span",
			tokens: toks("Nguyen", "B-PER", "Van", "I-PER", "An", "I-PER", "visited", "O", "Hanoi", "B-LOC"),
			want:   []Span{{"Nguyen Van An", "PER"}, {"Hanoi", "LOC"}},
		},
		{
			name:   "begin closes open span",
			tokens: toks("Hanoi", "B-LOC", "Saigon", "B-LOC"),
			want:   []Span{{"Hanoi", "LOC"}, {"Saigon", "LOC"}},
		},
		{
			name:   "lone inside is noise",
			tokens: toks("the", "O", "Mekong", "I-LOC", "river", "O"),
			want:   nil,
		},
		{
			name:   "inside of another type closes and is dropped",
			tokens: toks("Bank", "B-ORG", "Hanoi", "I-LOC", "branch", "I-LOC"),
			want:   []Span{{"Bank", "ORG"}},
		},
		{
			name:   "span open at end is emitted",
			tokens: toks("met", "O", "Tran", "B-PER", "Hung", "I-PER"),
			want:   []Span{{"Tran Hung", "PER"}},
		},
		{
			name:   "malformed tags act as outside",
			tokens: toks("Hue", "B-LOC", "x", "B-", "Da", "B-LOC", "Nang", "Z-LOC"),
			want:   []Span{{"Hue", "LOC"}, {"Da", "LOC"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.tokens))
		})
	}
}

func TestDecode_WordCountMatchesTaggedTokens(t *testing.T) {
	// Given a well-formed stream where every I follows a B or I of its type
	tokens := toks(
		"Ho", "B-PER", "Chi", "I-PER", "Minh", "I-PER",
		"founded", "O",
		"Viet", "B-ORG", "Minh", "I-ORG",
		"in", "O",
		"Pac", "B-LOC", "Bo", "I-LOC",
	)
	nonOutside := 0
	for _, tok := range tokens {
		if tok.Tag != Outside {
			nonOutside++
		}
	}

	// When decoded
	spans := Decode(tokens)

	// Then every tagged word ends up in exactly one span
	words := 0
	for _, s := range spans {
		words += len(strings.Fields(s.Text))
	}
	assert.Equal(t, nonOutside, words)
	assert.Len(t, spans, 3)
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	tokens := toks("Hanoi", "B-LOC")
	spans := Decode(tokens)
	tokens[0].Word = "changed"
	assert.Equal(t, "Hanoi", spans[0].Text)
}

func TestParseTag(t *testing.T) {
	kind, typ := ParseTag("B-PERSON")
	assert.Equal(t, KindBegin, kind)
	assert.Equal(t, "PERSON", typ)

	kind, typ = ParseTag("I-LOC")
	assert.Equal(t, KindInside, kind)
	assert.Equal(t, "LOC", typ)

	kind, _ = ParseTag(Outside)
	assert.Equal(t, KindOutside, kind)
}
