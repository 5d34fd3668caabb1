// Package tagging reduces per-token BIO tag streams to entity spans.
//
// A tag is "O" (outside any entity), "B-<TYPE>" (begins a span) or
// "I-<TYPE>" (continues a span of the same type). Decode is the reference
// behaviour every tag-stream backend output goes through before reaching the
// index.
package tagging

import "strings"

// Outside is the tag for tokens that are not part of an entity.
const Outside = "O"

// TaggedToken is one word of recognizer output with its BIO tag.
type TaggedToken struct {
	Word string
	Tag  string
}

// Span is a decoded entity mention: the span's words joined by one space and
// the entity type taken from the opening tag.
type Span struct {
	Text string
	Type string
}

// Kind is the positional part of a BIO tag.
type Kind int

const (
	KindOutside Kind = iota
	KindBegin
	KindInside
)

// ParseTag splits a tag into its kind and entity type. Anything that is not
// B-<TYPE> or I-<TYPE> with a non-empty type is treated as outside.
func ParseTag(tag string) (Kind, string) {
	if len(tag) < 3 || tag[1] != '-' {
		return KindOutside, ""
	}
	typ := tag[2:]
	switch tag[0] {
	case 'B':
		return KindBegin, typ
	case 'I':
		return KindInside, typ
	default:
		return KindOutside, ""
	}
}

// Decode walks tokens in order and returns the spans they encode. An inside
// tag with no open span, or one whose type differs from the open span, never
// starts a span: the first case is ignored, the second closes the open span.
func Decode(tokens []TaggedToken) []Span {
	var (
		spans   []Span
		words   []string
		curType string
	)
	flush := func() {
		if len(words) > 0 {
			spans = append(spans, Span{Text: strings.Join(words, " "), Type: curType})
		}
		words = words[:0]
		curType = ""
	}

	for _, tok := range tokens {
		kind, typ := ParseTag(tok.Tag)
		switch {
		case kind == KindBegin:
			flush()
			words = append(words, tok.Word)
			curType = typ
		case kind == KindInside && len(words) > 0 && typ == curType:
			words = append(words, tok.Word)
		default:
			flush()
		}
	}
	flush()
	return spans
}
