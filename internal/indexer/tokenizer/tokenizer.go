// Package tokenizer segments document text for the recognizers. Unlike a
// search tokenizer it preserves case and records byte offsets, because
// entity surface strings must be reproduced exactly as written.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {}, "she": {},
	"we": {}, "our": {}, "after": {}, "before": {}, "there": {},
	"these": {}, "those": {}, "how": {}, "why": {}, "all": {},
}

// Token is one word of the input with its position and byte span.
type Token struct {
	Text          string
	Position      int
	Start         int
	End           int
	SentenceStart bool
}

// Tokenize splits text into words: runs of letters and digits, with inner
// hyphens and apostrophes kept (Jean-Luc, O'Neil). Case is preserved.
// SentenceStart is set on the first word and on words following '.', '!'
// or '?'.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	sentence := true
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := strings.TrimRight(text[start:end], "-'")
		tokens = append(tokens, Token{
			Text:          word,
			Position:      len(tokens),
			Start:         start,
			End:           start + len(word),
			SentenceStart: sentence,
		})
		sentence = false
		start = -1
	}

	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			if start < 0 {
				start = i
			}
		case (r == '-' || r == '\'' || r == '’') && start >= 0:
			// joiner, only kept when followed by another word character
			next, _ := utf8.DecodeRuneInString(text[i+utf8.RuneLen(r):])
			if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
				flush(i)
			}
		default:
			flush(i)
			if r == '.' || r == '!' || r == '?' {
				sentence = true
			}
		}
	}
	flush(len(text))
	return tokens
}

// Fields splits text on white space, the way recognizer token limits are
// counted.
func Fields(text string) []string {
	return strings.Fields(text)
}

// Chunk splits text into pieces of at most maxTokens whitespace-separated
// tokens, each rejoined with single spaces. Every token lands in exactly one
// chunk. maxTokens <= 0 returns the whole text as one chunk.
func Chunk(text string, maxTokens int) []string {
	words := Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxTokens <= 0 || len(words) <= maxTokens {
		return []string{strings.Join(words, " ")}
	}
	chunks := make([]string, 0, (len(words)+maxTokens-1)/maxTokens)
	for i := 0; i < len(words); i += maxTokens {
		end := min(i+maxTokens, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// IsStopWord reports whether word, compared case-insensitively, is a common
// function word.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// IsCapitalized reports whether word starts with an upper-case letter.
func IsCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r) || unicode.IsTitle(r)
}
