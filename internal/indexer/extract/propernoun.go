package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/tokenizer"
)

const (
	posPath = "/v1/pos"
	// ProperNounTag is the part-of-speech tag for proper nouns.
	ProperNounTag = "Np"
)

// POSToken is one word-segmented token with its part-of-speech tag.
// Multi-syllable words are joined with underscores (Hà_Nội).
type POSToken struct {
	Word string
	Tag  string
}

// POSTagger assigns part-of-speech tags to text.
type POSTagger interface {
	Tag(ctx context.Context, text string) ([]POSToken, error)
}

// ProperNounExtractor treats every proper-noun token as a single entity of
// type PROPER_NOUN.
type ProperNounExtractor struct {
	name   string
	tagger POSTagger
	closer func()
}

// NewProperNounExtractor wraps tagger; name labels it in logs and metrics.
func NewProperNounExtractor(name string, tagger POSTagger) *ProperNounExtractor {
	return &ProperNounExtractor{name: name, tagger: tagger}
}

func (e *ProperNounExtractor) Name() string { return e.name }

func (e *ProperNounExtractor) Extract(ctx context.Context, text string) ([]index.Entity, error) {
	if text == "" {
		return nil, nil
	}
	tokens, err := e.tagger.Tag(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("pos tagging text: %w", err)
	}
	var out []index.Entity
	for _, tok := range tokens {
		if tok.Tag != ProperNounTag {
			continue
		}
		word := cleanText(strings.ReplaceAll(tok.Word, "_", " "))
		if word == "" {
			continue
		}
		out = append(out, index.Entity{Text: word, Type: TypeProperNoun})
	}
	return out, nil
}

func (e *ProperNounExtractor) Close() error {
	if e.closer != nil {
		e.closer()
	}
	return nil
}

// httpPOSTagger calls a remote tagger answering {"tokens": [[word, tag], ...]}.
type httpPOSTagger struct {
	client *backendClient
}

func (t *httpPOSTagger) Tag(ctx context.Context, text string) ([]POSToken, error) {
	var resp struct {
		Tokens [][]string `json:"tokens"`
	}
	if err := t.client.post(ctx, posPath, textRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	out := make([]POSToken, 0, len(resp.Tokens))
	for _, row := range resp.Tokens {
		if len(row) < 2 {
			continue
		}
		out = append(out, POSToken{Word: row[0], Tag: row[len(row)-1]})
	}
	return out, nil
}

// HeuristicTagger is an offline POSTagger: runs of adjacent capitalized
// words that are not function words are joined into one proper-noun token.
// Everything else is tagged "X". Precision is low, notably on capitalized
// sentence openers.
type HeuristicTagger struct{}

func (HeuristicTagger) Tag(_ context.Context, text string) ([]POSToken, error) {
	tokens := tokenizer.Tokenize(text)
	out := make([]POSToken, 0, len(tokens))
	var run []tokenizer.Token
	flush := func() {
		if len(run) == 0 {
			return
		}
		words := make([]string, len(run))
		for i, t := range run {
			words[i] = t.Text
		}
		out = append(out, POSToken{Word: strings.Join(words, "_"), Tag: ProperNounTag})
		run = run[:0]
	}

	for _, tok := range tokens {
		candidate := tokenizer.IsCapitalized(tok.Text) && !tokenizer.IsStopWord(tok.Text) && !isNumeric(tok.Text)
		if !candidate {
			flush()
			out = append(out, POSToken{Word: tok.Text, Tag: "X"})
			continue
		}
		if len(run) > 0 && (tok.SentenceStart || !onlySpace(text[run[len(run)-1].End:tok.Start])) {
			flush()
		}
		run = append(run, tok)
	}
	flush()
	return out, nil
}

func onlySpace(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
