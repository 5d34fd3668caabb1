package extract

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/tagging"
)

const tagPath = "/v1/tag"

// tagResponse carries one row per token: [word, tag], [word, pos, tag] or
// [word, pos, chunk, tag]. The tag is always the last column.
type tagResponse struct {
	Tokens [][]string `json:"tokens"`
}

// TagStreamExtractor decodes BIO-tagged recognizer output into spans.
type TagStreamExtractor struct {
	client *backendClient
}

func (e *TagStreamExtractor) Name() string { return BackendTagStream }

func (e *TagStreamExtractor) Extract(ctx context.Context, text string) ([]index.Entity, error) {
	if text == "" {
		return nil, nil
	}
	var resp tagResponse
	if err := e.client.post(ctx, tagPath, textRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("tagging text: %w", err)
	}
	return spansToEntities(tagging.Decode(rowsToTokens(resp.Tokens))), nil
}

func (e *TagStreamExtractor) Close() error {
	e.client.close()
	return nil
}

// rowsToTokens keeps rows of three or four columns, the widths recognizers
// emit for (word, pos, tag) and (word, pos, chunk, tag). Other widths are
// skipped.
func rowsToTokens(rows [][]string) []tagging.TaggedToken {
	tokens := make([]tagging.TaggedToken, 0, len(rows))
	for _, row := range rows {
		switch len(row) {
		case 3, 4:
			tokens = append(tokens, tagging.TaggedToken{Word: row[0], Tag: row[len(row)-1]})
		}
	}
	return tokens
}

// spansToEntities normalises span types and drops everything that is not a
// person, location or organization.
func spansToEntities(spans []tagging.Span) []index.Entity {
	out := make([]index.Entity, 0, len(spans))
	for _, s := range spans {
		typ := NormalizeType(s.Type)
		if typ == "" {
			continue
		}
		text := cleanText(s.Text)
		if text == "" {
			continue
		}
		out = append(out, index.Entity{Text: text, Type: typ})
	}
	return out
}
