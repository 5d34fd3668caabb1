package extract

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/tokenizer"
)

const (
	entitiesPath = "/v1/entities"
	// DefaultMaxTokens is the per-chunk token limit when none is configured.
	DefaultMaxTokens = 500
)

// Group is one pre-aggregated recognizer hit.
type Group struct {
	Word        string  `json:"word"`
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
}

// GroupRecognizer returns already-merged entity spans for a piece of text.
type GroupRecognizer interface {
	Recognize(ctx context.Context, text string) ([]Group, error)
}

// ChunkedExtractor splits long text into chunks of at most maxTokens
// whitespace tokens, recognizes each chunk and concatenates the hits. Chunks
// partition the token stream, so each mention is reported once.
type ChunkedExtractor struct {
	rec       GroupRecognizer
	maxTokens int
	minScore  float64
	closer    func()
}

// NewChunkedExtractor wraps rec. maxTokens <= 0 selects DefaultMaxTokens.
func NewChunkedExtractor(rec GroupRecognizer, maxTokens int, minScore float64) *ChunkedExtractor {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ChunkedExtractor{rec: rec, maxTokens: maxTokens, minScore: minScore}
}

func (e *ChunkedExtractor) Name() string { return BackendChunked }

// Extract fails as a whole when any chunk fails, so a document never
// contributes a partial mention list.
func (e *ChunkedExtractor) Extract(ctx context.Context, text string) ([]index.Entity, error) {
	chunks := tokenizer.Chunk(text, e.maxTokens)
	var out []index.Entity
	for i, chunk := range chunks {
		groups, err := e.rec.Recognize(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("recognizing chunk %d/%d: %w", i+1, len(chunks), err)
		}
		for _, g := range groups {
			typ := NormalizeType(g.EntityGroup)
			if typ == "" || g.Score < e.minScore {
				continue
			}
			word := cleanText(g.Word)
			if word == "" {
				continue
			}
			out = append(out, index.Entity{Text: word, Type: typ})
		}
	}
	return out, nil
}

func (e *ChunkedExtractor) Close() error {
	if e.closer != nil {
		e.closer()
	}
	return nil
}

// httpGroupRecognizer calls a remote recognizer answering
// {"entities": [{"word", "entity_group", "score"}, ...]}.
type httpGroupRecognizer struct {
	client *backendClient
}

func (r *httpGroupRecognizer) Recognize(ctx context.Context, text string) ([]Group, error) {
	var resp struct {
		Entities []Group `json:"entities"`
	}
	if err := r.client.post(ctx, entitiesPath, textRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}
