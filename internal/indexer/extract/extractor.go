// Package extract turns document text into entity mentions using one of
// several recognition backends behind a single Extractor interface.
//
// Backends, selected by name at construction time:
//
//   - tagstream: a recognizer returning per-token BIO tags, decoded with the
//     tagging package and filtered to persons, locations and organizations.
//   - propernoun: a part-of-speech tagger whose proper-noun tokens become
//     single-word PROPER_NOUN mentions. Coarser than tagstream.
//   - heuristic: an offline stand-in for propernoun that needs no service.
//   - chunked: text split into bounded chunks, each sent to an
//     entity-group recognizer that returns already-merged spans.
//
// A failing Extract call affects only its own document; callers log it and
// move on.
package extract

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
)

// Canonical entity types kept in the index.
const (
	TypePerson       = "PERSON"
	TypeLocation     = "LOCATION"
	TypeOrganization = "ORGANIZATION"
	TypeProperNoun   = "PROPER_NOUN"
)

// Extractor finds entity mentions in plain text.
type Extractor interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Extract returns the mentions in text in order of appearance,
	// duplicates included.
	Extract(ctx context.Context, text string) ([]index.Entity, error)
	// Close releases pooled connections.
	Close() error
}

// NormalizeType maps recognizer labels (PER, B-PER's suffix, PERSON, ...)
// to a canonical type. Labels outside persons, locations and organizations
// map to "".
func NormalizeType(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PER", "PERSON":
		return TypePerson
	case "LOC", "LOCATION":
		return TypeLocation
	case "ORG", "ORGANIZATION":
		return TypeOrganization
	default:
		return ""
	}
}

// cleanText collapses internal white space so that the same mention always
// produces the same index key.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
