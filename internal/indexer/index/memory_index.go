// Package index holds the entity index: an inverted index from entity to the
// documents mentioning it, a mention frequency table and a symmetric
// co-occurrence table, plus the read-only queries over them.
//
// The structures are mutated only through Merge, and Merge must be called
// from a single goroutine. The build pipeline guarantees that by funnelling
// every extraction result through one consumer, so the index carries no
// locks. Once Seal is called the index is immutable and safe for concurrent
// readers.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/text/cases"
)

var (
	ErrSealed     = errors.New("index is sealed")
	ErrEmptyDocID = errors.New("document id must not be empty")
)

// Options tunes how Merge treats documents with many distinct entities.
type Options struct {
	// WarnDistinct flags documents with more distinct entities than this.
	// Zero disables flagging.
	WarnDistinct int
	// MaxPairEntities skips the co-occurrence step for documents with more
	// distinct entities than this. Zero means no cap.
	MaxPairEntities int
}

// Index is the in-memory entity index.
type Index struct {
	opts      Options
	docs      docTable
	postings  map[string]*roaring.Bitmap
	freq      map[string]int
	co        map[string]map[string]int
	merged    int
	mentions  int
	pairs     int
	complete  bool
	sealed    bool
	rankOnce  sync.Once
	ranked    []EntityCount
	foldOnce  sync.Once
	foldIndex map[string][]string
}

// New returns an empty index.
func New(opts Options) *Index {
	return &Index{
		opts:     opts,
		docs:     newDocTable(),
		postings: make(map[string]*roaring.Bitmap),
		freq:     make(map[string]int),
		co:       make(map[string]map[string]int),
	}
}

// Merge folds one document's extracted entities into the index. Every
// mention increments the entity's frequency; the document joins each
// entity's posting set once; each unordered pair of distinct entities in the
// document gains one co-occurrence in both directions. Mentions with empty
// text are skipped.
func (x *Index) Merge(docID string, entities []Entity) (MergeResult, error) {
	if x.sealed {
		return MergeResult{}, ErrSealed
	}
	if docID == "" {
		return MergeResult{}, ErrEmptyDocID
	}

	var res MergeResult
	x.merged++

	distinct := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	var ord uint32
	interned := false
	for _, e := range entities {
		if e.Text == "" {
			continue
		}
		if !interned {
			ord = x.docs.intern(docID)
			interned = true
		}
		bm, ok := x.postings[e.Text]
		if !ok {
			bm = roaring.New()
			x.postings[e.Text] = bm
		}
		bm.Add(ord)
		x.freq[e.Text]++
		res.Mentions++
		if _, dup := seen[e.Text]; !dup {
			seen[e.Text] = struct{}{}
			distinct = append(distinct, e.Text)
		}
	}
	x.mentions += res.Mentions
	res.Distinct = len(distinct)

	if x.opts.WarnDistinct > 0 && res.Distinct > x.opts.WarnDistinct {
		res.Flagged = true
	}
	if x.opts.MaxPairEntities > 0 && res.Distinct > x.opts.MaxPairEntities {
		res.Capped = true
		return res, nil
	}

	for i := 0; i < len(distinct); i++ {
		a := distinct[i]
		for j := i + 1; j < len(distinct); j++ {
			b := distinct[j]
			if x.bump(a, b) == 1 {
				x.pairs++
			}
			x.bump(b, a)
			res.Pairs++
		}
	}
	return res, nil
}

func (x *Index) bump(a, b string) int {
	row, ok := x.co[a]
	if !ok {
		row = make(map[string]int)
		x.co[a] = row
	}
	row[b]++
	return row[b]
}

// MarkComplete records that every document of the build was processed.
func (x *Index) MarkComplete() { x.complete = true }

// Complete reports whether the build that produced the index ran to the end.
// A cancelled build leaves the merged contributions in place but is never
// complete.
func (x *Index) Complete() bool { return x.complete }

// Seal makes the index immutable. Later Merge calls fail with ErrSealed.
func (x *Index) Seal() { x.sealed = true }

// Sealed reports whether Seal has been called.
func (x *Index) Sealed() bool { return x.sealed }

// Search returns the ids of documents mentioning entity, sorted. An unknown
// entity yields an empty, non-nil slice.
func (x *Index) Search(entity string) []string {
	bm, ok := x.postings[entity]
	if !ok {
		return []string{}
	}
	docs := x.docs.resolve(bm)
	sort.Strings(docs)
	return docs
}

// Has reports whether entity is a key of the index.
func (x *Index) Has(entity string) bool {
	_, ok := x.freq[entity]
	return ok
}

// Frequency returns the total mention count of entity.
func (x *Index) Frequency(entity string) int { return x.freq[entity] }

// DocumentFrequency returns the number of distinct documents mentioning
// entity.
func (x *Index) DocumentFrequency(entity string) int {
	bm, ok := x.postings[entity]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// CoOccurrence returns the number of documents mentioning both a and b.
func (x *Index) CoOccurrence(a, b string) int { return x.co[a][b] }

// TopEntities returns entities by descending frequency, ties broken by
// entity text, truncated to k. k <= 0 returns every entity.
func (x *Index) TopEntities(k int) []EntityCount {
	ranked := x.rankedEntities()
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	out := make([]EntityCount, k)
	copy(out, ranked[:k])
	return out
}

// RelatedEntities returns the co-occurrence partners of entity by descending
// count, ties broken by entity text, truncated to k. k <= 0 returns every
// partner. An unknown entity yields an empty, non-nil slice.
func (x *Index) RelatedEntities(entity string, k int) []EntityCount {
	row := x.co[entity]
	out := make([]EntityCount, 0, len(row))
	for partner, n := range row {
		out = append(out, EntityCount{Entity: partner, Count: n})
	}
	sortCounts(out)
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// FindFold returns the first entity, in lexical order, equal to query under
// Unicode case folding.
func (x *Index) FindFold(query string) (string, bool) {
	return x.findFold(query, func(string) bool { return true })
}

// FindFoldRelated is FindFold restricted to entities that have at least one
// co-occurrence partner.
func (x *Index) FindFoldRelated(query string) (string, bool) {
	return x.findFold(query, func(e string) bool { return len(x.co[e]) > 0 })
}

func (x *Index) findFold(query string, keep func(string) bool) (string, bool) {
	key := foldKey(query)
	if x.sealed {
		x.foldOnce.Do(x.buildFoldIndex)
		for _, e := range x.foldIndex[key] {
			if keep(e) {
				return e, true
			}
		}
		return "", false
	}
	var (
		best  string
		found bool
	)
	for e := range x.freq {
		if (!found || e < best) && foldKey(e) == key && keep(e) {
			best, found = e, true
		}
	}
	return best, found
}

func (x *Index) buildFoldIndex() {
	x.foldIndex = make(map[string][]string, len(x.freq))
	for e := range x.freq {
		key := foldKey(e)
		x.foldIndex[key] = append(x.foldIndex[key], e)
	}
	for _, group := range x.foldIndex {
		sort.Strings(group)
	}
}

// foldKey maps s to its full Unicode case fold. A Caser carries state, so
// each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(s)
}

// TopPairs returns each unordered co-occurrence pair once (Source < Target)
// by descending weight, ties broken by Source then Target, truncated to k.
// k <= 0 returns every pair.
func (x *Index) TopPairs(k int) []Pair {
	out := make([]Pair, 0, x.pairs)
	for a, row := range x.co {
		for b, n := range row {
			if a < b {
				out = append(out, Pair{Source: a, Target: b, Weight: n})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// Stats summarises the index.
func (x *Index) Stats() Stats {
	return Stats{
		Entities:  len(x.freq),
		Documents: x.merged,
		Mentions:  x.mentions,
		Pairs:     x.pairs,
		Complete:  x.complete,
	}
}

func (x *Index) rankedEntities() []EntityCount {
	if x.sealed {
		x.rankOnce.Do(func() { x.ranked = x.rank() })
		return x.ranked
	}
	return x.rank()
}

func (x *Index) rank() []EntityCount {
	out := make([]EntityCount, 0, len(x.freq))
	for e, n := range x.freq {
		out = append(out, EntityCount{Entity: e, Count: n})
	}
	sortCounts(out)
	return out
}

func sortCounts(out []EntityCount) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Entity < out[j].Entity
	})
}

// String is used in logs.
func (x *Index) String() string {
	s := x.Stats()
	return fmt.Sprintf("index{entities=%d docs=%d pairs=%d complete=%t}", s.Entities, s.Documents, s.Pairs, s.Complete)
}
