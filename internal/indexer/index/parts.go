package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInvalidParts is returned by Restore when the flat form violates an
// index invariant.
var ErrInvalidParts = errors.New("invalid index parts")

// Parts is the flat, deterministic form of an index consumed and produced by
// the snapshot codec. Entities are sorted by Text and partners by ordinal.
type Parts struct {
	Docs     []string
	Entities []EntityPart
	Merged   int
	Complete bool
}

// EntityPart is one entity with its frequency, posting bitmap (ordinals
// into Parts.Docs) and co-occurrence partners.
type EntityPart struct {
	Text      string
	Frequency int
	Postings  *roaring.Bitmap
	Related   []Partner
}

// Partner is a co-occurrence edge to Parts.Entities[Entity].
type Partner struct {
	Entity uint32
	Count  int
}

// Parts flattens the index. The returned bitmaps are copies.
func (x *Index) Parts() Parts {
	names := make([]string, 0, len(x.freq))
	for e := range x.freq {
		names = append(names, e)
	}
	sort.Strings(names)
	ords := make(map[string]uint32, len(names))
	for i, e := range names {
		ords[e] = uint32(i)
	}

	entities := make([]EntityPart, len(names))
	for i, e := range names {
		row := x.co[e]
		related := make([]Partner, 0, len(row))
		for partner, n := range row {
			related = append(related, Partner{Entity: ords[partner], Count: n})
		}
		sort.Slice(related, func(a, b int) bool { return related[a].Entity < related[b].Entity })
		entities[i] = EntityPart{
			Text:      e,
			Frequency: x.freq[e],
			Postings:  x.postings[e].Clone(),
			Related:   related,
		}
	}

	docs := make([]string, len(x.docs.ids))
	copy(docs, x.docs.ids)
	return Parts{
		Docs:     docs,
		Entities: entities,
		Merged:   x.merged,
		Complete: x.complete,
	}
}

// Restore rebuilds a sealed index from its flat form, rejecting parts that
// break the index invariants: unknown document or entity ordinals, frequency
// below document count, self pairs and asymmetric co-occurrence.
func Restore(p Parts, opts Options) (*Index, error) {
	x := New(opts)
	for i, id := range p.Docs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty document id at %d", ErrInvalidParts, i)
		}
		if ord := x.docs.intern(id); ord != uint32(i) {
			return nil, fmt.Errorf("%w: duplicate document id %q", ErrInvalidParts, id)
		}
	}

	ndocs := uint64(len(p.Docs))
	for i, ep := range p.Entities {
		if ep.Text == "" {
			return nil, fmt.Errorf("%w: empty entity at %d", ErrInvalidParts, i)
		}
		if _, dup := x.freq[ep.Text]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %q", ErrInvalidParts, ep.Text)
		}
		if ep.Postings == nil || ep.Postings.IsEmpty() {
			return nil, fmt.Errorf("%w: entity %q has no documents", ErrInvalidParts, ep.Text)
		}
		if uint64(ep.Postings.Maximum()) >= ndocs {
			return nil, fmt.Errorf("%w: entity %q references unknown document", ErrInvalidParts, ep.Text)
		}
		if uint64(ep.Frequency) < ep.Postings.GetCardinality() {
			return nil, fmt.Errorf("%w: entity %q frequency %d below document count %d",
				ErrInvalidParts, ep.Text, ep.Frequency, ep.Postings.GetCardinality())
		}
		x.freq[ep.Text] = ep.Frequency
		x.postings[ep.Text] = ep.Postings
		x.mentions += ep.Frequency
	}

	for i, ep := range p.Entities {
		for _, pr := range ep.Related {
			if int(pr.Entity) >= len(p.Entities) {
				return nil, fmt.Errorf("%w: entity %q has unknown partner %d", ErrInvalidParts, ep.Text, pr.Entity)
			}
			if int(pr.Entity) == i {
				return nil, fmt.Errorf("%w: entity %q paired with itself", ErrInvalidParts, ep.Text)
			}
			if pr.Count <= 0 {
				return nil, fmt.Errorf("%w: non-positive co-occurrence for %q", ErrInvalidParts, ep.Text)
			}
			x.bumpBy(ep.Text, p.Entities[pr.Entity].Text, pr.Count)
			if uint32(i) < pr.Entity {
				x.pairs++
			}
		}
	}
	for a, row := range x.co {
		for b, n := range row {
			if x.co[b][a] != n {
				return nil, fmt.Errorf("%w: co-occurrence %q/%q not symmetric", ErrInvalidParts, a, b)
			}
		}
	}

	x.merged = p.Merged
	x.complete = p.Complete
	x.Seal()
	return x, nil
}

func (x *Index) bumpBy(a, b string, n int) {
	row, ok := x.co[a]
	if !ok {
		row = make(map[string]int)
		x.co[a] = row
	}
	row[b] += n
}
