package index

import "github.com/RoaringBitmap/roaring/v2"

// Entity is one extracted mention: surface text plus entity type. The index
// keys on Text alone; Type is carried for extractor filtering and logging.
type Entity struct {
	Text string
	Type string
}

// EntityCount pairs an entity with a frequency or co-occurrence weight.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
}

// Pair is one unordered co-occurrence pair, Source < Target.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Stats summarises an index.
type Stats struct {
	Entities  int  `json:"entities"`
	Documents int  `json:"documents"`
	Mentions  int  `json:"mentions"`
	Pairs     int  `json:"pairs"`
	Complete  bool `json:"complete"`
}

// MergeResult reports what a single Merge call contributed.
type MergeResult struct {
	Mentions int
	Distinct int
	Pairs    int
	Flagged  bool
	Capped   bool
}

// docTable interns document ids to dense ordinals so that postings can be
// held as roaring bitmaps.
type docTable struct {
	ids  []string
	ords map[string]uint32
}

func newDocTable() docTable {
	return docTable{ords: make(map[string]uint32)}
}

func (t *docTable) intern(id string) uint32 {
	if ord, ok := t.ords[id]; ok {
		return ord
	}
	ord := uint32(len(t.ids))
	t.ids = append(t.ids, id)
	t.ords[id] = ord
	return ord
}

func (t *docTable) resolve(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, t.ids[it.Next()])
	}
	return out
}
