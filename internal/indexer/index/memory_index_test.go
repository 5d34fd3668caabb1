package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(s string) Entity { return Entity{Text: s, Type: "LOCATION"} }
func per(s string) Entity { return Entity{Text: s, Type: "PERSON"} }

// hanoiIndex builds the two-document fixture:
// D1 = {Hanoi, Hanoi, Mai}, D2 = {Hanoi, Minh}.
func hanoiIndex(t *testing.T) *Index {
	t.Helper()
	x := New(Options{})
	_, err := x.Merge("D1", []Entity{loc("Hanoi"), loc("Hanoi"), per("Mai")})
	require.NoError(t, err)
	_, err = x.Merge("D2", []Entity{loc("Hanoi"), per("Minh")})
	require.NoError(t, err)
	return x
}

func TestMerge_HanoiScenario(t *testing.T) {
	x := hanoiIndex(t)

	assert.Equal(t, 3, x.Frequency("Hanoi"))
	assert.Equal(t, []string{"D1", "D2"}, x.Search("Hanoi"))
	assert.Equal(t, 1, x.CoOccurrence("Hanoi", "Mai"))
	assert.Equal(t, 1, x.CoOccurrence("Hanoi", "Minh"))
	assert.Equal(t, 0, x.CoOccurrence("Mai", "Minh"))
	assert.Equal(t, 0, x.CoOccurrence("Hanoi", "Hanoi"))
}

func TestTopEntities_One(t *testing.T) {
	x := hanoiIndex(t)

	assert.Equal(t, []EntityCount{{Entity: "Hanoi", Count: 3}}, x.TopEntities(1))
}

func TestTopEntities_TiesAreLexical(t *testing.T) {
	x := hanoiIndex(t)

	got := x.TopEntities(0)

	assert.Equal(t, []EntityCount{
		{Entity: "Hanoi", Count: 3},
		{Entity: "Mai", Count: 1},
		{Entity: "Minh", Count: 1},
	}, got)
}

func TestSearch_UnknownIsEmptyNotNil(t *testing.T) {
	x := hanoiIndex(t)

	got := x.Search("Nonexistent")

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, x.RelatedEntities("Nonexistent", 10))
}

func TestRelatedEntities(t *testing.T) {
	x := New(Options{})
	for i, doc := range [][]Entity{
		{loc("Hanoi"), per("Mai")},
		{loc("Hanoi"), per("Mai"), per("Minh")},
		{loc("Hanoi"), per("Lan")},
	} {
		_, err := x.Merge(fmt.Sprintf("d%d", i), doc)
		require.NoError(t, err)
	}

	assert.Equal(t, []EntityCount{
		{Entity: "Mai", Count: 2},
		{Entity: "Lan", Count: 1},
	}, x.RelatedEntities("Hanoi", 2))
}

func TestMerge_CoOccurrenceCountsDocumentsNotMentions(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("d1", []Entity{per("Mai"), per("Mai"), loc("Hue"), loc("Hue"), per("Mai")})
	require.NoError(t, err)

	assert.Equal(t, 1, x.CoOccurrence("Mai", "Hue"))
	assert.Equal(t, 1, x.CoOccurrence("Hue", "Mai"))
	assert.Equal(t, 3, x.Frequency("Mai"))
	assert.Equal(t, 1, x.DocumentFrequency("Mai"))
}

func TestMerge_SameDocumentTwiceDoublesCounts(t *testing.T) {
	x := New(Options{})
	doc := []Entity{loc("Hanoi"), per("Mai")}
	_, err := x.Merge("d1", doc)
	require.NoError(t, err)
	_, err = x.Merge("d1", doc)
	require.NoError(t, err)

	assert.Equal(t, 2, x.Frequency("Hanoi"))
	assert.Equal(t, []string{"d1"}, x.Search("Hanoi"))
	assert.Equal(t, 2, x.CoOccurrence("Hanoi", "Mai"))
}

func TestMerge_Result(t *testing.T) {
	x := New(Options{WarnDistinct: 2})

	res, err := x.Merge("d1", []Entity{loc("A"), loc("B"), loc("C"), loc("A")})
	require.NoError(t, err)

	assert.Equal(t, MergeResult{Mentions: 4, Distinct: 3, Pairs: 3, Flagged: true}, res)
	assert.Equal(t, 3, x.Stats().Pairs)
}

func TestMerge_CapSkipsPairsButKeepsPostings(t *testing.T) {
	x := New(Options{MaxPairEntities: 2})

	res, err := x.Merge("d1", []Entity{loc("A"), loc("B"), loc("C")})
	require.NoError(t, err)

	assert.True(t, res.Capped)
	assert.Equal(t, 0, res.Pairs)
	assert.Equal(t, []string{"d1"}, x.Search("C"))
	assert.Empty(t, x.RelatedEntities("A", 0))
}

func TestMerge_EmptyEntitiesAndText(t *testing.T) {
	x := New(Options{})

	_, err := x.Merge("d1", nil)
	require.NoError(t, err)
	_, err = x.Merge("d2", []Entity{{Text: "", Type: "PERSON"}, per("Mai")})
	require.NoError(t, err)

	assert.False(t, x.Has(""))
	assert.Equal(t, 2, x.Stats().Documents)
	assert.Equal(t, 1, x.Stats().Entities)
}

func TestMerge_Rejects(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("", []Entity{per("Mai")})
	assert.ErrorIs(t, err, ErrEmptyDocID)

	x.Seal()
	_, err = x.Merge("d1", []Entity{per("Mai")})
	assert.ErrorIs(t, err, ErrSealed)
	assert.False(t, x.Has("Mai"))
}

func randomCorpus(r *rand.Rand, docs int) map[string][]Entity {
	names := []string{"Hanoi", "Hue", "Mai", "Minh", "Lan", "VNPT", "Viettel", "Da Nang"}
	corpus := make(map[string][]Entity, docs)
	for d := 0; d < docs; d++ {
		n := r.Intn(6)
		ents := make([]Entity, n)
		for i := range ents {
			ents[i] = Entity{Text: names[r.Intn(len(names))], Type: "X"}
		}
		corpus[fmt.Sprintf("doc-%03d", d)] = ents
	}
	return corpus
}

func TestMerge_Commutative(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	corpus := randomCorpus(r, 60)
	ids := make([]string, 0, len(corpus))
	for id := range corpus {
		ids = append(ids, id)
	}

	// Given the same documents merged in two different orders
	forward := New(Options{})
	for _, id := range ids {
		_, err := forward.Merge(id, corpus[id])
		require.NoError(t, err)
	}
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	shuffled := New(Options{})
	for _, id := range ids {
		_, err := shuffled.Merge(id, corpus[id])
		require.NoError(t, err)
	}

	// Then every query answers identically
	assert.Equal(t, forward.TopEntities(0), shuffled.TopEntities(0))
	assert.Equal(t, forward.TopPairs(0), shuffled.TopPairs(0))
	for _, ec := range forward.TopEntities(0) {
		assert.Equal(t, forward.Search(ec.Entity), shuffled.Search(ec.Entity))
	}
}

func TestInvariants_RandomCorpus(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	x := New(Options{})
	for id, ents := range randomCorpus(r, 80) {
		_, err := x.Merge(id, ents)
		require.NoError(t, err)
	}

	for _, ec := range x.TopEntities(0) {
		e := ec.Entity
		assert.GreaterOrEqual(t, x.Frequency(e), x.DocumentFrequency(e), e)
		assert.Zero(t, x.CoOccurrence(e, e), e)
		for _, rel := range x.RelatedEntities(e, 0) {
			assert.True(t, x.Has(rel.Entity))
			assert.Equal(t, rel.Count, x.CoOccurrence(rel.Entity, e))
		}
	}
}

func TestFindFold(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("d1", []Entity{loc("HANOI"), loc("Hanoi"), per("Mai")})
	require.NoError(t, err)

	for _, sealed := range []bool{false, true} {
		if sealed {
			x.Seal()
		}
		got, ok := x.FindFold("hanoi")
		assert.True(t, ok)
		assert.Equal(t, "HANOI", got)

		_, ok = x.FindFold("saigon")
		assert.False(t, ok)
	}
}

func TestFindFold_FullCaseFolding(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("d1", []Entity{loc("ΟΔΟΣ"), loc("STRASSE")})
	require.NoError(t, err)

	for _, sealed := range []bool{false, true} {
		if sealed {
			x.Seal()
		}
		got, ok := x.FindFold("οδος")
		assert.True(t, ok, "sealed=%v", sealed)
		assert.Equal(t, "ΟΔΟΣ", got)

		got, ok = x.FindFold("Straße")
		assert.True(t, ok, "sealed=%v", sealed)
		assert.Equal(t, "STRASSE", got)
	}
}

func TestFindFoldRelated(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("d1", []Entity{loc("Hanoi"), per("Mai")})
	require.NoError(t, err)
	_, err = x.Merge("d2", []Entity{loc("HANOI")})
	require.NoError(t, err)
	_, err = x.Merge("d3", []Entity{loc("Saigon")})
	require.NoError(t, err)

	for _, sealed := range []bool{false, true} {
		if sealed {
			x.Seal()
		}
		got, ok := x.FindFoldRelated("hanoi")
		assert.True(t, ok)
		assert.Equal(t, "Hanoi", got)

		got, ok = x.FindFold("hanoi")
		assert.True(t, ok)
		assert.Equal(t, "HANOI", got)

		_, ok = x.FindFoldRelated("saigon")
		assert.False(t, ok, "Saigon has no partners")
	}
}

func TestTopPairs(t *testing.T) {
	x := New(Options{})
	_, err := x.Merge("d1", []Entity{loc("Hanoi"), per("Mai"), per("Minh")})
	require.NoError(t, err)
	_, err = x.Merge("d2", []Entity{per("Mai"), loc("Hanoi")})
	require.NoError(t, err)

	assert.Equal(t, []Pair{
		{Source: "Hanoi", Target: "Mai", Weight: 2},
		{Source: "Hanoi", Target: "Minh", Weight: 1},
		{Source: "Mai", Target: "Minh", Weight: 1},
	}, x.TopPairs(0))
	assert.Len(t, x.TopPairs(1), 1)
}
