package index

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartsRestore_RoundTrip(t *testing.T) {
	x := hanoiIndex(t)
	x.MarkComplete()

	got, err := Restore(x.Parts(), Options{})
	require.NoError(t, err)

	assert.True(t, got.Sealed())
	assert.Equal(t, x.Stats(), got.Stats())
	assert.Equal(t, x.TopEntities(0), got.TopEntities(0))
	assert.Equal(t, x.TopPairs(0), got.TopPairs(0))
	for _, ec := range x.TopEntities(0) {
		assert.Equal(t, x.Search(ec.Entity), got.Search(ec.Entity))
		assert.Equal(t, x.RelatedEntities(ec.Entity, 0), got.RelatedEntities(ec.Entity, 0))
	}
}

func TestParts_Deterministic(t *testing.T) {
	x := hanoiIndex(t)
	p := x.Parts()

	require.Len(t, p.Entities, 3)
	assert.Equal(t, "Hanoi", p.Entities[0].Text)
	assert.Equal(t, []Partner{{Entity: 1, Count: 1}, {Entity: 2, Count: 1}}, p.Entities[0].Related)
	assert.Equal(t, []string{"D1", "D2"}, p.Docs)
}

func TestRestore_RejectsBrokenInvariants(t *testing.T) {
	bm := func(ords ...uint32) *roaring.Bitmap { return roaring.BitmapOf(ords...) }
	tests := []struct {
		name  string
		parts Parts
	}{
		{"duplicate doc", Parts{Docs: []string{"a", "a"}}},
		{"unknown doc", Parts{Docs: []string{"a"}, Entities: []EntityPart{
			{Text: "X", Frequency: 1, Postings: bm(3)},
		}}},
		{"frequency below docs", Parts{Docs: []string{"a", "b"}, Entities: []EntityPart{
			{Text: "X", Frequency: 1, Postings: bm(0, 1)},
		}}},
		{"self pair", Parts{Docs: []string{"a"}, Entities: []EntityPart{
			{Text: "X", Frequency: 1, Postings: bm(0), Related: []Partner{{Entity: 0, Count: 1}}},
		}}},
		{"asymmetric", Parts{Docs: []string{"a"}, Entities: []EntityPart{
			{Text: "X", Frequency: 1, Postings: bm(0), Related: []Partner{{Entity: 1, Count: 1}}},
			{Text: "Y", Frequency: 1, Postings: bm(0)},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.parts, Options{})
			assert.ErrorIs(t, err, ErrInvalidParts)
		})
	}
}
