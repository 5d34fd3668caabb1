package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
)

func buildIndex(t *testing.T, complete bool) *index.Index {
	t.Helper()
	x := index.New(index.Options{})
	docs := map[string][]string{
		"D1": {"Hanoi", "Hanoi", "Mai"},
		"D2": {"Hanoi", "Minh"},
		"D3": {"Ho Chi Minh", "Hanoi", "Minh", "Mai"},
	}
	for _, id := range []string{"D1", "D2", "D3"} {
		var ents []index.Entity
		for _, e := range docs[id] {
			ents = append(ents, index.Entity{Text: e, Type: "LOCATION"})
		}
		_, err := x.Merge(id, ents)
		require.NoError(t, err)
	}
	// enough repetitive entities for compression to pay off
	for i := 0; i < 200; i++ {
		_, err := x.Merge(fmt.Sprintf("bulk-%03d", i), []index.Entity{
			{Text: "Vietnam"}, {Text: fmt.Sprintf("Place %d", i%20)},
		})
		require.NoError(t, err)
	}
	if complete {
		x.MarkComplete()
	}
	x.Seal()
	return x
}

func assertSameIndex(t *testing.T, want, got *index.Index) {
	t.Helper()
	assert.Equal(t, want.Stats(), got.Stats())
	assert.Equal(t, want.TopEntities(0), got.TopEntities(0))
	assert.Equal(t, want.TopPairs(0), got.TopPairs(0))
	for _, ec := range want.TopEntities(0) {
		assert.Equal(t, want.Search(ec.Entity), got.Search(ec.Entity), ec.Entity)
	}
	assert.True(t, got.Sealed())
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			x := buildIndex(t, true)

			blob, err := Encode(x, c)
			require.NoError(t, err)
			got, err := Decode(blob, index.Options{})
			require.NoError(t, err)

			assertSameIndex(t, x, got)
			assert.True(t, got.Complete())
			assert.Equal(t, []string{"D1", "D2", "D3"}, got.Search("Hanoi"))
			assert.Equal(t, 2, got.CoOccurrence("Hanoi", "Mai"))
		})
	}
}

func TestEncode_CompressionShrinksPayload(t *testing.T) {
	x := buildIndex(t, true)

	raw, err := Encode(x, CompressionNone)
	require.NoError(t, err)
	z, err := Encode(x, CompressionZstd)
	require.NoError(t, err)

	h, err := ReadHeader(z)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, h.Compression)
	assert.Less(t, len(z), len(raw))
}

func TestCompress_IncompressibleFallsBackToRaw(t *testing.T) {
	data := make([]byte, 4096)
	r := rand.New(rand.NewSource(7))
	_, _ = r.Read(data)

	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		out, used, err := compress(data, c)
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, used, c.String())
		assert.Equal(t, data, out)
	}
}

func TestEncode_PartialFlag(t *testing.T) {
	x := buildIndex(t, false)

	blob, err := Encode(x, CompressionLZ4)
	require.NoError(t, err)
	h, err := ReadHeader(blob)
	require.NoError(t, err)
	assert.False(t, h.Complete())

	got, err := Decode(blob, index.Options{})
	require.NoError(t, err)
	assert.False(t, got.Complete())
}

func TestEncodeDecode_EmptyIndex(t *testing.T) {
	x := index.New(index.Options{})
	x.MarkComplete()

	blob, err := Encode(x, CompressionZstd)
	require.NoError(t, err)
	got, err := Decode(blob, index.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stats().Entities)
	assert.Empty(t, got.TopEntities(10))
}

func TestDecode_Corrupt(t *testing.T) {
	blob, err := Encode(buildIndex(t, true), CompressionZstd)
	require.NoError(t, err)

	flip := func(i int) []byte {
		b := append([]byte(nil), blob...)
		b[i] ^= 0xFF
		return b
	}
	badVersion := append([]byte(nil), blob...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 99)

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"truncated", blob[:len(blob)-1]},
		{"bad magic", flip(0)},
		{"bad version", badVersion},
		{"payload bit flip", flip(HeaderSize + 3)},
		{"checksum bit flip", flip(len(blob) - FooterSize)},
		{"footer magic", flip(len(blob) - FooterSize + 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.blob, index.Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSnapshotCorrupt)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZstd} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestLocalStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.eidx")
	store := NewLocalStore(path)
	x := buildIndex(t, true)

	loc, err := Save(ctx, store, x, CompressionZstd, nil)
	require.NoError(t, err)
	assert.Equal(t, path, loc)

	got, err := Load(ctx, store, index.Options{}, nil)
	require.NoError(t, err)
	assertSameIndex(t, x, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestLocalStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(filepath.Join(t.TempDir(), "index.eidx"))

	_, err := Save(ctx, store, buildIndex(t, false), CompressionNone, nil)
	require.NoError(t, err)
	_, err = Save(ctx, store, buildIndex(t, true), CompressionNone, nil)
	require.NoError(t, err)

	got, err := Load(ctx, store, index.Options{}, nil)
	require.NoError(t, err)
	assert.True(t, got.Complete())
}

func TestLoad_MissingIsRebuildRequired(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent.eidx"))

	_, err := Load(context.Background(), store, index.Options{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRebuildRequired)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
}

func TestLoad_CorruptIsRebuildRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.eidx")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot at all, just some bytes that are long enough to pass the length check......"), 0o644))

	_, err := Load(context.Background(), NewLocalStore(path), index.Options{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRebuildRequired)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotCorrupt)
}

func TestNewStore_Unknown(t *testing.T) {
	_, err := NewStore(context.Background(), configWithStore("ftp"))
	assert.Error(t, err)
}

func configWithStore(kind string) config.SnapshotConfig {
	return config.SnapshotConfig{Store: kind, Path: "index.eidx"}
}
