package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
)

// ReadHeader validates framing and checksum and returns the header without
// decoding the payload.
func ReadHeader(blob []byte) (Header, error) {
	if len(blob) < HeaderSize+FooterSize {
		return Header{}, corrupt("blob too short: %d bytes", len(blob))
	}
	magic := binary.LittleEndian.Uint32(blob[0:4])
	if magic != MagicBytes {
		return Header{}, corrupt("bad magic bytes %x", magic)
	}
	h := Header{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(blob[4:8]),
		Flags:       binary.LittleEndian.Uint32(blob[8:12]),
		Compression: Compression(blob[12]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(blob[16:24])),
		Entities:    binary.LittleEndian.Uint64(blob[24:32]),
		Docs:        binary.LittleEndian.Uint64(blob[32:40]),
		Merged:      binary.LittleEndian.Uint64(blob[40:48]),
		RawSize:     binary.LittleEndian.Uint64(blob[48:56]),
		PayloadSize: binary.LittleEndian.Uint64(blob[56:64]),
	}
	if h.Version != FormatVersion {
		return Header{}, corrupt("unsupported format version %d", h.Version)
	}
	if uint64(len(blob)) != uint64(HeaderSize)+h.PayloadSize+uint64(FooterSize) {
		return Header{}, corrupt("blob is %d bytes, header expects %d", len(blob), uint64(HeaderSize)+h.PayloadSize+uint64(FooterSize))
	}
	footer := blob[len(blob)-FooterSize:]
	if fm := binary.LittleEndian.Uint32(footer[4:8]); fm != FooterMagic {
		return Header{}, corrupt("bad footer magic %x", fm)
	}
	want := binary.LittleEndian.Uint32(footer[0:4])
	if got := crc32.ChecksumIEEE(blob[:len(blob)-FooterSize]); got != want {
		return Header{}, corrupt("checksum mismatch: got %08x, want %08x", got, want)
	}
	return h, nil
}

// Decode rebuilds a sealed index from a snapshot blob. Every failure matches
// errors.ErrSnapshotCorrupt.
func Decode(blob []byte, opts index.Options) (*index.Index, error) {
	h, err := ReadHeader(blob)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(blob[HeaderSize:len(blob)-FooterSize], h.Compression, h.RawSize)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	parts, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}
	if uint64(len(parts.Entities)) != h.Entities || uint64(len(parts.Docs)) != h.Docs {
		return nil, corrupt("payload has %d entities/%d docs, header says %d/%d",
			len(parts.Entities), len(parts.Docs), h.Entities, h.Docs)
	}
	parts.Merged = int(h.Merged)
	parts.Complete = h.Complete()

	x, err := index.Restore(parts, opts)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	return x, nil
}

func decodePayload(raw []byte) (index.Parts, error) {
	d := &decoder{buf: raw}
	var p index.Parts

	ndocs := d.count()
	p.Docs = make([]string, 0, ndocs)
	for i := 0; i < ndocs && d.err == nil; i++ {
		p.Docs = append(p.Docs, d.string())
	}

	nents := d.count()
	p.Entities = make([]index.EntityPart, 0, nents)
	for i := 0; i < nents && d.err == nil; i++ {
		e := index.EntityPart{
			Text:      d.string(),
			Frequency: int(d.uvarint()),
		}
		bmBytes := d.bytes(int(d.uvarint()))
		if d.err != nil {
			break
		}
		e.Postings = roaring.New()
		if _, err := e.Postings.ReadFrom(bytes.NewReader(bmBytes)); err != nil {
			return index.Parts{}, corrupt("reading postings for %q: %v", e.Text, err)
		}
		nrel := d.count()
		e.Related = make([]index.Partner, 0, nrel)
		var prev uint64
		for j := 0; j < nrel && d.err == nil; j++ {
			prev += d.uvarint()
			e.Related = append(e.Related, index.Partner{Entity: uint32(prev), Count: int(d.uvarint())})
		}
		p.Entities = append(p.Entities, e)
	}
	if d.err != nil {
		return index.Parts{}, d.err
	}
	if d.off != len(d.buf) {
		return index.Parts{}, corrupt("%d trailing payload bytes", len(d.buf)-d.off)
	}
	return p, nil
}

// decoder reads uvarint-framed fields and latches the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.err = corrupt("bad varint at offset %d", d.off)
		return 0
	}
	d.off += n
	return v
}

// count reads a length that must fit in the remaining payload.
func (d *decoder) count() int {
	v := d.uvarint()
	if d.err == nil && v > uint64(len(d.buf)-d.off) {
		d.err = corrupt("count %d exceeds remaining %d bytes", v, len(d.buf)-d.off)
		return 0
	}
	return int(v)
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.err = corrupt("field of %d bytes overruns payload at offset %d", n, d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) string() string {
	return string(d.bytes(d.count()))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}
