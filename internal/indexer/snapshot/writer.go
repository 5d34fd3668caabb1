// Package snapshot persists an entity index as one self-describing binary
// blob and stores that blob locally or in S3-compatible object storage.
//
// Layout (little endian):
//
//	header  64 bytes  magic, version, flags, codec, created-at, counts, sizes
//	payload N bytes   doc table + entity table, compressed with codec
//	footer  16 bytes  CRC32 of header and payload, footer magic
//
// The entity table holds, per entity in lexical order: text, frequency, a
// roaring bitmap of document ordinals and delta-encoded co-occurrence
// partners.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
)

const (
	// MagicBytes opens every snapshot ("EIDX").
	MagicBytes uint32 = 0x45494458
	// FooterMagic closes every snapshot ("XDIE").
	FooterMagic   uint32 = 0x58444945
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16

	// FlagComplete is set when the build ran to the end.
	FlagComplete uint32 = 1 << 0
)

// Header is the fixed-size prefix of a snapshot.
type Header struct {
	Magic       uint32
	Version     uint32
	Flags       uint32
	Compression Compression
	CreatedAt   int64
	Entities    uint64
	Docs        uint64
	Merged      uint64
	RawSize     uint64
	PayloadSize uint64
}

// Complete reports whether FlagComplete is set.
func (h Header) Complete() bool { return h.Flags&FlagComplete != 0 }

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.Flags)
	b[12] = byte(h.Compression)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], h.Entities)
	binary.LittleEndian.PutUint64(b[32:40], h.Docs)
	binary.LittleEndian.PutUint64(b[40:48], h.Merged)
	binary.LittleEndian.PutUint64(b[48:56], h.RawSize)
	binary.LittleEndian.PutUint64(b[56:64], h.PayloadSize)
	return b
}

// Encode serialises x into a snapshot blob.
func Encode(x *index.Index, c Compression) ([]byte, error) {
	parts := x.Parts()
	raw, err := encodePayload(parts)
	if err != nil {
		return nil, err
	}
	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compressing snapshot payload: %w", err)
	}

	h := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		Compression: used,
		CreatedAt:   time.Now().Unix(),
		Entities:    uint64(len(parts.Entities)),
		Docs:        uint64(len(parts.Docs)),
		Merged:      uint64(parts.Merged),
		RawSize:     uint64(len(raw)),
		PayloadSize: uint64(len(payload)),
	}
	if parts.Complete {
		h.Flags |= FlagComplete
	}

	blob := make([]byte, 0, HeaderSize+len(payload)+FooterSize)
	blob = append(blob, h.marshal()...)
	blob = append(blob, payload...)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(blob))
	binary.LittleEndian.PutUint32(footer[4:8], FooterMagic)
	return append(blob, footer...), nil
}

func encodePayload(p index.Parts) ([]byte, error) {
	var buf bytes.Buffer
	var scratch bytes.Buffer
	putUvarint(&buf, uint64(len(p.Docs)))
	for _, id := range p.Docs {
		putString(&buf, id)
	}
	putUvarint(&buf, uint64(len(p.Entities)))
	for _, e := range p.Entities {
		putString(&buf, e.Text)
		putUvarint(&buf, uint64(e.Frequency))

		scratch.Reset()
		e.Postings.RunOptimize()
		if _, err := e.Postings.WriteTo(&scratch); err != nil {
			return nil, fmt.Errorf("writing postings for %q: %w", e.Text, err)
		}
		putUvarint(&buf, uint64(scratch.Len()))
		buf.Write(scratch.Bytes())

		putUvarint(&buf, uint64(len(e.Related)))
		var prev uint32
		for _, r := range e.Related {
			putUvarint(&buf, uint64(r.Entity-prev))
			putUvarint(&buf, uint64(r.Count))
			prev = r.Entity
		}
	}
	return buf.Bytes(), nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}
