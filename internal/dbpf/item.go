package dbpf

import (
	"encoding/binary"
	"fmt"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
)

// compressedSizeMarker is the persistent top bit of the on-disk compressed
// size field. It is a format marker, not part of the magnitude.
const compressedSizeMarker = 0x80000000

// Compression labels, 16-bit little-endian on disk.
const (
	labelUncompressed = 0x0000
	labelCompressed   = 0xFFFF
)

// Decompressor turns a compressed payload into exactly expectedLen bytes or
// fails.
type Decompressor func(compressed []byte, expectedLen uint32) ([]byte, error)

// Item is one package entry. ChunkOffset addresses the data region of the
// stream relative to its virtual base, independent of where the index lives.
type Item struct {
	Key            ResourceKey
	Compressed     bool
	ChunkOffset    uint64
	MemSize        uint32
	CompressedSize uint32
	Saved          bool
}

func decodeItem(s *binstream.Stream, variant Variant, sharedType, sharedGroup int64) (Item, error) {
	var it Item
	le := binary.LittleEndian

	if sharedType >= 0 {
		it.Key.Type = uint32(sharedType)
	} else {
		v, err := s.ReadInt32(le)
		if err != nil {
			return it, wrapFormatErr(err, "item type")
		}
		it.Key.Type = uint32(v)
	}
	if sharedGroup >= 0 {
		it.Key.Group = uint32(sharedGroup)
	} else {
		v, err := s.ReadInt32(le)
		if err != nil {
			return it, wrapFormatErr(err, "item group")
		}
		it.Key.Group = uint32(v)
	}
	inst, err := s.ReadInt32(le)
	if err != nil {
		return it, wrapFormatErr(err, "item instance")
	}
	it.Key.Instance = uint32(inst)

	if variant == Alternate {
		off, err := s.ReadInt64(le)
		if err != nil {
			return it, wrapFormatErr(err, "item chunk offset")
		}
		it.ChunkOffset = uint64(off)
	} else {
		off, err := s.ReadUint32(le)
		if err != nil {
			return it, wrapFormatErr(err, "item chunk offset")
		}
		it.ChunkOffset = uint64(off)
	}

	csize, err := s.ReadInt32(le)
	if err != nil {
		return it, wrapFormatErr(err, "item compressed size")
	}
	it.CompressedSize = uint32(csize) &^ compressedSizeMarker
	msize, err := s.ReadInt32(le)
	if err != nil {
		return it, wrapFormatErr(err, "item mem size")
	}
	it.MemSize = uint32(msize)

	label, err := s.ReadUint16(le)
	if err != nil {
		return it, wrapFormatErr(err, "item compression label")
	}
	switch label {
	case labelUncompressed:
		it.Compressed = false
	case labelCompressed:
		it.Compressed = true
	default:
		return it, formatErrf("item %s: invalid compression label 0x%04X", it.Key, label)
	}

	saved, err := s.ReadBool()
	if err != nil {
		return it, wrapFormatErr(err, "item %s: saved flag", it.Key)
	}
	it.Saved = saved
	if _, err := s.ReadUint8(); err != nil {
		return it, wrapFormatErr(err, "item %s: padding", it.Key)
	}
	return it, nil
}

func (it Item) encode(s *binstream.Stream, variant Variant, sharedType, sharedGroup int64) error {
	le := binary.LittleEndian

	if sharedType < 0 {
		if err := s.WriteInt32(le, int32(it.Key.Type)); err != nil {
			return err
		}
	}
	if sharedGroup < 0 {
		if err := s.WriteInt32(le, int32(it.Key.Group)); err != nil {
			return err
		}
	}
	if err := s.WriteInt32(le, int32(it.Key.Instance)); err != nil {
		return err
	}

	if variant == Alternate {
		if err := s.WriteInt64(le, int64(it.ChunkOffset)); err != nil {
			return err
		}
	} else {
		if err := s.WriteUint32(le, uint32(it.ChunkOffset)); err != nil {
			return err
		}
	}

	if err := s.WriteUint32(le, it.CompressedSize|compressedSizeMarker); err != nil {
		return err
	}
	if err := s.WriteUint32(le, it.MemSize); err != nil {
		return err
	}
	label := uint16(labelUncompressed)
	if it.Compressed {
		label = labelCompressed
	}
	if err := s.WriteUint16(le, label); err != nil {
		return err
	}
	if err := s.WriteBool(it.Saved); err != nil {
		return err
	}
	return s.WriteUint8(0)
}

// Payload materializes the item's bytes. The seek honors the stream's
// virtual base, so items of an embedded package resolve against the embedded
// data region and not the outer file.
func (it Item) Payload(s *binstream.Stream, decompress Decompressor) ([]byte, error) {
	if off := int64(it.ChunkOffset); off < 0 {
		return nil, formatErrf("item %s: negative chunk offset %d", it.Key, off)
	}
	s.Seek(int64(it.ChunkOffset))
	if !it.Compressed {
		return s.ReadBytes(int(it.MemSize))
	}

	raw, err := s.ReadBytes(int(it.CompressedSize))
	if err != nil {
		return nil, err
	}
	out, err := decompress(raw, it.MemSize)
	if err != nil {
		return nil, fmt.Errorf("decompress item %s: %w", it.Key, err)
	}
	if uint32(len(out)) != it.MemSize {
		return nil, fmt.Errorf("decompress item %s: got %d bytes, want %d", it.Key, len(out), it.MemSize)
	}
	return out, nil
}
