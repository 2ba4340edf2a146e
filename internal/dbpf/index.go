package dbpf

import (
	"encoding/binary"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
)

// Index header flag word, little-endian.
const (
	flagSharedType  = 1 << 0 // a block-shared type id follows
	flagSharedGroup = 1 << 1 // a block-shared group id follows
	flagReserved    = 1 << 2 // always set on write, value written as zero
)

// SharedNone marks a shared field as absent: every item in the block carries
// its own value.
const SharedNone = int64(-1)

// Index is the ordered item table of one block. SharedType and SharedGroup
// hold the block-shared ids, or SharedNone when the corresponding field is
// stored per item.
type Index struct {
	SharedType  int64
	SharedGroup int64
	Items       []Item
}

// NewIndex returns an empty index with both fields stored per item.
func NewIndex() *Index {
	return &Index{SharedType: SharedNone, SharedGroup: SharedNone}
}

// decodeShared reads the flag word and the optional shared fields, leaving
// the cursor at the start of the item table.
func (x *Index) decodeShared(s *binstream.Stream) error {
	le := binary.LittleEndian

	flags, err := s.ReadUint32(le)
	if err != nil {
		return wrapFormatErr(err, "index flags")
	}
	x.SharedType = SharedNone
	x.SharedGroup = SharedNone
	if flags&flagSharedType != 0 {
		v, err := s.ReadUint32(le)
		if err != nil {
			return wrapFormatErr(err, "index shared type")
		}
		x.SharedType = int64(v)
	}
	if flags&flagSharedGroup != 0 {
		v, err := s.ReadUint32(le)
		if err != nil {
			return wrapFormatErr(err, "index shared group")
		}
		x.SharedGroup = int64(v)
	}
	if flags&flagReserved != 0 {
		if _, err := s.ReadUint32(le); err != nil {
			return wrapFormatErr(err, "index reserved field")
		}
	}
	return nil
}

// decodeItems reads count items from the cursor. Shared values resolved by
// decodeShared are assigned to every item during decode, so items come out
// fully constructed.
func (x *Index) decodeItems(s *binstream.Stream, variant Variant, count int32) error {
	// Items are fixed-size, so the declared count is checked against the
	// bytes actually left in the stream before anything is allocated. A
	// corrupt header cannot force an oversized table into memory.
	size := x.itemSize(variant)
	remaining := s.Len() - s.PositionAbsolute()
	if count < 0 || int64(count)*size > remaining {
		return formatErrf("index declares %d items (%d bytes) but %d bytes remain", count, int64(count)*size, remaining)
	}
	x.Items = make([]Item, 0, count)
	for i := int32(0); i < count; i++ {
		it, err := decodeItem(s, variant, x.SharedType, x.SharedGroup)
		if err != nil {
			return wrapFormatErr(err, "index item %d of %d", i, count)
		}
		x.Items = append(x.Items, it)
	}
	return nil
}

// itemSize returns the encoded byte size of one item for this index's
// shared-field configuration.
func (x *Index) itemSize(variant Variant) int64 {
	size := int64(16) // instance, compressed size, mem size, label, saved, pad
	if variant == Alternate {
		size += 8
	} else {
		size += 4
	}
	if x.SharedType == SharedNone {
		size += 4
	}
	if x.SharedGroup == SharedNone {
		size += 4
	}
	return size
}

// encode writes the shared-field block and every item at the cursor. The
// shared type and group are emitted only when set; the reserved field is
// always emitted as zero.
func (x *Index) encode(s *binstream.Stream, variant Variant) error {
	le := binary.LittleEndian

	flags := uint32(flagReserved)
	if x.SharedType != SharedNone {
		flags |= flagSharedType
	}
	if x.SharedGroup != SharedNone {
		flags |= flagSharedGroup
	}
	if err := s.WriteUint32(le, flags); err != nil {
		return err
	}
	if x.SharedType != SharedNone {
		if err := s.WriteUint32(le, uint32(x.SharedType)); err != nil {
			return err
		}
	}
	if x.SharedGroup != SharedNone {
		if err := s.WriteUint32(le, uint32(x.SharedGroup)); err != nil {
			return err
		}
	}
	if err := s.WriteUint32(le, 0); err != nil {
		return err
	}

	for _, it := range x.Items {
		if err := it.encode(s, variant, x.SharedType, x.SharedGroup); err != nil {
			return err
		}
	}
	return nil
}
