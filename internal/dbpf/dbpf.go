// Package dbpf models the DBPF/DBBF package container: header, index, item
// table, and the two closely related header layouts. All decoding runs on a
// binstream.Stream, so a package embedded inside another stream decodes the
// same way as a standalone file.
package dbpf

import (
	"encoding/binary"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
)

// Variant selects the header layout, decided once from the 4-byte magic.
type Variant int

const (
	// Primary is the "DBPF" layout with unsigned 32-bit index fields.
	Primary Variant = iota
	// Alternate is the "DBBF" layout. Its index size and offset are signed
	// 32-bit after a shorter reserved run. The narrower widths are a quirk
	// of the format and are preserved as observed.
	Alternate
)

func (v Variant) String() string {
	if v == Alternate {
		return "DBBF"
	}
	return "DBPF"
}

const (
	magicPrimary   = "DBPF"
	magicAlternate = "DBBF"
)

// File is the whole-package model. Offsets and sizes are derived during
// write, never set by callers.
type File struct {
	MajorVersion      int32
	MinorVersion      int32
	IndexMajorVersion int32
	IndexMinorVersion int32
	Variant           Variant
	IndexOffset       uint64
	IndexSize         uint64
	IndexCount        int32
	Index             *Index
}

// New returns an empty Primary-variant file with a per-item index.
func New() *File {
	return &File{Variant: Primary, Index: NewIndex()}
}

// ReadAll decodes header, index and item table in one pass.
func (f *File) ReadAll(s *binstream.Stream) error {
	if err := f.ReadHeader(s); err != nil {
		return err
	}
	return f.ReadIndex(s)
}

// ReadHeader decodes the magic and the variant-specific header fields. The
// magic decides every subsequent field width for this package; anything but
// the two known values is fatal.
func (f *File) ReadHeader(s *binstream.Stream) error {
	le := binary.LittleEndian

	s.Seek(0)
	magic, err := s.ReadString(4)
	if err != nil {
		return wrapFormatErr(err, "package magic")
	}
	switch magic {
	case magicPrimary:
		f.Variant = Primary
	case magicAlternate:
		f.Variant = Alternate
	default:
		return formatErrf("unrecognized package magic %q", magic)
	}

	if f.MajorVersion, err = s.ReadInt32(le); err != nil {
		return wrapFormatErr(err, "major version")
	}
	if f.MinorVersion, err = s.ReadInt32(le); err != nil {
		return wrapFormatErr(err, "minor version")
	}
	s.Skip(20)
	if f.IndexMajorVersion, err = s.ReadInt32(le); err != nil {
		return wrapFormatErr(err, "index major version")
	}
	if f.IndexCount, err = s.ReadInt32(le); err != nil {
		return wrapFormatErr(err, "index count")
	}

	if f.Variant == Primary {
		s.Skip(4)
		size, err := s.ReadUint32(le)
		if err != nil {
			return wrapFormatErr(err, "index size")
		}
		f.IndexSize = uint64(size)
		s.Skip(12)
		if f.IndexMinorVersion, err = s.ReadInt32(le); err != nil {
			return wrapFormatErr(err, "index minor version")
		}
		off, err := s.ReadUint32(le)
		if err != nil {
			return wrapFormatErr(err, "index offset")
		}
		f.IndexOffset = uint64(off)
		return nil
	}

	// Alternate keeps only 8 reserved bytes here and stores the index size
	// and offset as signed 32-bit. Packages past 2^31 would misdecode; the
	// quirk is kept, not fixed.
	s.Skip(4)
	size, err := s.ReadInt32(le)
	if err != nil {
		return wrapFormatErr(err, "index size")
	}
	f.IndexSize = uint64(size)
	s.Skip(4)
	if f.IndexMinorVersion, err = s.ReadInt32(le); err != nil {
		return wrapFormatErr(err, "index minor version")
	}
	off, err := s.ReadInt32(le)
	if err != nil {
		return wrapFormatErr(err, "index offset")
	}
	f.IndexOffset = uint64(off)
	return nil
}

// ReadIndex seeks to the recorded index offset and decodes the shared-field
// block, then the item table. The table starts wherever the shared-field
// block ends, so its position is taken from the stream after that block is
// decoded, not computed from the header.
func (f *File) ReadIndex(s *binstream.Stream) error {
	f.Index = NewIndex()
	s.SeekAbsolute(int64(f.IndexOffset))
	if err := f.Index.decodeShared(s); err != nil {
		return err
	}
	itemTable := s.PositionAbsolute()
	s.SeekAbsolute(itemTable)
	return f.Index.decodeItems(s, f.Variant, f.IndexCount)
}

// WriteIndex writes the index at the cursor, recording the offset where it
// landed and deriving the size from the bytes actually written.
func (f *File) WriteIndex(s *binstream.Stream) error {
	f.IndexOffset = uint64(s.PositionAbsolute())
	f.IndexCount = int32(len(f.Index.Items))
	if err := f.Index.encode(s, f.Variant); err != nil {
		return err
	}
	f.IndexSize = uint64(s.PositionAbsolute()) - f.IndexOffset
	return nil
}

// WriteHeader encodes the header at the start of the stream. Reserved runs
// are written as zeros.
func (f *File) WriteHeader(s *binstream.Stream) error {
	le := binary.LittleEndian

	s.Seek(0)
	magic := magicPrimary
	if f.Variant == Alternate {
		magic = magicAlternate
	}
	if err := s.WriteString(magic); err != nil {
		return err
	}
	if err := s.WriteInt32(le, f.MajorVersion); err != nil {
		return err
	}
	if err := s.WriteInt32(le, f.MinorVersion); err != nil {
		return err
	}
	if err := s.WriteBytes(make([]byte, 20)); err != nil {
		return err
	}
	if err := s.WriteInt32(le, f.IndexMajorVersion); err != nil {
		return err
	}
	if err := s.WriteInt32(le, f.IndexCount); err != nil {
		return err
	}

	if f.Variant == Primary {
		if err := s.WriteBytes(make([]byte, 4)); err != nil {
			return err
		}
		if err := s.WriteUint32(le, uint32(f.IndexSize)); err != nil {
			return err
		}
		if err := s.WriteBytes(make([]byte, 12)); err != nil {
			return err
		}
		if err := s.WriteInt32(le, f.IndexMinorVersion); err != nil {
			return err
		}
		return s.WriteUint32(le, uint32(f.IndexOffset))
	}

	if err := s.WriteBytes(make([]byte, 4)); err != nil {
		return err
	}
	if err := s.WriteInt32(le, int32(f.IndexSize)); err != nil {
		return err
	}
	if err := s.WriteBytes(make([]byte, 4)); err != nil {
		return err
	}
	if err := s.WriteInt32(le, f.IndexMinorVersion); err != nil {
		return err
	}
	return s.WriteInt32(le, int32(f.IndexOffset))
}

// WriteAll writes a placeholder header, appends the index after whatever
// item data the caller has already placed in the stream, then rewrites the
// header with the derived index offset and size.
func (f *File) WriteAll(s *binstream.Stream) error {
	f.IndexCount = int32(len(f.Index.Items))
	if err := f.WriteHeader(s); err != nil {
		return err
	}
	s.SeekAbsolute(s.Len())
	if err := f.WriteIndex(s); err != nil {
		return err
	}
	return f.WriteHeader(s)
}
