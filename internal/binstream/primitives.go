package binstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// Every multi-byte accessor takes the byte order explicitly: the archive
// formats decoded on top of this package fix width and endianness per field,
// never per platform.

func (s *Stream) ReadUint8() (uint8, error) {
	var b [1]byte
	if err := s.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Stream) ReadInt8() (int8, error) {
	v, err := s.ReadUint8()
	return int8(v), err
}

// ReadBool reads one byte that must be exactly 0 or 1.
func (s *Stream) ReadBool() (bool, error) {
	v, err := s.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("invalid boolean byte 0x%02X", v)
	}
	return v == 1, nil
}

func (s *Stream) ReadUint16(order binary.ByteOrder) (uint16, error) {
	var b [2]byte
	if err := s.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint16(b[:]), nil
}

func (s *Stream) ReadInt16(order binary.ByteOrder) (int16, error) {
	v, err := s.ReadUint16(order)
	return int16(v), err
}

func (s *Stream) ReadUint32(order binary.ByteOrder) (uint32, error) {
	var b [4]byte
	if err := s.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint32(b[:]), nil
}

func (s *Stream) ReadInt32(order binary.ByteOrder) (int32, error) {
	v, err := s.ReadUint32(order)
	return int32(v), err
}

func (s *Stream) ReadUint64(order binary.ByteOrder) (uint64, error) {
	var b [8]byte
	if err := s.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint64(b[:]), nil
}

func (s *Stream) ReadInt64(order binary.ByteOrder) (int64, error) {
	v, err := s.ReadUint64(order)
	return int64(v), err
}

func (s *Stream) ReadFloat32(order binary.ByteOrder) (float32, error) {
	v, err := s.ReadUint32(order)
	return math.Float32frombits(v), err
}

func (s *Stream) ReadFloat64(order binary.ByteOrder) (float64, error) {
	v, err := s.ReadUint64(order)
	return math.Float64frombits(v), err
}

// ReadBools fills dst, applying the same 0/1 strictness as ReadBool per
// element.
func (s *Stream) ReadBools(dst []bool) error {
	raw, err := s.ReadBytes(len(dst))
	if err != nil {
		return err
	}
	for i, v := range raw {
		if v > 1 {
			return fmt.Errorf("invalid boolean byte 0x%02X at element %d", v, i)
		}
		dst[i] = v == 1
	}
	return nil
}

// ReadUint32s fills dst element by element in the given order.
func (s *Stream) ReadUint32s(order binary.ByteOrder, dst []uint32) error {
	raw, err := s.ReadBytes(4 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = order.Uint32(raw[i*4:])
	}
	return nil
}

// ReadString reads n bytes of ASCII text.
func (s *Stream) ReadString(n int) (string, error) {
	raw, err := s.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ReadCString reads ASCII text up to (and consuming) a NUL terminator.
func (s *Stream) ReadCString() (string, error) {
	var out []byte
	for {
		b, err := s.ReadUint8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
}

// ReadUTF16 reads n UTF-16 code units in the given order.
func (s *Stream) ReadUTF16(order binary.ByteOrder, n int) (string, error) {
	units := make([]uint16, n)
	raw, err := s.ReadBytes(2 * n)
	if err != nil {
		return "", err
	}
	for i := range units {
		units[i] = order.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// ReadUTF16C reads UTF-16 code units up to (and consuming) a NUL terminator.
func (s *Stream) ReadUTF16C(order binary.ByteOrder) (string, error) {
	var units []uint16
	for {
		u, err := s.ReadUint16(order)
		if err != nil {
			return "", err
		}
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
}

func (s *Stream) WriteUint8(v uint8) error {
	return s.WriteBytes([]byte{v})
}

func (s *Stream) WriteInt8(v int8) error {
	return s.WriteUint8(uint8(v))
}

func (s *Stream) WriteBool(v bool) error {
	if v {
		return s.WriteUint8(1)
	}
	return s.WriteUint8(0)
}

func (s *Stream) WriteUint16(order binary.ByteOrder, v uint16) error {
	var b [2]byte
	order.PutUint16(b[:], v)
	return s.WriteBytes(b[:])
}

func (s *Stream) WriteInt16(order binary.ByteOrder, v int16) error {
	return s.WriteUint16(order, uint16(v))
}

func (s *Stream) WriteUint32(order binary.ByteOrder, v uint32) error {
	var b [4]byte
	order.PutUint32(b[:], v)
	return s.WriteBytes(b[:])
}

func (s *Stream) WriteInt32(order binary.ByteOrder, v int32) error {
	return s.WriteUint32(order, uint32(v))
}

func (s *Stream) WriteUint64(order binary.ByteOrder, v uint64) error {
	var b [8]byte
	order.PutUint64(b[:], v)
	return s.WriteBytes(b[:])
}

func (s *Stream) WriteInt64(order binary.ByteOrder, v int64) error {
	return s.WriteUint64(order, uint64(v))
}

func (s *Stream) WriteFloat32(order binary.ByteOrder, v float32) error {
	return s.WriteUint32(order, math.Float32bits(v))
}

func (s *Stream) WriteFloat64(order binary.ByteOrder, v float64) error {
	return s.WriteUint64(order, math.Float64bits(v))
}

func (s *Stream) WriteBools(src []bool) error {
	raw := make([]byte, len(src))
	for i, v := range src {
		if v {
			raw[i] = 1
		}
	}
	return s.WriteBytes(raw)
}

func (s *Stream) WriteUint32s(order binary.ByteOrder, src []uint32) error {
	raw := make([]byte, 4*len(src))
	for i, v := range src {
		order.PutUint32(raw[i*4:], v)
	}
	return s.WriteBytes(raw)
}

// WriteString writes ASCII text with no terminator or length prefix.
func (s *Stream) WriteString(v string) error {
	return s.WriteBytes([]byte(v))
}

// WriteCString writes ASCII text followed by a NUL terminator.
func (s *Stream) WriteCString(v string) error {
	if err := s.WriteBytes([]byte(v)); err != nil {
		return err
	}
	return s.WriteUint8(0)
}

// WriteUTF16 writes the string as UTF-16 code units in the given order.
func (s *Stream) WriteUTF16(order binary.ByteOrder, v string) error {
	units := utf16.Encode([]rune(v))
	raw := make([]byte, 2*len(units))
	for i, u := range units {
		order.PutUint16(raw[i*2:], u)
	}
	return s.WriteBytes(raw)
}

// WriteUTF16C writes the string as UTF-16 followed by a NUL code unit.
func (s *Stream) WriteUTF16C(order binary.ByteOrder, v string) error {
	if err := s.WriteUTF16(order, v); err != nil {
		return err
	}
	return s.WriteUint16(order, 0)
}
