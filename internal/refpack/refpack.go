// Package refpack decompresses RefPack (EA QFS) payloads, the compression
// scheme used by the package container for compressed items.
package refpack

import (
	"errors"
	"fmt"
)

var (
	// ErrBadHeader is returned when the payload does not start with a
	// RefPack signature.
	ErrBadHeader = errors.New("refpack: bad header")
	// ErrCorrupt is returned when a command would read or write out of
	// bounds.
	ErrCorrupt = errors.New("refpack: corrupt data")
)

// Decompress expands data into exactly expectedLen bytes. Anything shorter,
// longer or malformed fails; the caller treats a failure as a per-item
// error, never as a fatal one.
func Decompress(data []byte, expectedLen uint32) ([]byte, error) {
	if len(data) < 2 || data[0]&0x3E != 0x10 || data[1] != 0xFB {
		return nil, ErrBadHeader
	}
	large := data[0]&0x80 != 0
	pos := 2

	// The header length field is big-endian: 3 bytes, or 4 when the large
	// flag is set.
	n := 3
	if large {
		n = 4
	}
	if len(data) < pos+n {
		return nil, ErrBadHeader
	}
	var headerLen uint32
	for i := 0; i < n; i++ {
		headerLen = headerLen<<8 | uint32(data[pos+i])
	}
	pos += n
	if headerLen != expectedLen {
		return nil, fmt.Errorf("refpack: header says %d bytes, expected %d", headerLen, expectedLen)
	}

	out := make([]byte, 0, expectedLen)
	copyBack := func(distance, count int) error {
		src := len(out) - distance
		if src < 0 {
			return ErrCorrupt
		}
		// Byte-by-byte so an overlapping reference repeats recent output.
		for i := 0; i < count; i++ {
			out = append(out, out[src+i])
		}
		return nil
	}
	literal := func(count int) error {
		if pos+count > len(data) {
			return ErrCorrupt
		}
		out = append(out, data[pos:pos+count]...)
		pos += count
		return nil
	}

	for pos < len(data) {
		b0 := int(data[pos])
		switch {
		case b0 < 0x80: // two-byte command
			if pos+2 > len(data) {
				return nil, ErrCorrupt
			}
			b1 := int(data[pos+1])
			pos += 2
			plain := b0 & 0x03
			distance := ((b0 & 0x60) << 3) + b1 + 1
			count := ((b0 >> 2) & 0x07) + 3
			if err := literal(plain); err != nil {
				return nil, err
			}
			if err := copyBack(distance, count); err != nil {
				return nil, err
			}
		case b0 < 0xC0: // three-byte command
			if pos+3 > len(data) {
				return nil, ErrCorrupt
			}
			b1 := int(data[pos+1])
			b2 := int(data[pos+2])
			pos += 3
			plain := b1 >> 6
			distance := ((b1 & 0x3F) << 8) + b2 + 1
			count := (b0 & 0x3F) + 4
			if err := literal(plain); err != nil {
				return nil, err
			}
			if err := copyBack(distance, count); err != nil {
				return nil, err
			}
		case b0 < 0xE0: // four-byte command
			if pos+4 > len(data) {
				return nil, ErrCorrupt
			}
			b1 := int(data[pos+1])
			b2 := int(data[pos+2])
			b3 := int(data[pos+3])
			pos += 4
			plain := b0 & 0x03
			distance := ((b0 & 0x10) << 12) + (b1 << 8) + b2 + 1
			count := ((b0 & 0x0C) << 6) + b3 + 5
			if err := literal(plain); err != nil {
				return nil, err
			}
			if err := copyBack(distance, count); err != nil {
				return nil, err
			}
		case b0 < 0xFC: // literal run
			pos++
			if err := literal(((b0 & 0x1F) + 1) << 2); err != nil {
				return nil, err
			}
		default: // stop command with 0-3 trailing literals
			pos++
			if err := literal(b0 & 0x03); err != nil {
				return nil, err
			}
			pos = len(data)
		}
	}

	if uint32(len(out)) != expectedLen {
		return nil, fmt.Errorf("refpack: produced %d bytes, expected %d", len(out), expectedLen)
	}
	return out, nil
}
