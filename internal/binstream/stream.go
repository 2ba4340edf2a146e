// Package binstream provides a seekable, dual-endian cursor over a backing
// file or a growable in-memory buffer. Format code addresses the medium
// through a virtual base offset, so a container embedded at a nonzero
// position (or carved out of a parent's decompressed payload) decodes with
// the same code as a standalone file.
package binstream

import (
	"fmt"
	"io"
	"os"
)

// Stream is a cursor over a medium. All reads are exact-length: a read that
// cannot deliver every requested byte fails and leaves no partial result.
type Stream struct {
	m    medium
	base int64
	pos  int64
}

// Open opens an existing file for reading.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &Stream{m: &fileMedium{f: f}}, nil
}

// Create creates (or truncates) a file for reading and writing.
func Create(path string) (*Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return &Stream{m: &fileMedium{f: f}}, nil
}

// NewMemory returns an empty growable in-memory stream.
func NewMemory() *Stream {
	return &Stream{m: &memoryMedium{}}
}

// NewMemoryBuffer returns an in-memory stream positioned at the start of b.
// The buffer is used directly, not copied.
func NewMemoryBuffer(b []byte) *Stream {
	return &Stream{m: &memoryMedium{buf: b, length: int64(len(b))}}
}

// Close releases the underlying medium. Closing a memory stream is a no-op.
func (s *Stream) Close() error {
	return s.m.Close()
}

// SetBase establishes the logical zero-point used by Seek and Position.
func (s *Stream) SetBase(v int64) { s.base = v }

// Base returns the current virtual base offset.
func (s *Stream) Base() int64 { return s.base }

// Seek positions the cursor at off relative to the virtual base.
func (s *Stream) Seek(off int64) { s.pos = s.base + off }

// SeekAbsolute positions the cursor at off in the medium, ignoring the base.
func (s *Stream) SeekAbsolute(off int64) { s.pos = off }

// Skip advances the cursor by n bytes.
func (s *Stream) Skip(n int64) { s.pos += n }

// Position returns the cursor relative to the virtual base.
func (s *Stream) Position() int64 { return s.pos - s.base }

// PositionAbsolute returns the cursor position in the medium.
func (s *Stream) PositionAbsolute() int64 { return s.pos }

// Len returns the logical length of the medium.
func (s *Stream) Len() int64 { return s.m.Len() }

// ReadFull fills p from the cursor, advancing it. Fewer available bytes than
// len(p) is an error and the cursor does not advance.
func (s *Stream) ReadFull(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := s.m.ReadAt(p, s.pos)
	if n < len(p) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(p), s.pos, err)
	}
	s.pos += int64(n)
	return nil
}

// ReadBytes reads exactly n bytes from the cursor. The length is checked
// against the medium before the buffer is allocated, so a corrupt size field
// fails as a short read rather than an oversized allocation.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes at %d: negative length", n, s.pos)
	}
	if int64(n) > s.m.Len()-s.pos {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, s.pos, io.ErrUnexpectedEOF)
	}
	p := make([]byte, n)
	if err := s.ReadFull(p); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteBytes writes p at the cursor, advancing it. On the memory backend a
// write past the current length grows the buffer.
func (s *Stream) WriteBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := s.m.WriteAt(p, s.pos)
	if err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(p), s.pos, err)
	}
	s.pos += int64(n)
	return nil
}

// Bytes returns a snapshot of the full logical content, independent of the
// cursor.
func (s *Stream) Bytes() ([]byte, error) {
	length := s.m.Len()
	p := make([]byte, length)
	if length == 0 {
		return p, nil
	}
	if _, err := s.m.ReadAt(p, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("snapshot %d bytes: %w", length, err)
	}
	return p, nil
}
