package binstream

import (
	"errors"
	"io"
	"os"
)

// errNegativeOffset matches the os.File contract: ReadAt and WriteAt reject
// offsets before the start of the medium instead of panicking.
var errNegativeOffset = errors.New("negative offset")

// medium is the byte-addressable store behind a Stream. Both backends keep
// identical addressing semantics so format code never knows which one it is
// reading.
type medium interface {
	io.ReaderAt
	io.WriterAt
	Len() int64
	Close() error
}

type fileMedium struct {
	f *os.File
}

func (m *fileMedium) ReadAt(p []byte, off int64) (int, error)  { return m.f.ReadAt(p, off) }
func (m *fileMedium) WriteAt(p []byte, off int64) (int, error) { return m.f.WriteAt(p, off) }
func (m *fileMedium) Close() error                             { return m.f.Close() }

func (m *fileMedium) Len() int64 {
	info, err := m.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// memoryMedium is a growable buffer. The logical length is the highest byte
// ever written, which may be less than cap(buf).
type memoryMedium struct {
	buf    []byte
	length int64
}

func (m *memoryMedium) Len() int64   { return m.length }
func (m *memoryMedium) Close() error { return nil }

func (m *memoryMedium) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= m.length {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:m.length])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memoryMedium) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		m.grow(end)
	}
	n := copy(m.buf[off:end], p)
	if end > m.length {
		m.length = end
	}
	return n, nil
}

func (m *memoryMedium) grow(need int64) {
	newCap := int64(cap(m.buf))
	if newCap < 64 {
		newCap = 64
	}
	for newCap < need {
		newCap *= 2
	}
	next := make([]byte, need, newCap)
	copy(next, m.buf)
	m.buf = next
}
