package exrio

import (
	"fmt"
	"io"
)

// SeekBuffer is an in-memory io.WriteSeeker. The OpenEXR writer seeks back
// to fill in the line offset table once all chunks are written.
type SeekBuffer struct {
	buf []byte
	pos int64
}

func (s *SeekBuffer) Write(p []byte) (int, error) {
	need := int(s.pos) + len(p)
	if need > len(s.buf) {
		if need > cap(s.buf) {
			nb := make([]byte, need, 2*need)
			copy(nb, s.buf)
			s.buf = nb
		} else {
			s.buf = s.buf[:need]
		}
	}
	copy(s.buf[s.pos:], p)
	s.pos += int64(len(p))
	return len(p), nil
}

func (s *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position: %d", pos)
	}
	s.pos = pos
	return pos, nil
}

// Bytes returns the data written so far. It aliases the internal buffer.
func (s *SeekBuffer) Bytes() []byte { return s.buf }

func (s *SeekBuffer) Len() int { return len(s.buf) }
