package writer

import "github.com/500gitnotfound/rkyv/errors"

// Fixed writes into a caller-supplied buffer and never grows it. A write
// that does not fit fails with a capacity error and commits nothing.
type Fixed struct {
	buf []byte
	pos int
}

// NewFixed returns a sink over the full capacity of buf.
func NewFixed(buf []byte) *Fixed {
	return &Fixed{buf: buf[:cap(buf)]}
}

func (f *Fixed) Pos() int { return f.pos }

func (f *Fixed) Write(p []byte) error {
	if len(p) > len(f.buf)-f.pos {
		return errors.Capacity(len(p), len(f.buf)-f.pos)
	}
	f.pos += copy(f.buf[f.pos:], p)
	return nil
}

// Bytes returns the committed prefix of the underlying buffer.
func (f *Fixed) Bytes() []byte { return f.buf[:f.pos] }

// Remaining returns the number of bytes that can still be written.
func (f *Fixed) Remaining() int { return len(f.buf) - f.pos }
