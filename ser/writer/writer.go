// Package writer provides positional byte sinks for archive output.
//
// The position of a writer is the number of bytes it has committed. Encoders
// use it as the origin of relative references, so a writer must never report
// a position it has not actually committed.
package writer

// Positional reports the current write position.
type Positional interface {
	// Pos returns the number of bytes committed so far.
	Pos() int
}

// Writer is a byte sink that tracks its position.
type Writer interface {
	Positional
	// Write appends p to the sink. On failure the position reflects only the
	// bytes that were actually committed.
	Write(p []byte) error
}

// Buffer is a growable in-memory sink. Writes never fail.
type Buffer struct {
	buf []byte
}

// NewBuffer returns a Buffer with room for capacity bytes.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

func (b *Buffer) Pos() int { return len(b.buf) }

func (b *Buffer) Write(p []byte) error {
	b.buf = append(b.buf, p...)
	return nil
}

// Bytes returns the committed bytes. The slice aliases the buffer until the
// next Write or Reset.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len is the same as Pos.
func (b *Buffer) Len() int { return len(b.buf) }

// Reset empties the buffer, keeping its storage for reuse.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}
