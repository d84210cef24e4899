package writer

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/500gitnotfound/rkyv/errors"
)

// Stream forwards writes to an io.Writer and counts the bytes it accepted.
type Stream struct {
	dst io.Writer
	pos int
}

// NewStream returns a sink writing to dst.
func NewStream(dst io.Writer) *Stream {
	return &Stream{dst: dst}
}

func (s *Stream) Pos() int { return s.pos }

func (s *Stream) Write(p []byte) error {
	n, err := s.dst.Write(p)
	if n > 0 {
		s.pos += n
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return errors.New(errors.ComponentWriter, errors.KindIO).
			Cause(err).
			Detail("wrote %d of %d bytes at position %d", n, len(p), s.pos-n).
			Build()
	}
	return nil
}

// Compressed writes a zstd frame to an io.Writer. Pos counts uncompressed
// archive bytes, so positions computed during encoding stay valid for the
// decompressed archive.
type Compressed struct {
	Stream
	enc *zstd.Encoder
}

// NewCompressed returns a sink that compresses into dst at the given zstd
// level. Level 0 selects the encoder default.
func NewCompressed(dst io.Writer, level int) (*Compressed, error) {
	opts := []zstd.EOption{}
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(dst, opts...)
	if err != nil {
		return nil, errors.IO(err, "create zstd encoder")
	}
	return &Compressed{Stream: Stream{dst: enc}, enc: enc}, nil
}

// Close flushes the zstd frame. The underlying writer is not closed.
func (c *Compressed) Close() error {
	if err := c.enc.Close(); err != nil {
		return errors.IO(err, "finish zstd frame")
	}
	return nil
}
