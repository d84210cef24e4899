// Package rkyv builds zero-copy archives.
//
// An archive is a flat byte buffer whose contents can be used in place
// without a decoding pass. This package provides the entry points that set
// up a serializer for one of the supported environment profiles, hand it to
// an encoder, and collect the finished bytes:
//
//	data, err := rkyv.Encode(func(s ser.Capabilities) error {
//		_, err := encodeTree(s, root)
//		return err
//	}, rkyv.DefaultOptions())
//
// The capabilities themselves live in the ser package and its writer,
// allocator and sharing subpackages.
package rkyv

import (
	"io"

	"go.uber.org/zap"

	"github.com/500gitnotfound/rkyv/internal/logging"
	"github.com/500gitnotfound/rkyv/ser"
	"github.com/500gitnotfound/rkyv/ser/allocator"
	"github.com/500gitnotfound/rkyv/ser/sharing"
	"github.com/500gitnotfound/rkyv/ser/writer"
)

// EncodeFunc writes one archive through s.
type EncodeFunc func(s ser.Capabilities) error

// Logger returns the library logger.
func Logger() *zap.Logger { return logging.Logger() }

// SetLogger installs l as the library logger. Nil restores the no-op logger.
func SetLogger(l *zap.Logger) { logging.SetLogger(l) }

// Encode runs fn against a serializer for opts.Profile and returns the
// archive bytes.
func Encode(fn EncodeFunc, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	buf, err := build(writer.NewBuffer(0), fn, opts)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo runs fn against a serializer writing to dst, compressing the
// output when opts.Compress is set. It returns the uncompressed archive size.
func EncodeTo(dst io.Writer, fn EncodeFunc, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if !opts.Compress {
		w, err := build(writer.NewStream(dst), fn, opts)
		if err != nil {
			return 0, err
		}
		return w.Pos(), nil
	}

	c, err := writer.NewCompressed(dst, opts.CompressionLevel)
	if err != nil {
		return 0, err
	}
	w, err := build(c, fn, opts)
	if err != nil {
		_ = c.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Pos(), nil
}

// EncodeInto runs fn against a bounded serializer that writes into out and
// stages scratch data in scratch, and returns the archive length. Neither
// buffer grows: running out of out fails with a capacity error, running out
// of scratch with an out-of-memory error.
func EncodeInto(out, scratch []byte, fn EncodeFunc) (int, error) {
	log := logging.Logger().With(zap.String("profile", string(ProfileBounded)))
	w, err := run(ser.NewCore(writer.NewFixed(out), scratch), fn)
	if err != nil {
		log.Debug("archive build failed", zap.Error(err))
		return 0, err
	}
	log.Debug("archive built", zap.Int("bytes", w.Pos()))
	return w.Pos(), nil
}

// build assembles the preset for opts around w, runs fn and returns w.
func build[W writer.Writer](w W, fn EncodeFunc, opts Options) (W, error) {
	log := logging.Logger().With(zap.String("profile", string(opts.Profile)))

	var err error
	switch opts.Profile {
	case ProfileBounded:
		size := opts.ScratchSize
		if size == 0 {
			size = DefaultScratchSize
		}
		w, err = run(ser.NewCore(w, make([]byte, size)), fn)
	default:
		if opts.ScratchSize == 0 && opts.MaxScratch == 0 {
			err = allocator.WithArena(func(h *allocator.Handle) error {
				var runErr error
				w, runErr = run(ser.NewDefault(w, h), fn)
				return runErr
			})
		} else {
			arena := allocator.NewArena(allocator.ArenaOptions{
				BlockSize:   opts.ScratchSize,
				MaxCapacity: opts.MaxScratch,
			})
			w, err = run(ser.NewDefault(w, arena.Handle()), fn)
		}
	}
	if err != nil {
		log.Debug("archive build failed", zap.Error(err))
		return w, err
	}
	log.Debug("archive built", zap.Int("bytes", w.Pos()))
	return w, nil
}

// run drives fn and consumes the serializer, returning its writer.
func run[W writer.Writer, A allocator.Allocator, S sharing.Sharing](s *ser.Serializer[W, A, S], fn EncodeFunc) (W, error) {
	if err := fn(s); err != nil {
		var zero W
		return zero, err
	}
	return s.IntoWriter()
}
