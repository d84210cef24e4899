// Package ser composes a writer, a scratch allocator and a sharing table into
// one serializer handle.
//
// A Serializer adds no behavior of its own: every capability call goes
// straight to the component that provides it and errors come back unchanged.
// Environments pick their components once, at construction, either directly
// through New or through one of the presets:
//
//   - NewCore: a sub-allocator over a caller buffer and no sharing, for
//     targets where dynamic allocation is unavailable and the value graph
//     has no aliasing.
//   - NewDefault: a growable arena and full sharing, for general use.
//
// A Serializer is open until its parts are taken with IntoRawParts or
// IntoWriter. After that it is consumed and every further call fails.
package ser

import (
	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/ser/allocator"
	"github.com/500gitnotfound/rkyv/ser/sharing"
	"github.com/500gitnotfound/rkyv/ser/writer"
)

// Capabilities is the full surface an encoder drives while building an
// archive. Every *Serializer implements it.
type Capabilities interface {
	writer.Writer
	allocator.Allocator
	sharing.Sharing
}

// Serializer holds one writer, one allocator and one sharing table.
type Serializer[W writer.Writer, A allocator.Allocator, S sharing.Sharing] struct {
	writer    W
	allocator A
	sharing   S
	consumed  bool
}

// New creates a serializer from its parts.
func New[W writer.Writer, A allocator.Allocator, S sharing.Sharing](w W, a A, s S) *Serializer[W, A, S] {
	return &Serializer[W, A, S]{writer: w, allocator: a, sharing: s}
}

// IntoRawParts consumes the serializer and returns its parts.
func (s *Serializer[W, A, S]) IntoRawParts() (W, A, S, error) {
	var (
		w W
		a A
		sh S
	)
	if s.consumed {
		return w, a, sh, errors.Consumed("IntoRawParts")
	}
	w, a, sh = s.writer, s.allocator, s.sharing
	s.release()
	return w, a, sh, nil
}

// IntoWriter consumes the serializer and returns its writer, discarding the
// allocator and sharing state.
func (s *Serializer[W, A, S]) IntoWriter() (W, error) {
	w, _, _, err := s.IntoRawParts()
	if err != nil {
		return w, errors.Consumed("IntoWriter")
	}
	return w, nil
}

// Consumed reports whether the serializer's parts have been taken.
func (s *Serializer[W, A, S]) Consumed() bool { return s.consumed }

func (s *Serializer[W, A, S]) release() {
	var (
		w  W
		a  A
		sh S
	)
	s.writer, s.allocator, s.sharing = w, a, sh
	s.consumed = true
}

// Pos returns the writer's position. It panics on a consumed serializer.
func (s *Serializer[W, A, S]) Pos() int {
	if s.consumed {
		panic(errors.Consumed("Pos"))
	}
	return s.writer.Pos()
}

func (s *Serializer[W, A, S]) Write(p []byte) error {
	if s.consumed {
		return errors.Consumed("Write")
	}
	return s.writer.Write(p)
}

func (s *Serializer[W, A, S]) Acquire(layout allocator.Layout) (allocator.Region, error) {
	if s.consumed {
		return allocator.Region{}, errors.Consumed("Acquire")
	}
	return s.allocator.Acquire(layout)
}

func (s *Serializer[W, A, S]) Release(region allocator.Region, layout allocator.Layout) error {
	if s.consumed {
		return errors.Consumed("Release")
	}
	return s.allocator.Release(region, layout)
}

// Lookup returns the recorded position for addr. It panics on a consumed
// serializer.
func (s *Serializer[W, A, S]) Lookup(addr sharing.Address) (int, bool) {
	if s.consumed {
		panic(errors.Consumed("Lookup"))
	}
	return s.sharing.Lookup(addr)
}

func (s *Serializer[W, A, S]) Record(addr sharing.Address, pos int) error {
	if s.consumed {
		return errors.Consumed("Record")
	}
	return s.sharing.Record(addr, pos)
}

// Start forwards to the sharing table if it tracks in-progress objects.
func (s *Serializer[W, A, S]) Start(addr sharing.Address) error {
	if s.consumed {
		return errors.Consumed("Start")
	}
	if t, ok := any(s.sharing).(sharing.Tracker); ok {
		return t.Start(addr)
	}
	return nil
}

// Abort forwards to the sharing table if it tracks in-progress objects.
func (s *Serializer[W, A, S]) Abort(addr sharing.Address) {
	if s.consumed {
		return
	}
	if t, ok := any(s.sharing).(sharing.Tracker); ok {
		t.Abort(addr)
	}
}

var (
	_ Capabilities    = (*Serializer[*writer.Buffer, *allocator.Handle, *sharing.Share])(nil)
	_ sharing.Tracker = (*Serializer[*writer.Buffer, *allocator.Handle, *sharing.Share])(nil)
)
