package ser

import (
	"github.com/500gitnotfound/rkyv/ser/allocator"
	"github.com/500gitnotfound/rkyv/ser/sharing"
	"github.com/500gitnotfound/rkyv/ser/writer"
)

// Core is a serializer for environments where allocations cannot be made.
type Core[W writer.Writer] = Serializer[W, *allocator.SubAllocator, sharing.Unshare]

// Default is a general-purpose serializer for environments where
// allocations can be made.
type Default[W writer.Writer] = Serializer[W, *allocator.Handle, *sharing.Share]

// NewCore returns a serializer whose scratch space is the caller's buffer
// and which performs no sharing.
func NewCore[W writer.Writer](w W, scratch []byte) *Core[W] {
	return New(w, allocator.NewSubAllocator(scratch), sharing.Unshare{})
}

// NewDefault returns a serializer drawing scratch space from h and
// deduplicating shared objects.
func NewDefault[W writer.Writer](w W, h *allocator.Handle) *Default[W] {
	return New(w, h, sharing.NewShare())
}
