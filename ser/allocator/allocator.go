// Package allocator provides scratch memory with strict stack discipline.
//
// Encoders stage composite values in scratch regions before their final size
// is known. Regions are acquired and released in last-in-first-out order:
// the only region that may be released is the most recently acquired one
// that is still open. Out-of-order releases fail with an allocation mismatch
// and leave the allocator untouched.
//
// Two strategies implement Allocator. SubAllocator works inside a single
// caller-supplied buffer and never allocates scratch memory of its own.
// Handle draws from a growable Arena that adds blocks as needed.
package allocator

import (
	"unsafe"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/internal/common"
)

// Layout describes a scratch request.
type Layout struct {
	Size  int
	Align int
}

// LayoutOf returns the layout of a value of type T.
func LayoutOf[T any]() Layout {
	var zero T
	return Layout{Size: int(unsafe.Sizeof(zero)), Align: int(unsafe.Alignof(zero))}
}

// ArrayLayout returns the layout of n contiguous elements of layout elem.
func ArrayLayout(elem Layout, n int) Layout {
	return Layout{Size: common.AlignUp(elem.Size, elem.Align) * n, Align: elem.Align}
}

// Validate reports whether the layout can be satisfied by any allocator.
func (l Layout) Validate() error {
	if l.Size < 0 {
		return errors.New(errors.ComponentAllocator, errors.KindInvalidLayout).
			Detail("negative size %d", l.Size).
			Value(l).
			Build()
	}
	if !common.IsPowerOfTwo(l.Align) {
		return errors.New(errors.ComponentAllocator, errors.KindInvalidLayout).
			Detail("alignment %d is not a power of two", l.Align).
			Value(l).
			Build()
	}
	return nil
}

// Region is a live scratch allocation. Bytes has exactly the requested size
// and starts at an address aligned to the requested alignment. Its contents
// are unspecified when acquired.
type Region struct {
	Bytes []byte

	owner any
	seq   uint64
}

// Allocator hands out scratch regions in stack order.
type Allocator interface {
	// Acquire returns a region satisfying layout. On failure nothing is
	// allocated.
	Acquire(layout Layout) (Region, error)
	// Release returns region, which must be the most recently acquired open
	// region and must have been acquired with layout.
	Release(region Region, layout Layout) error
}

// frame is one open region on an allocator's stack.
type frame struct {
	layout Layout
	seq    uint64
	// block and start locate the allocation cursor before the region was
	// acquired, so releasing restores it exactly.
	block int
	start int
}

// stack tracks open regions and validates releases against its top.
type stack struct {
	frames []frame
	seq    uint64
}

func (s *stack) push(f frame) uint64 {
	s.seq++
	f.seq = s.seq
	s.frames = append(s.frames, f)
	return f.seq
}

func (s *stack) check(owner any, region Region, layout Layout) (frame, error) {
	if region.owner != owner {
		return frame{}, errors.AllocationMismatch(errors.ComponentAllocator,
			"region was not acquired from this allocator")
	}
	if len(s.frames) == 0 {
		return frame{}, errors.AllocationMismatch(errors.ComponentAllocator,
			"release of region %d with no open regions", region.seq)
	}
	top := s.frames[len(s.frames)-1]
	if top.seq != region.seq {
		return frame{}, errors.AllocationMismatch(errors.ComponentAllocator,
			"release of region %d while region %d is on top", region.seq, top.seq)
	}
	if top.layout != layout || len(region.Bytes) != layout.Size {
		return frame{}, errors.AllocationMismatch(errors.ComponentAllocator,
			"region %d acquired as %+v, released as %+v", top.seq, top.layout, layout)
	}
	return top, nil
}

func (s *stack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *stack) depth() int { return len(s.frames) }

// alignedOffset returns the first offset at or after top within buf whose
// address is a multiple of align.
func alignedOffset(buf []byte, top, align int) int {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	addr := base + uintptr(top)
	return top + common.PadFor(int(addr&uintptr(align-1)), align)
}
