package allocator

import (
	"go.uber.org/zap"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/internal/logging"
)

// DefaultDepth is the number of open regions a SubAllocator reserves
// bookkeeping for up front.
const DefaultDepth = 16

// SubAllocator carves scratch regions out of one fixed buffer supplied by the
// caller. It never allocates scratch memory; exhausting the buffer fails
// with an out-of-memory error.
type SubAllocator struct {
	buf   []byte
	top   int
	stack stack
}

// NewSubAllocator returns an allocator over the full capacity of buf.
func NewSubAllocator(buf []byte) *SubAllocator {
	return NewSubAllocatorDepth(buf, DefaultDepth)
}

// NewSubAllocatorDepth is NewSubAllocator with bookkeeping reserved for depth
// simultaneously open regions.
func NewSubAllocatorDepth(buf []byte, depth int) *SubAllocator {
	return &SubAllocator{
		buf:   buf[:cap(buf)],
		stack: stack{frames: make([]frame, 0, depth)},
	}
}

func (a *SubAllocator) Acquire(layout Layout) (Region, error) {
	if err := layout.Validate(); err != nil {
		return Region{}, err
	}
	off := alignedOffset(a.buf, a.top, layout.Align)
	if off > len(a.buf) || layout.Size > len(a.buf)-off {
		return Region{}, errors.OutOfMemory(errors.ComponentAllocator,
			layout.Size, layout.Align, len(a.buf)-a.top)
	}
	seq := a.stack.push(frame{layout: layout, start: a.top})
	a.top = off + layout.Size
	return Region{
		Bytes: a.buf[off : off+layout.Size : off+layout.Size],
		owner: a,
		seq:   seq,
	}, nil
}

func (a *SubAllocator) Release(region Region, layout Layout) error {
	f, err := a.stack.check(a, region, layout)
	if err != nil {
		logging.Logger().Debug("scratch release out of order",
			zap.Int("depth", a.stack.depth()),
			zap.Error(err))
		return err
	}
	a.stack.pop()
	a.top = f.start
	return nil
}

// Used returns the number of bytes occupied by open regions and their padding.
func (a *SubAllocator) Used() int { return a.top }

// Capacity returns the size of the backing buffer.
func (a *SubAllocator) Capacity() int { return len(a.buf) }

// Depth returns the number of open regions.
func (a *SubAllocator) Depth() int { return a.stack.depth() }
