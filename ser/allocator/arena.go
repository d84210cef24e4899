package allocator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/internal/logging"
)

// DefaultBlockSize is the size of the first block an Arena allocates.
const DefaultBlockSize = 4096

// MaxBlockSize is the largest block an Arena will allocate: 1 GiB on 32-bit
// platforms, 1 TiB on 64-bit ones. Requests that need more fail with an
// out-of-memory error.
const MaxBlockSize = 1 << (30 + 10*(^uint(0)>>63))

// ArenaOptions configures an Arena.
type ArenaOptions struct {
	// BlockSize is the size of the first block. Later blocks at least double.
	BlockSize int
	// MaxCapacity bounds the total size of all blocks. Zero means unbounded.
	MaxCapacity int
}

// Arena owns growable scratch storage. Allocation goes through a Handle;
// blocks added while a handle is in use stay with the arena for reuse.
//
// An Arena must not be used by more than one Handle at a time.
type Arena struct {
	opts   ArenaOptions
	blocks [][]byte
}

// NewArena returns an empty arena. No memory is allocated until the first
// acquisition.
func NewArena(opts ArenaOptions) *Arena {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	return &Arena{opts: opts}
}

// Handle returns an allocator drawing from the arena.
func (a *Arena) Handle() *Handle {
	return &Handle{arena: a}
}

// Capacity returns the total size of the arena's blocks.
func (a *Arena) Capacity() int {
	total := 0
	for _, b := range a.blocks {
		total += len(b)
	}
	return total
}

// Shrink drops every block except the largest and returns the new capacity.
// It must not be called while a handle has open regions.
func (a *Arena) Shrink() int {
	if len(a.blocks) <= 1 {
		return a.Capacity()
	}
	largest := a.blocks[0]
	for _, b := range a.blocks[1:] {
		if len(b) > len(largest) {
			largest = b
		}
	}
	clear(a.blocks)
	a.blocks = append(a.blocks[:0], largest)
	return len(largest)
}

// grow appends a block that can hold layout and returns its index.
func (a *Arena) grow(layout Layout) (int, error) {
	if layout.Size > MaxBlockSize-(layout.Align-1) {
		return 0, errors.OutOfMemory(errors.ComponentAllocator,
			layout.Size, layout.Align, MaxBlockSize)
	}
	need := layout.Size + layout.Align - 1
	size := a.opts.BlockSize
	if n := len(a.blocks); n > 0 {
		size = 2 * len(a.blocks[n-1])
	}
	size = min(max(size, need), MaxBlockSize)

	capacity := a.Capacity()
	if a.opts.MaxCapacity > 0 && size > a.opts.MaxCapacity-capacity {
		size = a.opts.MaxCapacity - capacity
		if size < need {
			return 0, errors.OutOfMemory(errors.ComponentAllocator,
				layout.Size, layout.Align, max(size, 0))
		}
	}

	a.blocks = append(a.blocks, make([]byte, size))
	logging.Logger().Debug("scratch arena grew",
		zap.Int("block", len(a.blocks)-1),
		zap.Int("block_size", size),
		zap.Int("capacity", capacity+size))
	return len(a.blocks) - 1, nil
}

// Handle allocates scratch regions from an Arena, growing it on demand.
type Handle struct {
	arena *Arena
	block int
	top   int
	stack stack
}

func (h *Handle) Acquire(layout Layout) (Region, error) {
	if err := layout.Validate(); err != nil {
		return Region{}, err
	}

	block, off, ok := h.fit(layout)
	if !ok {
		var err error
		if block, err = h.arena.grow(layout); err != nil {
			return Region{}, err
		}
		off = alignedOffset(h.arena.blocks[block], 0, layout.Align)
	}

	seq := h.stack.push(frame{layout: layout, block: h.block, start: h.top})
	h.block, h.top = block, off+layout.Size
	buf := h.arena.blocks[block]
	return Region{
		Bytes: buf[off : off+layout.Size : off+layout.Size],
		owner: h,
		seq:   seq,
	}, nil
}

// fit finds room for layout in the current block or a later existing one.
func (h *Handle) fit(layout Layout) (block, off int, ok bool) {
	blocks := h.arena.blocks
	for b, top := h.block, h.top; b < len(blocks); b, top = b+1, 0 {
		off := alignedOffset(blocks[b], top, layout.Align)
		if off <= len(blocks[b]) && layout.Size <= len(blocks[b])-off {
			return b, off, true
		}
	}
	return 0, 0, false
}

func (h *Handle) Release(region Region, layout Layout) error {
	f, err := h.stack.check(h, region, layout)
	if err != nil {
		logging.Logger().Debug("scratch release out of order",
			zap.Int("depth", h.stack.depth()),
			zap.Error(err))
		return err
	}
	h.stack.pop()
	h.block, h.top = f.block, f.start
	return nil
}

// Depth returns the number of open regions.
func (h *Handle) Depth() int { return h.stack.depth() }

// Arena returns the arena the handle draws from.
func (h *Handle) Arena() *Arena { return h.arena }

var arenaPool = sync.Pool{
	New: func() any {
		return NewArena(ArenaOptions{})
	},
}

// WithArena runs fn with a handle to a pooled arena. The arena is shrunk and
// returned to the pool when fn returns; regions must not outlive fn.
func WithArena(fn func(h *Handle) error) error {
	arena := arenaPool.Get().(*Arena)
	defer func() {
		arena.Shrink()
		arenaPool.Put(arena)
	}()
	return fn(arena.Handle())
}
