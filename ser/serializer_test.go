package ser

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/ser/allocator"
	"github.com/500gitnotfound/rkyv/ser/sharing"
	"github.com/500gitnotfound/rkyv/ser/writer"
)

func TestCoreScenario(t *testing.T) {
	s := NewCore(writer.NewBuffer(0), make([]byte, 8))

	require.NoError(t, s.Write([]byte{1, 2, 3}))
	l := allocator.Layout{Size: 4, Align: 1}
	r, err := s.Acquire(l)
	require.NoError(t, err)
	require.Len(t, r.Bytes, 4)
	require.NoError(t, s.Release(r, l))
	require.NoError(t, s.Write([]byte{4, 5}))
	assert.Equal(t, 5, s.Pos())

	_, err = s.Acquire(allocator.Layout{Size: 9, Align: 1})
	require.ErrorIs(t, err, errors.ErrOutOfMemory)
	assert.Equal(t, 5, s.Pos())

	w, err := s.IntoWriter()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, w.Bytes())
}

func TestCoreDoesNotShare(t *testing.T) {
	s := NewCore(writer.NewBuffer(0), nil)
	require.NoError(t, s.Record(0x10, 4))
	_, ok := s.Lookup(0x10)
	assert.False(t, ok)
}

func TestDefaultShares(t *testing.T) {
	s := NewDefault(writer.NewBuffer(0), allocator.NewArena(allocator.ArenaOptions{}).Handle())
	require.NoError(t, s.Record(0x10, 4))
	pos, ok := s.Lookup(0x10)
	require.True(t, ok)
	assert.Equal(t, 4, pos)
	require.ErrorIs(t, s.Record(0x10, 8), errors.ErrDuplicateSharedPointer)
}

func TestDefaultGrowsScratch(t *testing.T) {
	arena := allocator.NewArena(allocator.ArenaOptions{BlockSize: 8})
	s := NewDefault(writer.NewBuffer(0), arena.Handle())
	l := allocator.Layout{Size: 1024, Align: 8}
	r, err := s.Acquire(l)
	require.NoError(t, err)
	require.Len(t, r.Bytes, 1024)
	require.NoError(t, s.Release(r, l))
	assert.GreaterOrEqual(t, arena.Capacity(), 1024)
}

// failingWriter rejects every write with a sentinel so pass-through can be
// checked by identity.
type failingWriter struct {
	err error
}

func (f failingWriter) Pos() int { return 0 }

func (f failingWriter) Write([]byte) error { return f.err }

func TestErrorsPassThroughUnchanged(t *testing.T) {
	sentinel := errors.Capacity(1, 0)
	s := New(failingWriter{err: sentinel}, allocator.NewSubAllocator(nil), sharing.NewShare())

	err := s.Write([]byte{1})
	assert.Same(t, sentinel, err)
}

func TestIntoRawParts(t *testing.T) {
	buf := writer.NewBuffer(0)
	sub := allocator.NewSubAllocator(make([]byte, 16))
	share := sharing.NewShare()
	s := New(buf, sub, share)
	require.NoError(t, s.Write([]byte("abc")))
	require.NoError(t, s.Record(1, 0))

	w, a, sh, err := s.IntoRawParts()
	require.NoError(t, err)
	assert.Same(t, buf, w)
	assert.Same(t, sub, a)
	assert.Same(t, share, sh)
	assert.Equal(t, 1, sh.Len())
	assert.True(t, s.Consumed())
}

func TestConsumedRejectsCalls(t *testing.T) {
	s := NewDefault(writer.NewBuffer(0), allocator.NewArena(allocator.ArenaOptions{}).Handle())
	_, err := s.IntoWriter()
	require.NoError(t, err)

	l := allocator.Layout{Size: 1, Align: 1}
	require.ErrorIs(t, s.Write([]byte{1}), errors.ErrConsumed)
	_, err = s.Acquire(l)
	require.ErrorIs(t, err, errors.ErrConsumed)
	require.ErrorIs(t, s.Release(allocator.Region{}, l), errors.ErrConsumed)
	require.ErrorIs(t, s.Record(1, 1), errors.ErrConsumed)
	require.ErrorIs(t, s.Start(1), errors.ErrConsumed)
	assert.Panics(t, func() { s.Pos() })
	assert.Panics(t, func() { s.Lookup(1) })

	_, err = s.IntoWriter()
	require.ErrorIs(t, err, errors.ErrConsumed)
	_, _, _, err = s.IntoRawParts()
	require.ErrorIs(t, err, errors.ErrConsumed)
	assert.True(t, errors.IsFatal(err))
}

// node is a toy value graph used to drive the serializer the way an
// external encoder would.
type node struct {
	value    uint32
	children []*node
}

// encodeNode writes n's children first, stages the child offsets in scratch
// space, then writes n itself as value + count + relative child references.
// Shared children are written once.
func encodeNode(s Capabilities, n *node) (int, error) {
	return sharing.Serialize(s, sharing.AddressOf(n), func() (int, error) {
		l := allocator.Layout{Size: 8 * len(n.children), Align: 8}
		scratch, err := s.Acquire(l)
		if err != nil {
			return 0, err
		}
		for i, c := range n.children {
			pos, err := encodeNode(s, c)
			if err != nil {
				return 0, err
			}
			binary.LittleEndian.PutUint64(scratch.Bytes[8*i:], uint64(pos))
		}

		start, err := writer.Align(s, 4)
		if err != nil {
			return 0, err
		}
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[0:], n.value)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(n.children)))
		if err := s.Write(hdr[:]); err != nil {
			return 0, err
		}
		for i := range n.children {
			target := int(binary.LittleEndian.Uint64(scratch.Bytes[8*i:]))
			if err := writer.WriteRelative(s, target); err != nil {
				return 0, err
			}
		}
		return start, s.Release(scratch, l)
	})
}

// readNode follows relative references in buf back into a node tree.
func readNode(buf []byte, pos int) (uint32, []int) {
	value := binary.LittleEndian.Uint32(buf[pos:])
	count := int(binary.LittleEndian.Uint32(buf[pos+4:]))
	children := make([]int, count)
	for i := range children {
		ref := pos + 8 + 4*i
		children[i] = ref + int(int32(binary.LittleEndian.Uint32(buf[ref:])))
	}
	return value, children
}

func TestEncodeSharedGraph(t *testing.T) {
	leaf := &node{value: 7}
	root := &node{value: 1, children: []*node{
		{value: 2, children: []*node{leaf}},
		{value: 3, children: []*node{leaf}},
		leaf,
	}}

	s := NewDefault(writer.NewBuffer(0), allocator.NewArena(allocator.ArenaOptions{BlockSize: 32}).Handle())
	rootPos, err := encodeNode(s, root)
	require.NoError(t, err)
	w, err := s.IntoWriter()
	require.NoError(t, err)
	buf := w.Bytes()

	value, children := readNode(buf, rootPos)
	assert.Equal(t, uint32(1), value)
	require.Len(t, children, 3)

	v2, c2 := readNode(buf, children[0])
	v3, c3 := readNode(buf, children[1])
	assert.Equal(t, uint32(2), v2)
	assert.Equal(t, uint32(3), v3)
	require.Len(t, c2, 1)
	require.Len(t, c3, 1)

	// Every reference to the leaf resolves to the same position.
	assert.Equal(t, c2[0], c3[0])
	assert.Equal(t, c2[0], children[2])
	leafValue, _ := readNode(buf, children[2])
	assert.Equal(t, uint32(7), leafValue)
}

func TestEncodeWithoutSharingDuplicates(t *testing.T) {
	leaf := &node{value: 7}
	root := &node{value: 1, children: []*node{leaf, leaf}}

	s := NewCore(writer.NewBuffer(0), make([]byte, 64))
	rootPos, err := encodeNode(s, root)
	require.NoError(t, err)
	w, err := s.IntoWriter()
	require.NoError(t, err)

	_, children := readNode(w.Bytes(), rootPos)
	require.Len(t, children, 2)
	assert.NotEqual(t, children[0], children[1], "unshared leaf is written twice")
}

func TestEncodeCycleFails(t *testing.T) {
	a := &node{value: 1}
	b := &node{value: 2, children: []*node{a}}
	a.children = []*node{b}

	s := NewDefault(writer.NewBuffer(0), allocator.NewArena(allocator.ArenaOptions{}).Handle())
	_, err := encodeNode(s, a)
	require.ErrorIs(t, err, errors.ErrCycle)
}

func TestEncodeScratchExhausted(t *testing.T) {
	deep := &node{value: 0}
	for i := 1; i < 8; i++ {
		deep = &node{value: uint32(i), children: []*node{deep}}
	}
	s := NewCore(writer.NewBuffer(0), make([]byte, 24))
	_, err := encodeNode(s, deep)
	require.ErrorIs(t, err, errors.ErrOutOfMemory)
	assert.False(t, errors.IsFatal(err))
}

func BenchmarkCoreWrite(b *testing.B) {
	s := NewCore(writer.NewBuffer(1<<20), make([]byte, 64))
	payload := make([]byte, 64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if s.Pos() > 1<<19 {
			b.StopTimer()
			s = NewCore(writer.NewBuffer(1<<20), make([]byte, 64))
			b.StartTimer()
		}
		_ = s.Write(payload)
	}
}
