package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "full error",
			err:      OutOfMemory(ComponentAllocator, 9, 1, 8),
			contains: []string{"[allocator]", "out_of_memory", "9 bytes", "8 available"},
		},
		{
			name:     "minimal error",
			err:      &Error{Kind: KindOverflow},
			contains: []string{"overflow"},
		},
		{
			name:     "error with cause",
			err:      IO(io.ErrShortWrite, "sink rejected write"),
			contains: []string{"[writer]", "io", "sink rejected write", "caused by", "short write"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := IO(io.ErrClosedPipe, "write")
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.ErrorIs(t, err, ErrIO)
}

func TestError_IsMatchesKind(t *testing.T) {
	err := DuplicateSharedPointer(0x10, 4, 8)
	assert.ErrorIs(t, err, ErrDuplicateSharedPointer)
	assert.NotErrorIs(t, err, ErrOutOfMemory)

	wrapped := fmt.Errorf("encode node: %w", err)
	assert.ErrorIs(t, wrapped, ErrDuplicateSharedPointer)

	scoped := &Error{Component: ComponentWriter, Kind: KindDuplicateSharedPointer}
	assert.NotErrorIs(t, err, scoped)
}

func TestBuilder(t *testing.T) {
	err := New(ComponentAllocator, KindInvalidLayout).
		Detail("alignment %d is not a power of two", 3).
		Value(3).
		Build()

	assert.Equal(t, ComponentAllocator, err.Component)
	assert.Equal(t, KindInvalidLayout, err.Kind)
	assert.Equal(t, "alignment 3 is not a power of two", err.Detail)
	assert.Equal(t, 3, err.Value)
	assert.Nil(t, err.Unwrap())
}

func TestBuilder_CauseStack(t *testing.T) {
	plain := New(ComponentWriter, KindIO).Cause(io.EOF).Build()
	assert.Implements(t, (*stackTracer)(nil), plain.Cause)
	assert.ErrorIs(t, plain, io.EOF)

	traced := pkgerrors.New("sink closed")
	err := New(ComponentWriter, KindIO).Cause(traced).Build()
	assert.Same(t, traced, err.Cause, "traced cause kept as is")

	wrapped := fmt.Errorf("flush: %w", traced)
	err = New(ComponentWriter, KindIO).Cause(wrapped).Build()
	assert.Equal(t, wrapped, err.Cause)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(AllocationMismatch(ComponentAllocator, "release of region %d", 2)))
	assert.True(t, IsFatal(DuplicateSharedPointer(1, 2, 3)))
	assert.True(t, IsFatal(Consumed("Write")))
	assert.False(t, IsFatal(OutOfMemory(ComponentAllocator, 1, 1, 0)))
	assert.False(t, IsFatal(Capacity(4, 2)))
	assert.False(t, IsFatal(stderrors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindCapacity, KindOf(fmt.Errorf("wrapped: %w", Capacity(4, 2))))
	assert.Equal(t, Kind(""), KindOf(io.EOF))
}
