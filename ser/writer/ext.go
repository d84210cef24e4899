package writer

import (
	"math"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/internal/common"
)

var zeroes [64]byte

// Pad writes n zero bytes.
func Pad(w Writer, n int) error {
	for n > 0 {
		chunk := min(n, len(zeroes))
		if err := w.Write(zeroes[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Align pads w to a multiple of align and returns the aligned position.
func Align(w Writer, align int) (int, error) {
	if !common.IsPowerOfTwo(align) {
		return 0, errors.New(errors.ComponentWriter, errors.KindInvalidLayout).
			Detail("alignment %d is not a power of two", align).
			Value(align).
			Build()
	}
	if err := Pad(w, common.PadFor(w.Pos(), align)); err != nil {
		return 0, err
	}
	return w.Pos(), nil
}

// WriteAligned aligns w, writes p and returns the position p starts at.
func WriteAligned(w Writer, align int, p []byte) (int, error) {
	pos, err := Align(w, align)
	if err != nil {
		return 0, err
	}
	if err := w.Write(p); err != nil {
		return 0, err
	}
	return pos, nil
}

// WriteUvarint writes x as a varint.
func WriteUvarint(w Writer, x uint64) error {
	var scratch [common.MaxVarintLen]byte
	return w.Write(common.PutVarUint(&scratch, x))
}

// RelativeOffset returns the signed distance from one archive position to
// another as an int32.
func RelativeOffset(from, to int) (int32, error) {
	off := int64(to) - int64(from)
	if off < math.MinInt32 || off > math.MaxInt32 {
		return 0, errors.New(errors.ComponentWriter, errors.KindOverflow).
			Detail("relative offset from %d to %d does not fit in 32 bits", from, to).
			Value(off).
			Build()
	}
	return int32(off), nil
}

// WriteRelative writes a little-endian int32 reference to target, relative to
// the position the reference itself is written at.
func WriteRelative(w Writer, target int) error {
	off, err := RelativeOffset(w.Pos(), target)
	if err != nil {
		return err
	}
	var scratch [4]byte
	return w.Write(common.PutInt32(&scratch, off))
}
