package common

import "encoding/binary"

// MaxVarintLen is the longest encoding of a uint64.
const MaxVarintLen = 10

// IsPowerOfTwo reports whether x is a positive power of two.
func IsPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// PadFor returns the number of bytes needed to bring n to a multiple of align.
func PadFor(n, align int) int {
	return AlignUp(n, align) - n
}

// PutVarUint encodes x into scratch and returns the used prefix.
func PutVarUint(scratch *[MaxVarintLen]byte, x uint64) []byte {
	i := 0
	for x >= 0x80 {
		scratch[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	scratch[i] = byte(x)
	i++
	return scratch[:i]
}

// PutInt32 encodes v little-endian into scratch.
func PutInt32(scratch *[4]byte, v int32) []byte {
	binary.LittleEndian.PutUint32(scratch[:], uint32(v))
	return scratch[:]
}
