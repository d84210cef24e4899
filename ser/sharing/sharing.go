// Package sharing deduplicates shared and cyclic data in an archive.
//
// The first time an encoder writes an object that may be referenced more
// than once, it records the object's address together with the archive
// position it was written at. Later references look the address up and
// point at the recorded position instead of encoding the object again.
package sharing

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/500gitnotfound/rkyv/errors"
	"github.com/500gitnotfound/rkyv/internal/logging"
)

// Address identifies a source object.
type Address uintptr

// Sharing maps source addresses to archive positions.
type Sharing interface {
	// Lookup returns the position recorded for addr.
	Lookup(addr Address) (int, bool)
	// Record associates addr with pos. Recording the same pair twice is a
	// no-op; recording addr at a different position fails.
	Record(addr Address, pos int) error
}

// Tracker is implemented by tables that can detect an object being
// referenced from inside its own encoding.
type Tracker interface {
	// Start marks addr as being encoded. It fails if addr is already being
	// encoded.
	Start(addr Address) error
	// Abort clears the mark set by Start without recording a position.
	Abort(addr Address)
}

// Share is a Sharing backed by a map.
type Share struct {
	positions map[Address]int
	pending   map[Address]struct{}
}

// NewShare returns an empty table.
func NewShare() *Share {
	return &Share{
		positions: make(map[Address]int),
		pending:   make(map[Address]struct{}),
	}
}

func (s *Share) Lookup(addr Address) (int, bool) {
	pos, ok := s.positions[addr]
	return pos, ok
}

func (s *Share) Record(addr Address, pos int) error {
	if existing, ok := s.positions[addr]; ok {
		if existing == pos {
			return nil
		}
		err := errors.DuplicateSharedPointer(uintptr(addr), existing, pos)
		logging.Logger().Debug("conflicting shared pointer record",
			zap.Uintptr("address", uintptr(addr)),
			zap.Int("existing", existing),
			zap.Int("pos", pos))
		return err
	}
	if s.positions == nil {
		s.positions = make(map[Address]int)
	}
	s.positions[addr] = pos
	delete(s.pending, addr)
	return nil
}

func (s *Share) Start(addr Address) error {
	if _, ok := s.pending[addr]; ok {
		return errors.New(errors.ComponentSharing, errors.KindCycle).
			Detail("address %#x referenced while it is being encoded", uintptr(addr)).
			Value(uintptr(addr)).
			Build()
	}
	if s.pending == nil {
		s.pending = make(map[Address]struct{})
	}
	s.pending[addr] = struct{}{}
	return nil
}

func (s *Share) Abort(addr Address) { delete(s.pending, addr) }

// Len returns the number of recorded addresses.
func (s *Share) Len() int { return len(s.positions) }

// Reset forgets every record.
func (s *Share) Reset() {
	clear(s.positions)
	clear(s.pending)
}

// Unshare records nothing. Use it when the value graph is known to contain
// no aliasing.
type Unshare struct{}

func (Unshare) Lookup(Address) (int, bool) { return 0, false }

func (Unshare) Record(Address, int) error { return nil }

// AddressOf returns the identity of the object p points to. p must be a
// pointer, map, slice, channel, function or unsafe pointer; the zero Address
// is returned for nil and for other kinds.
func AddressOf(p any) Address {
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.UnsafePointer:
		return Address(v.Pointer())
	default:
		return 0
	}
}

// ContentAddress derives an Address from the content of b, so that equal
// byte strings share one archived copy regardless of where they live.
// Distinct contents may collide; use it only where a collision is acceptable
// or ruled out by the caller.
func ContentAddress(b []byte) Address {
	return Address(xxhash.Sum64(b))
}

// Serialize returns the archived position of the object at addr, calling
// encode and recording its result the first time addr is seen. The zero
// Address is never shared. If s is a Tracker, an object reached again from
// inside its own encode fails with a cycle error instead of recursing.
func Serialize(s Sharing, addr Address, encode func() (int, error)) (int, error) {
	if addr == 0 {
		return encode()
	}
	if pos, ok := s.Lookup(addr); ok {
		return pos, nil
	}
	tracker, tracked := s.(Tracker)
	if tracked {
		if err := tracker.Start(addr); err != nil {
			return 0, err
		}
	}
	pos, err := encode()
	if err != nil {
		if tracked {
			tracker.Abort(addr)
		}
		return 0, err
	}
	if err := s.Record(addr, pos); err != nil {
		if tracked {
			tracker.Abort(addr)
		}
		return 0, err
	}
	return pos, nil
}
