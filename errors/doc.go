// Package errors provides the error taxonomy shared by the archive writer,
// scratch allocator, sharing table and serializer.
//
// Every error is an *Error carrying the Component that raised it and a Kind.
// Sentinels such as ErrOutOfMemory match any *Error of the same kind, so
// callers can branch on the failure category without caring which concrete
// implementation produced it:
//
//	if errors.Is(err, rkyverrors.ErrOutOfMemory) {
//		// retry with a larger scratch buffer
//	}
//
// Kinds are split into data errors (the input or the environment could not
// be accommodated) and protocol errors (the caller broke a usage contract).
// IsFatal reports the latter.
package errors
