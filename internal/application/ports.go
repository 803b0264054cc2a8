package application

import "context"

// SequenceLocker serializes sequence derivation for one sequence key across
// instances. The returned release func must be called exactly once.
type SequenceLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// DefaultMinUsableLength is the remainder length, in meters, a return must
// exceed before a new roll is spawned
const DefaultMinUsableLength = 1.0
