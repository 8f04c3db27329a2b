// Package treeerr defines the fatal invariant-violation errors the
// buffer tree can raise. None of these are recoverable: the policy
// throughout pkg/tree is to surface them to the caller and let the
// process log and abort, never to retry.
package treeerr

import "github.com/cockroachdb/errors"

// BufferFull is raised when a write to a BCB would exceed its
// reserved capacity (capacity + page_size). It indicates a routing
// logic bug upstream and is unrecoverable.
type BufferFull struct {
	BufferID uint32
	Size     int
}

func (e *BufferFull) Error() string {
	return errors.Newf("buffer %d too full for write of size %d", e.BufferID, e.Size).Error()
}

// NewBufferFull constructs a BufferFull error, wrapped with a stack
// trace via cockroachdb/errors for post-mortem diagnosis.
func NewBufferFull(id uint32, size int) error {
	return errors.WithStack(&BufferFull{BufferID: id, Size: size})
}

// KeyRoutingError is raised when which_child computes a child index
// outside the valid range, or the chosen child's key range does not
// actually contain the record's key. It aborts the in-flight flush.
type KeyRoutingError struct {
	Key     uint64
	MinKey  uint64
	MaxKey  uint64
	Child   int
	Options int
}

func (e *KeyRoutingError) Error() string {
	return errors.Newf("key %d does not route within child %d of %d (range [%d,%d])",
		e.Key, e.Child, e.Options, e.MinKey, e.MaxKey).Error()
}

// NewKeyRoutingError constructs a KeyRoutingError with a stack trace.
func NewKeyRoutingError(key, min, max uint64, child, options int) error {
	return errors.WithStack(&KeyRoutingError{
		Key: key, MinKey: min, MaxKey: max, Child: child, Options: options,
	})
}

// IOError wraps a failed positional read or write against the backing
// file. A negative/failed result from the underlying syscall is fatal;
// short reads/writes are retried by the caller and never surface here.
type IOError struct {
	Op     string
	Offset int64
	Cause  error
}

func (e *IOError) Error() string {
	return errors.Newf("io %s at offset %d: %v", e.Op, e.Offset, e.Cause).Error()
}

func (e *IOError) Unwrap() error { return e.Cause }

// NewIOError wraps a syscall-level failure in an IOError with a stack
// trace.
func NewIOError(op string, offset int64, cause error) error {
	return errors.WithStack(&IOError{Op: op, Offset: offset, Cause: cause})
}

// ErrBufferNotLocked is a programming error: an unlock (or an access
// requiring the lock) was attempted without holding the BCB's mutex.
var ErrBufferNotLocked = errors.New("buffer accessed without holding its lock")
