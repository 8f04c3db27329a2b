// Package bcb implements the Buffer Control Block: per-node metadata,
// locking, and the write/threshold/reset protocol described for
// buffer-tree nodes. Root is not represented here — it has no BCB and
// is addressed directly as an in-memory byte region by pkg/tree.
package bcb

import (
	"sync"

	"github.com/graphstream/buffertree/pkg/record"
	"github.com/graphstream/buffertree/pkg/treeerr"
)

// Kind distinguishes where a BCB's bytes live.
type Kind int

const (
	// KindCached buffers live in the level-1 RAM cache region.
	KindCached Kind = iota
	// KindFile buffers live in the shared backing file.
	KindFile
)

// Writer is the narrow interface a BCB needs against its backing
// storage: either the level-1 RAM cache or the shared backing file.
// Both pkg/backingstore.Store and a plain []byte cache region satisfy
// a trivial adapter of this interface (see pkg/tree).
type Writer interface {
	WriteAt(data []byte, off int64) error
	ReadAt(buf []byte, off int64) error
}

// BCB is a buffer tree node's control block: key range, level, file
// offset, fill pointer, child links, and an exclusive lock guarding
// all of the above plus the associated byte region.
//
// Empty -> Filling -> Threshold-crossed -> Flushing -> Empty is the
// state machine this type enforces: Write reports the Filling ->
// Threshold-crossed edge; the caller (pkg/tree's router) is responsible
// for driving Threshold-crossed -> Flushing -> Empty while holding Lock.
type BCB struct {
	mu sync.Mutex

	id    uint32
	level int
	kind  Kind

	minKey uint64
	maxKey uint64

	fileOffset int64
	capacity   int64 // M or L, excluding the +page_size headroom
	pageSize   int64

	storagePtr int64

	firstChild  uint32
	hasChildren bool
	childrenNum int
}

// New constructs a BCB. capacity is M for internal nodes or L for
// leaves; pageSize is added as headroom by the caller when reserving
// file space, and is also needed here to evaluate the leaf flush
// predicate.
func New(id uint32, level int, kind Kind, minKey, maxKey uint64, fileOffset, capacity, pageSize int64) *BCB {
	return &BCB{
		id:         id,
		level:      level,
		kind:       kind,
		minKey:     minKey,
		maxKey:     maxKey,
		fileOffset: fileOffset,
		capacity:   capacity,
		pageSize:   pageSize,
	}
}

// ID returns the BCB's dense integer identifier.
func (b *BCB) ID() uint32 { return b.id }

// Level returns the BCB's level (1 = root's children).
func (b *BCB) Level() int { return b.level }

// Kind reports whether this BCB's bytes live in the level-1 cache or
// the backing file.
func (b *BCB) Kind() Kind { return b.kind }

// MinKey returns the inclusive lower bound of this node's key range.
func (b *BCB) MinKey() uint64 { return b.minKey }

// MaxKey returns the inclusive upper bound of this node's key range.
func (b *BCB) MaxKey() uint64 { return b.maxKey }

// IsLeaf reports whether this BCB's range contains exactly one key.
func (b *BCB) IsLeaf() bool { return b.minKey == b.maxKey }

// FileOffset returns the byte offset at which this BCB's region begins
// (within the backing file, or within the level-1 cache region).
func (b *BCB) FileOffset() int64 { return b.fileOffset }

// Capacity returns M (internal) or L (leaf) — the flush-threshold
// byte count, excluding the page_size headroom.
func (b *BCB) Capacity() int64 { return b.capacity }

// AddChild records a newly constructed child during tree layout.
func (b *BCB) AddChild(childID uint32) {
	if !b.hasChildren {
		b.firstChild = childID
		b.hasChildren = true
	}
	b.childrenNum++
}

// FirstChild and ChildrenNum describe this node's contiguous block of
// children in the tree's dense BCB array.
func (b *BCB) FirstChild() uint32 { return b.firstChild }
func (b *BCB) ChildrenNum() int   { return b.childrenNum }

// Lock acquires the BCB's exclusive lock. Blocks the caller if
// unavailable.
func (b *BCB) Lock() { b.mu.Lock() }

// Unlock releases the BCB's exclusive lock.
func (b *BCB) Unlock() { b.mu.Unlock() }

// TryLock attempts to acquire the lock without blocking.
func (b *BCB) TryLock() bool { return b.mu.TryLock() }

// Size returns the number of bytes currently stored. Caller must hold
// the lock.
func (b *BCB) Size() int64 { return b.storagePtr }

// Reset sets storage_ptr back to zero. Caller must hold the lock; this
// is the invariant-5 "atomically reset under b's lock" step.
func (b *BCB) Reset() { b.storagePtr = 0 }

// needsFlush implements the §4.C flush-threshold predicate, evaluated
// after a write of size bytes. For internal nodes: this write took
// storage_ptr from below capacity to >= capacity. For leaves:
// additionally, crossing any L-byte boundary — (storage_ptr mod L) <
// size — so that leaves emit frequent, smaller batches rather than
// waiting for full M.
func (b *BCB) needsFlush(size int64) bool {
	reachedCapacity := b.storagePtr-size < b.capacity && b.storagePtr >= b.capacity
	if b.IsLeaf() {
		return (b.storagePtr%b.capacity) < size || reachedCapacity
	}
	return reachedCapacity
}

// Write appends size bytes at file_offset + storage_ptr via dst,
// reports whether the buffer newly crossed its flush threshold, and
// fails loudly (BufferFull) if the write would exceed capacity +
// page_size. Caller must hold the lock.
func (b *BCB) Write(dst Writer, data []byte) (crossedThreshold bool, err error) {
	size := int64(len(data))
	if b.storagePtr+size > b.capacity+b.pageSize {
		return false, treeerr.NewBufferFull(b.id, len(data))
	}

	if err := dst.WriteAt(data, b.fileOffset+b.storagePtr); err != nil {
		return false, err
	}

	b.storagePtr += size
	crossed := b.needsFlush(size)
	return crossed, nil
}

// ReadAll reads this BCB's full current contents into dst (which must
// be at least Size() bytes), via src. Caller must hold the lock.
func (b *BCB) ReadAll(src Writer, dst []byte) error {
	n := int(b.storagePtr)
	if n == 0 {
		return nil
	}
	return src.ReadAt(dst[:n], b.fileOffset)
}

// RecordCapacityUnit is the largest multiple of record.Size that fits
// in one page — the "full-flush unit" the router batches writes by
// before flushing a child's partial slice.
func RecordCapacityUnit(pageSize int64) int64 {
	return (pageSize / record.Size) * record.Size
}
