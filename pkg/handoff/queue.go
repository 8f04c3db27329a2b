// Package handoff implements the bounded circular queue that decouples
// leaf flushes from downstream consumers. Slots are fixed-size and
// reused; consumption is two-phase (Peek reserves a slot so a consumer
// can process it in place, Pop reclaims the slot once the consumer is
// done), which lets a flush finish and move on while a slow consumer is
// still draining an earlier batch.
package handoff

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned by Push as soon as the queue has been closed,
// and by Peek once it has been closed and every filled slot has been
// handed out.
var ErrClosed = errors.New("handoff queue closed")

// Queue is a bounded circular queue of fixed-capacity byte slots.
// Multiple consumers may hold distinct slots reserved at once via
// concurrent Peek calls and Pop them back in any order.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	bufs   [][]byte
	length []int
	freed  []bool // freed[i]: slot i has been Pop'd but freeHead hasn't reached it yet

	slotCap  int
	capacity int

	tail     int // next slot index to Push into
	readHead int // next slot index to Peek
	freeHead int // oldest reserved-and-not-yet-freed slot index

	filled   int // slots pushed but not yet freed (bounds Push); avoids the
	             // head==tail full/empty ambiguity of a plain circular buffer
	unpeeked int // slots pushed but not yet handed out by Peek

	noBlock bool
	closed  bool
}

// New allocates a queue of capacity slots, each able to hold up to
// slotCap bytes.
func New(capacity, slotCap int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		bufs:     make([][]byte, capacity),
		length:   make([]int, capacity),
		freed:    make([]bool, capacity),
		slotCap:  slotCap,
		capacity: capacity,
	}
	for i := range q.bufs {
		q.bufs[i] = make([]byte, slotCap)
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push copies data into the next free slot, blocking until one is
// available. It fails if data exceeds the configured slot capacity or
// the queue has been closed.
func (q *Queue) Push(data []byte) error {
	if len(data) > q.slotCap {
		return errors.Newf("handoff: payload of %d bytes exceeds slot capacity %d", len(data), q.slotCap)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.filled == q.capacity && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	idx := q.tail
	n := copy(q.bufs[idx], data)
	q.length[idx] = n
	q.tail = (q.tail + 1) % q.capacity
	q.filled++
	q.unpeeked++

	q.cond.Broadcast()
	return nil
}

// Peek blocks until a filled, unreserved slot is available and returns
// a view of its contents plus the slot index needed by Pop. While
// reserved, the slot's bytes are stable: the producer cannot reuse
// them until Pop is called with this index.
//
// If SetNonBlock(true) has been called and the queue is currently
// empty, Peek returns ok == false immediately instead of blocking —
// used while draining the tree down for shutdown.
func (q *Queue) Peek() (data []byte, idx int, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.unpeeked == 0 && !q.closed {
		if q.noBlock {
			return nil, 0, false, nil
		}
		q.cond.Wait()
	}
	if q.closed && q.unpeeked == 0 {
		return nil, 0, false, ErrClosed
	}

	idx = q.readHead
	q.readHead = (q.readHead + 1) % q.capacity
	q.unpeeked--
	return q.bufs[idx][:q.length[idx]], idx, true, nil
}

// Pop reclaims the slot returned by the matching Peek call, making it
// available to producers again. Concurrent consumers may each Peek a
// distinct slot and Pop them back in any order — Pop marks idx freed
// and advances freeHead over any run of contiguously freed slots, so
// an out-of-order Pop simply waits for its predecessors to free their
// slots before the space is reclaimed by Push.
func (q *Queue) Pop(idx int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	peekedNotFreed := q.filled - q.unpeeked
	dist := (idx - q.freeHead + q.capacity) % q.capacity
	if dist >= peekedNotFreed || q.freed[idx] {
		// idx was never reserved by a Peek that hasn't since been freed.
		panic("handoff: Pop called with a slot that is not reserved")
	}
	q.freed[idx] = true

	for q.filled > 0 && q.freed[q.freeHead] {
		q.freed[q.freeHead] = false
		q.freeHead = (q.freeHead + 1) % q.capacity
		q.filled--
	}
	q.cond.Broadcast()
}

// SetNonBlock toggles whether Peek blocks when the queue is empty. It
// is used to drain the queue during shutdown without hanging a
// consumer forever.
func (q *Queue) SetNonBlock(v bool) {
	q.mu.Lock()
	q.noBlock = v
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Close unblocks every waiting Push and Peek caller. Once closed, Push
// returns ErrClosed; Peek returns ErrClosed once every filled slot has
// been handed out.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Depth reports the number of filled-and-not-yet-popped slots, for
// monitoring.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filled
}

// Capacity returns the total number of slots.
func (q *Queue) Capacity() int {
	return q.capacity
}
