// Package tree assembles pkg/bcb, pkg/layout, pkg/backingstore and
// pkg/handoff into the external-memory buffered routing tree: a single
// Insert path that amortizes random-access fan-out into sequential
// writes, and a GetData path that downstream consumers drain from the
// leaves' handoff queue.
package tree

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/graphstream/buffertree/pkg/backingstore"
	"github.com/graphstream/buffertree/pkg/bcb"
	"github.com/graphstream/buffertree/pkg/handoff"
	"github.com/graphstream/buffertree/pkg/layout"
	"github.com/graphstream/buffertree/pkg/record"
	"github.com/graphstream/buffertree/pkg/treeerr"
)

// rootID is a sentinel BufferID used when reporting errors against the
// root's in-memory region, which has no BCB of its own.
const rootID = ^uint32(0)

// cacheWriter adapts a plain byte slice to bcb.Writer, backing every
// level-1 BCB's region in RAM.
type cacheWriter struct {
	buf []byte
}

func (c *cacheWriter) WriteAt(data []byte, off int64) error {
	copy(c.buf[off:], data)
	return nil
}

func (c *cacheWriter) ReadAt(buf []byte, off int64) error {
	copy(buf, c.buf[off:off+int64(len(buf))])
	return nil
}

// Tree is the external-memory buffered routing tree described by the
// design: a root region in RAM, a level-1 cache region in RAM, and
// every deeper level backed by one shared positional file, all drained
// by a pool of background flush workers into a handoff queue.
type Tree struct {
	layout    *layout.Layout
	pageSize  int64
	branching int

	cache *cacheWriter
	file  *backingstore.Store

	bcbs        []*bcb.BCB
	bcbsByLevel [][]*bcb.BCB
	levelOne    []*bcb.BCB

	levelMu      []sync.Mutex
	levelScratch [][]byte

	root struct {
		mu       sync.Mutex
		buf      []byte
		ptr      int64
		capacity int64
	}

	queue   *handoff.Queue
	flushCh chan uint32
	wg      sync.WaitGroup
	flushWG sync.WaitGroup

	nonBlock atomic.Bool

	errMu  sync.Mutex
	errVal error
}

// Config bundles the construction parameters for New.
type Config struct {
	Dir        string
	N          uint64
	B          int
	PageSize   int64
	BufferSize int64
	Workers    int
	Reset      bool
	QueueDepth int
}

// New builds the tree's layout, allocates its RAM and file regions, and
// starts its flush worker pool.
func New(cfg Config) (*Tree, error) {
	lay, err := layout.Build(cfg.N, cfg.B, cfg.PageSize, cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		layout:    lay,
		pageSize:  cfg.PageSize,
		branching: cfg.B,
		cache:     &cacheWriter{buf: make([]byte, lay.CacheSize)},
	}

	if lay.FileSize > 0 {
		store, err := backingstore.Open(cfg.Dir, cfg.Reset)
		if err != nil {
			return nil, err
		}
		if err := store.Preallocate(lay.FileSize); err != nil {
			return nil, err
		}
		t.file = store
	}

	t.bcbs = lay.BCBs
	t.bcbsByLevel = make([][]*bcb.BCB, lay.MaxLevel+1)
	t.levelScratch = make([][]byte, lay.MaxLevel+1)
	t.levelMu = make([]sync.Mutex, lay.MaxLevel+1)

	maxCapByLevel := make([]int64, lay.MaxLevel+1)
	leaves := 0
	for _, node := range t.bcbs {
		lvl := node.Level()
		t.bcbsByLevel[lvl] = append(t.bcbsByLevel[lvl], node)
		if cap := node.Capacity() + cfg.PageSize; cap > maxCapByLevel[lvl] {
			maxCapByLevel[lvl] = cap
		}
		if node.IsLeaf() {
			leaves++
		}
	}
	for lvl := 1; lvl <= lay.MaxLevel; lvl++ {
		t.levelScratch[lvl] = make([]byte, maxCapByLevel[lvl])
	}
	t.levelOne = t.bcbsByLevel[1]

	t.root.capacity = lay.BufferSize
	t.root.buf = make([]byte, lay.BufferSize+cfg.PageSize)

	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = leaves
	}
	if queueDepth <= 0 {
		queueDepth = 1
	}
	t.queue = handoff.New(queueDepth, int(lay.LeafSize+cfg.PageSize))
	t.flushCh = make(chan uint32, len(t.bcbs)+1)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	t.runFlushers(workers)

	return t, nil
}

// Insert appends one (key, value) update record to the root's RAM
// buffer, draining it into the level-1 children once it reaches its
// flush threshold.
func (t *Tree) Insert(key, val uint64) error {
	if err := t.fatal(); err != nil {
		return err
	}
	if key >= t.layout.N {
		return treeerr.NewKeyRoutingError(key, 0, t.layout.N-1, -1, t.branching)
	}

	rec := make([]byte, record.Size)
	record.Encode(rec, record.Update{SrcKey: key, DstVal: val})

	t.root.mu.Lock()
	defer t.root.mu.Unlock()

	if t.root.ptr+record.Size > t.root.capacity+t.pageSize {
		return treeerr.NewBufferFull(rootID, record.Size)
	}
	copy(t.root.buf[t.root.ptr:], rec)
	t.root.ptr += record.Size

	if t.root.ptr >= t.root.capacity {
		return t.drainRootLocked()
	}
	return nil
}

// drainRootLocked routes the root's current contents into the level-1
// children and resets it. Caller must hold root.mu.
func (t *Tree) drainRootLocked() error {
	data := append([]byte(nil), t.root.buf[:t.root.ptr]...)
	t.root.ptr = 0
	return t.routeAndWrite(t.levelOne, 0, t.layout.N-1, data)
}

// ForceFlush drains every buffer in the tree regardless of whether it
// has crossed its threshold, level by level from the root down, and
// blocks until every triggered flush (including ones it triggers
// itself) has completed.
func (t *Tree) ForceFlush() error {
	if err := t.fatal(); err != nil {
		return err
	}

	t.root.mu.Lock()
	if t.root.ptr > 0 {
		if err := t.drainRootLocked(); err != nil {
			t.root.mu.Unlock()
			return err
		}
	}
	t.root.mu.Unlock()

	t.flushWG.Wait()
	if err := t.fatal(); err != nil {
		return err
	}

	for lvl := 1; lvl <= t.layout.MaxLevel; lvl++ {
		for _, node := range t.bcbsByLevel[lvl] {
			node.Lock()
			nonEmpty := node.Size() > 0
			node.Unlock()
			if nonEmpty {
				t.enqueueFlush(node.ID())
			}
		}
		t.flushWG.Wait()
		if err := t.fatal(); err != nil {
			return err
		}
	}
	return nil
}

// GetData pulls the next ready leaf batch from the handoff queue. ok is
// false (with a nil error) if the queue is empty and SetNonBlock(true)
// has been called.
func (t *Tree) GetData() (data []byte, ok bool, err error) {
	raw, idx, ok, err := t.queue.Peek()
	if err != nil || !ok {
		return nil, ok, err
	}
	out := append([]byte(nil), raw...)
	t.queue.Pop(idx)
	return out, true, nil
}

// SetNonBlock switches GetData from blocking to immediately reporting
// an empty queue. It is
// used when shutting the tree down so a slow or absent consumer never
// hangs teardown.
func (t *Tree) SetNonBlock(v bool) {
	t.nonBlock.Store(v)
	t.queue.SetNonBlock(v)
}

// Close force-flushes every buffer, stops the flush worker pool, and
// releases the backing file.
func (t *Tree) Close() error {
	flushErr := t.ForceFlush()

	t.SetNonBlock(true)
	close(t.flushCh)
	t.wg.Wait()
	t.queue.Close()

	var closeErr error
	if t.file != nil {
		closeErr = t.file.Close()
	}

	if flushErr != nil {
		return flushErr
	}
	if err := t.fatal(); err != nil {
		return err
	}
	return closeErr
}

// DebugDump writes a one-line summary of every BCB, for the monitoring
// server's debug route.
func (t *Tree) DebugDump(w io.Writer) error {
	fmt.Fprintf(w, "root: ptr=%d capacity=%d\n", t.root.ptr, t.root.capacity)
	for _, node := range t.bcbs {
		node.Lock()
		size := node.Size()
		node.Unlock()
		fmt.Fprintf(w, "bcb %d: level=%d kind=%v range=[%d,%d] size=%d children=%d first=%d\n",
			node.ID(), node.Level(), node.Kind(), node.MinKey(), node.MaxKey(), size,
			node.ChildrenNum(), node.FirstChild())
	}
	return nil
}

func (t *Tree) fail(err error) {
	if err == nil {
		return
	}
	t.errMu.Lock()
	if t.errVal == nil {
		t.errVal = err
	}
	t.errMu.Unlock()
}

func (t *Tree) fatal() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.errVal
}
