package tree

import (
	"math"

	"github.com/graphstream/buffertree/pkg/bcb"
	"github.com/graphstream/buffertree/pkg/record"
	"github.com/graphstream/buffertree/pkg/treeerr"
)

// whichChild implements the routing rule: a node's key range
// [minKey, maxKey] is partitioned into `options` pieces the same way
// pkg/layout partitions it when constructing the tree (first r pieces
// get ceil(div) keys, the rest get floor(div) keys, where
// div = total/options and r = total mod options). Given a key known to
// lie in range, it returns which 0-based piece contains it.
func whichChild(key, minKey, maxKey uint64, options int) (int, error) {
	if key < minKey || key > maxKey {
		return -1, treeerr.NewKeyRoutingError(key, minKey, maxKey, -1, options)
	}

	total := maxKey - minKey + 1
	div := float64(total) / float64(options)
	r := int(total % uint64(options))
	ceilDiv := uint64(math.Ceil(div))
	floorDiv := uint64(math.Floor(div))
	largerKeys := uint64(r) * ceilDiv

	idx := key - minKey
	var child int
	if idx < largerKeys {
		if ceilDiv == 0 {
			return -1, treeerr.NewKeyRoutingError(key, minKey, maxKey, -1, options)
		}
		child = int(idx / ceilDiv)
	} else {
		if floorDiv == 0 {
			return -1, treeerr.NewKeyRoutingError(key, minKey, maxKey, -1, options)
		}
		child = r + int((idx-largerKeys)/floorDiv)
	}

	if child < 0 || child >= options {
		return -1, treeerr.NewKeyRoutingError(key, minKey, maxKey, child, options)
	}
	return child, nil
}

// childrenOf returns the dense slice of b's live children.
func (t *Tree) childrenOf(b *bcb.BCB) []*bcb.BCB {
	first := int(b.FirstChild())
	n := b.ChildrenNum()
	out := make([]*bcb.BCB, n)
	for i := 0; i < n; i++ {
		out[i] = t.bcbs[first+i]
	}
	return out
}

func (t *Tree) writerFor(b *bcb.BCB) bcb.Writer {
	if b.Kind() == bcb.KindCached {
		return t.cache
	}
	return t.file
}

// routeAndWrite partitions data (a run of fixed-size update records)
// among children by key, batching each child's share into full-flush
// units (the largest multiple of the record size that fits in one
// page) before issuing each intermediate write.
func (t *Tree) routeAndWrite(children []*bcb.BCB, minKey, maxKey uint64, data []byte) error {
	n := record.Count(len(data))
	unit := int(bcb.RecordCapacityUnit(t.pageSize))
	if unit <= 0 {
		unit = record.Size
	}

	perChild := make([][]byte, len(children))
	for i := 0; i < n; i++ {
		rec := data[i*record.Size : (i+1)*record.Size]
		key := record.KeyAt(rec)

		idx, err := whichChild(key, minKey, maxKey, t.branching)
		if err != nil {
			return err
		}
		if idx >= len(children) {
			return treeerr.NewKeyRoutingError(key, minKey, maxKey, idx, len(children))
		}

		perChild[idx] = append(perChild[idx], rec...)
		if len(perChild[idx]) >= unit {
			if err := t.writeToChild(children[idx], perChild[idx]); err != nil {
				return err
			}
			perChild[idx] = perChild[idx][:0]
		}
	}

	for i, buf := range perChild {
		if len(buf) == 0 {
			continue
		}
		if err := t.writeToChild(children[i], buf); err != nil {
			return err
		}
	}
	return nil
}

// writeToChild writes data to child under its lock and, if the write
// newly crosses the child's flush threshold, enqueues a flush request
// for it.
func (t *Tree) writeToChild(child *bcb.BCB, data []byte) error {
	child.Lock()
	crossed, err := child.Write(t.writerFor(child), data)
	child.Unlock()
	if err != nil {
		return err
	}
	if crossed {
		t.enqueueFlush(child.ID())
	}
	return nil
}

// flushControlBlock drains one BCB: it reads the BCB's full contents
// into a scratch buffer shared by every BCB at that level (at most one
// flush per level runs at a time, bounding the scratch memory the tree
// needs), then either hands a leaf's contents to the handoff queue or
// recursively routes an internal node's contents to its children, and
// finally resets the BCB.
func (t *Tree) flushControlBlock(id uint32) error {
	b := t.bcbs[id]
	lvl := b.Level()

	t.levelMu[lvl].Lock()
	defer t.levelMu[lvl].Unlock()

	b.Lock()
	size := b.Size()
	if size == 0 {
		b.Unlock()
		return nil
	}

	scratch := t.levelScratch[lvl][:size]
	if err := b.ReadAll(t.writerFor(b), scratch); err != nil {
		b.Unlock()
		return err
	}

	if b.IsLeaf() {
		err := t.queue.Push(scratch)
		b.Reset()
		b.Unlock()
		return err
	}

	children := t.childrenOf(b)
	err := t.routeAndWrite(children, b.MinKey(), b.MaxKey(), scratch)
	b.Reset()
	b.Unlock()
	return err
}
