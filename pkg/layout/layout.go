// Package layout builds the B-ary skeleton of Buffer Control Blocks
// from (N, B): per-node key ranges, level assignment, and file-space
// reservation, following §4.D of the design.
package layout

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/graphstream/buffertree/pkg/bcb"
)

// Layout is the fully-built tree skeleton: every non-root BCB, plus the
// byte footprints callers need to allocate the level-1 RAM cache and
// preallocate the backing file.
type Layout struct {
	BCBs []*bcb.BCB

	N          uint64
	B          int
	MaxLevel   int
	BufferSize int64
	LeafSize   int64
	PageSize   int64

	// CacheSize is the total bytes reserved across all level-1 BCBs,
	// which live in a single contiguous RAM region.
	CacheSize int64

	// FileSize is the total bytes reserved across all level >= 2 BCBs,
	// which live in the backing file.
	FileSize int64
}

// parent tracks a node (or the virtual root, idx == -1) while the
// layout is under construction.
type parent struct {
	idx           int
	minKey        uint64
	maxKey        uint64
}

// maxLevelFor computes ceil(log_B(N)), with a floor of 1 so that N == 1
// still yields a single leaf level.
func maxLevelFor(n uint64, b int) int {
	if n <= 1 {
		return 1
	}
	l := math.Ceil(math.Log(float64(n))/math.Log(float64(b)) - 1e-9)
	if l < 1 {
		l = 1
	}
	return int(l)
}

// leafSizeFor computes L = max(page_size, floor(24 * (log2 N)^3)).
func leafSizeFor(n uint64, pageSize int64) int64 {
	if n <= 1 {
		return pageSize
	}
	log2n := math.Log2(float64(n))
	l := int64(math.Floor(24 * log2n * log2n * log2n))
	if l < pageSize {
		l = pageSize
	}
	return l
}

// Build constructs the tree layout for N keys with branching factor B,
// given the system page size and the requested buffer size (raised to
// page size if smaller, per §3).
func Build(n uint64, b int, pageSize, requestedBufferSize int64) (*Layout, error) {
	if b < 2 {
		return nil, errors.Newf("branching factor must be >= 2, got %d", b)
	}
	if n < 1 {
		return nil, errors.Newf("key count must be >= 1, got %d", n)
	}
	if pageSize <= 0 {
		return nil, errors.Newf("page size must be positive, got %d", pageSize)
	}

	bufferSize := requestedBufferSize
	if bufferSize < pageSize {
		bufferSize = pageSize
	}

	l := &Layout{
		N:          n,
		B:          b,
		MaxLevel:   maxLevelFor(n, b),
		BufferSize: bufferSize,
		LeafSize:   leafSizeFor(n, pageSize),
		PageSize:   pageSize,
	}

	var nextID uint32
	parents := []parent{{idx: -1, minKey: 0, maxKey: n - 1}}

	for level := 1; level <= l.MaxLevel; level++ {
		var nextParents []parent

		for _, p := range parents {
			keys := p.maxKey - p.minKey + 1
			if keys == 1 && p.idx >= 0 {
				// Parent is already a leaf: no children are created.
				continue
			}

			div := float64(keys) / float64(b)
			largerCount := int(keys % uint64(b))

			key := p.minKey
			remaining := keys

			for c := 0; c < b && remaining > 0; c++ {
				var childKeys uint64
				if c < largerCount {
					childKeys = uint64(math.Ceil(div))
				} else {
					childKeys = uint64(math.Floor(div))
				}
				if childKeys == 0 {
					break
				}

				minKey := key
				maxKey := key + childKeys - 1
				key += childKeys
				remaining -= childKeys

				kind := bcb.KindFile
				capacity := l.BufferSize
				if level == 1 {
					kind = bcb.KindCached
				}
				if minKey == maxKey {
					capacity = l.LeafSize
				}

				var offset int64
				if kind == bcb.KindCached {
					offset = l.CacheSize
					l.CacheSize += capacity + pageSize
				} else {
					offset = l.FileSize
					l.FileSize += capacity + pageSize
				}

				node := bcb.New(nextID, level, kind, minKey, maxKey, offset, capacity, pageSize)
				if p.idx >= 0 {
					l.BCBs[p.idx].AddChild(nextID)
				}
				l.BCBs = append(l.BCBs, node)
				nextParents = append(nextParents, parent{idx: len(l.BCBs) - 1, minKey: minKey, maxKey: maxKey})
				nextID++
			}
		}

		parents = nextParents
	}

	return l, nil
}
