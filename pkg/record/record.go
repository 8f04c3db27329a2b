// Package record implements the fixed-size wire format for buffer-tree
// update records: a source key paired with a destination value, packed
// with no framing so that buffers can be routed and copied as raw bytes.
package record

import "encoding/binary"

// Width is the byte width of a single integer field (src_key or
// dst_value). The on-disk and in-memory representation is little-endian.
const Width = 8

// Size is the total encoded size of one update record: U = 2*Width.
const Size = 2 * Width

// Update is a single source-key/destination-value pair.
type Update struct {
	SrcKey uint64
	DstVal uint64
}

// IsZero reports whether u is the all-zero sentinel used to terminate a
// batch during consumption.
func (u Update) IsZero() bool {
	return u.SrcKey == 0 && u.DstVal == 0
}

// Encode serializes u into dst, which must be at least Size bytes long.
func Encode(dst []byte, u Update) {
	binary.LittleEndian.PutUint64(dst[0:Width], u.SrcKey)
	binary.LittleEndian.PutUint64(dst[Width:Size], u.DstVal)
}

// Decode reads a single update from src, which must be at least Size
// bytes long.
func Decode(src []byte) Update {
	return Update{
		SrcKey: binary.LittleEndian.Uint64(src[0:Width]),
		DstVal: binary.LittleEndian.Uint64(src[Width:Size]),
	}
}

// KeyAt reads just the src_key field from a serialized record, without
// decoding the whole thing. Used by the router to decide which child a
// record belongs to.
func KeyAt(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src[0:Width])
}

// Count returns how many whole records fit in a buffer of n bytes.
func Count(n int) int {
	return n / Size
}
