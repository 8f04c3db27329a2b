// Package backingstore provides the single scratch file shared by every
// level-2-and-deeper buffer control block. All I/O is positional
// (offset-parameterized) so that many goroutines can share one *os.File
// without a shared seek cursor, and short reads/writes are retried in a
// loop until the full length has been transferred.
package backingstore

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/graphstream/buffertree/pkg/treeerr"
)

// FileName is the name of the backing file created inside the
// configured directory.
const FileName = "buffer_tree_v0.2.data"

// Store wraps a single *os.File opened for shared positional I/O.
type Store struct {
	f *os.File
}

// Open creates (or truncates, if reset is set) the backing file inside
// dir and returns a Store ready for positional I/O.
func Open(dir string, reset bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	flags := os.O_RDWR | os.O_CREATE
	if reset {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(filepath.Join(dir, FileName), flags, 0o600)
	if err != nil {
		return nil, err
	}

	return &Store{f: f}, nil
}

// Preallocate reserves size bytes for the backing file up front so that
// subsequent positional writes never cause runtime fragmentation. It
// uses syscall.Fallocate where available and falls back to Truncate
// (which does not guarantee block allocation but still fixes the file's
// logical size) when Fallocate is unsupported by the filesystem.
func (s *Store) Preallocate(size int64) error {
	if size <= 0 {
		return nil
	}
	if err := syscall.Fallocate(int(s.f.Fd()), 0, 0, size); err != nil {
		return s.f.Truncate(size)
	}
	return nil
}

// WriteAt writes the full contents of data at offset off, retrying on
// short writes. A failed underlying write is treated as fatal per the
// error-handling policy: it returns a wrapped treeerr.IOError.
func (s *Store) WriteAt(data []byte, off int64) error {
	written := 0
	for written < len(data) {
		n, err := s.f.WriteAt(data[written:], off+int64(written))
		if err != nil {
			return treeerr.NewIOError("write", off, err)
		}
		written += n
	}
	return nil
}

// ReadAt reads len(buf) bytes starting at offset off into buf, retrying
// on short reads.
func (s *Store) ReadAt(buf []byte, off int64) error {
	read := 0
	for read < len(buf) {
		n, err := s.f.ReadAt(buf[read:], off+int64(read))
		if err != nil {
			return treeerr.NewIOError("read", off, err)
		}
		read += n
	}
	return nil
}

// Close closes the backing file.
func (s *Store) Close() error {
	return s.f.Close()
}
