// Package sink implements a demonstration downstream consumer of a
// buffer tree: it drains leaf batches via Tree.GetData, decodes each
// fixed-size update record, and persists the latest value seen for
// every key into an embedded LSM store with a CRC-checked envelope.
package sink

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/graphstream/buffertree/pkg/batchrecord"
	"github.com/graphstream/buffertree/pkg/record"
)

// Source is the subset of *tree.Tree a Sink needs: a way to pull
// drained batches and to know when to stop blocking.
type Source interface {
	GetData() (data []byte, ok bool, err error)
}

// Sink persists drained update records into a pebble-backed store,
// keyed by the 8-byte big-endian routing key.
type Sink struct {
	db *pebble.DB

	codec *batchrecord.RecordCodec

	batches uint64
	records uint64
}

// Open opens (creating if necessary) a pebble store at dir.
func Open(dir string) (*Sink, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Sink{db: db, codec: batchrecord.NewRecordCodec()}, nil
}

// Close closes the underlying store.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Drain pulls batches from src until GetData reports ok == false
// (meaning the tree's handoff queue is empty and non-blocking mode has
// been set), or ctx is cancelled. It returns the first error
// encountered, if any.
func (s *Sink) Drain(ctx context.Context, src Source) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, ok, err := src.GetData()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.applyBatch(data); err != nil {
			return err
		}
	}
}

// applyBatch decodes a run of fixed-size update records and writes
// each one into the store as a single pebble batch, tagged with a
// ksuid correlation id so operators can trace which ingest batch wrote
// a given key.
func (s *Sink) applyBatch(data []byte) error {
	n := record.Count(len(data))
	batchID := ksuid.New()

	wb := s.db.NewBatch()
	defer wb.Close()

	for i := 0; i < n; i++ {
		u := record.Decode(data[i*record.Size : (i+1)*record.Size])

		keyBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(keyBytes, u.SrcKey)

		valBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(valBytes, u.DstVal)

		envelope, err := s.codec.Encode(append(keyBytes, batchID.Bytes()...), valBytes)
		if err != nil {
			return err
		}

		if err := wb.Set(keyBytes, envelope, nil); err != nil {
			return err
		}
	}

	s.batches++
	s.records += uint64(n)

	return wb.Commit(pebble.Sync)
}

// Get returns the decoded-and-validated value last written for key, or
// ok == false if no record exists.
func (s *Sink) Get(key uint64) (val uint64, ok bool, err error) {
	keyBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(keyBytes, key)

	raw, closer, err := s.db.Get(keyBytes)
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer closer.Close()

	rec, err := s.codec.Decode(raw)
	if err != nil {
		return 0, false, err
	}
	if err := rec.Validate(); err != nil {
		return 0, false, err
	}

	return binary.BigEndian.Uint64(rec.Value), true, nil
}

// Stats reports how many batches and records this sink has applied.
func (s *Sink) Stats() (batches, records uint64) {
	return s.batches, s.records
}
