// Package framestats is the frame-history store: a rolling window of
// compiled layer shapes and pass durations, persisted with BoltDB for
// postmortem inspection. It is not the live DAG/Frame Graph state, which
// is rebuilt every frame and never persisted; this is an ambient
// observability log, one bucket keyed by a monotonic frame sequence
// number, in the same single-bucket-per-concern style as
// `persistence.go`'s WorkflowStore.
package framestats

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketFrames = []byte("frames")

// PassRecord is one pass's contribution to a recorded frame.
type PassRecord struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// FrameRecord is a single frame's postmortem: the compiled layering (by
// pass name, matching framegraph.FrameSnapshot), per-pass durations, and
// the wall-clock time the whole frame took.
type FrameRecord struct {
	ID       string          `json:"id"`
	Seq      uint64          `json:"seq"`
	At       time.Time       `json:"at"`
	Layers   [][]string      `json:"layers"`
	Passes   []PassRecord    `json:"passes"`
	Duration time.Duration   `json:"duration"`
}

// Store is a bbolt-backed ring buffer of FrameRecords, bounded to the most
// recent `window` frames.
type Store struct {
	db     *bbolt.DB
	window int
}

// Open opens (creating if necessary) a frame-history database at path,
// retaining at most window records; window <= 0 means unbounded.
func Open(path string, window int) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open frame history db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFrames)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create frames bucket: %w", err)
	}

	return &Store{db: db, window: window}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Record persists rec, keyed by rec.Seq, and evicts the oldest entries
// beyond the configured window in the same transaction.
func (s *Store) Record(rec FrameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal frame record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFrames)
		if err := bucket.Put(seqKey(rec.Seq), data); err != nil {
			return err
		}
		if s.window <= 0 {
			return nil
		}

		count := bucket.Stats().KeyN
		excess := count - s.window
		if excess <= 0 {
			return nil
		}
		cursor := bucket.Cursor()
		k, _ := cursor.First()
		for ; k != nil && excess > 0; k, _ = cursor.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// Recent returns up to limit of the most recently recorded frames, newest
// first.
func (s *Store) Recent(limit int) ([]FrameRecord, error) {
	var out []FrameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFrames)
		cursor := bucket.Cursor()

		count := 0
		for k, v := cursor.Last(); k != nil && count < limit; k, v = cursor.Prev() {
			var rec FrameRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			out = append(out, rec)
			count++
		}
		return nil
	})
	return out, err
}

// Stats returns lightweight database statistics for the introspection
// endpoint.
func (s *Store) Stats() map[string]int {
	stats := make(map[string]int)
	s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFrames)
		stats["frames_retained"] = bucket.Stats().KeyN
		return nil
	})
	return stats
}
