package framestats

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, window int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.db")
	s, err := Open(path, window)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t, 10)

	for i := uint64(0); i < 3; i++ {
		rec := FrameRecord{
			ID:       "frame-" + string(rune('a'+i)),
			Seq:      i,
			At:       time.Now(),
			Layers:   [][]string{{"root"}, {"leaf-a", "leaf-b"}},
			Passes:   []PassRecord{{Name: "root", Duration: time.Millisecond}},
			Duration: 5 * time.Millisecond,
		}
		if err := s.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Seq != 2 || recent[1].Seq != 1 {
		t.Fatalf("expected newest-first ordering, got seqs %d, %d", recent[0].Seq, recent[1].Seq)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	s := openTestStore(t, 3)

	for i := uint64(0); i < 10; i++ {
		if err := s.Record(FrameRecord{Seq: i, At: time.Now()}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	stats := s.Stats()
	if stats["frames_retained"] != 3 {
		t.Fatalf("expected window to cap retained frames at 3, got %d", stats["frames_retained"])
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records after eviction, got %d", len(recent))
	}
	for _, rec := range recent {
		if rec.Seq < 7 {
			t.Fatalf("expected only the newest 3 sequences to survive, found seq %d", rec.Seq)
		}
	}
}

func TestUnboundedWindowRetainsEverything(t *testing.T) {
	s := openTestStore(t, 0)

	for i := uint64(0); i < 20; i++ {
		if err := s.Record(FrameRecord{Seq: i, At: time.Now()}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	stats := s.Stats()
	if stats["frames_retained"] != 20 {
		t.Fatalf("expected all 20 frames retained, got %d", stats["frames_retained"])
	}
}
