package cache

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	logx "skladbot/pkg/logx"
)

func openTemp(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, path := openTemp(t)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	for _, n := range []int{0, 1, 1000} {
		for i := 0; i < n; i++ {
			s.Put("prod-"+strconv.Itoa(i), Record{FirstSeen: now, LastAlerted: now, Fingerprint: "low"})
		}
		if err := s.Persist(); err != nil {
			t.Fatalf("Persist: %v", err)
		}

		reopened, err := Open(Config{Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if got := reopened.Len(); got != s.Len() {
			t.Fatalf("reopened Len = %d, want %d", got, s.Len())
		}
	}

	s.Put("prod-1", Record{FirstSeen: now, LastAlerted: now, Fingerprint: "zero"})
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	reopened, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, ok := reopened.Get("prod-1")
	if !ok {
		t.Fatal("record lost after reopen")
	}
	if rec.Fingerprint != "zero" || !rec.LastAlerted.Equal(now) {
		t.Fatalf("record mangled: %+v", rec)
	}
}

func TestFileStoreCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open should degrade, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	// The degraded store must still be able to persist over the bad file.
	s.Put("k", Record{FirstSeen: time.Now(), Fingerprint: "low"})
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist after corrupt load: %v", err)
	}
}

func TestFileStorePurgeExpired(t *testing.T) {
	s, _ := openTemp(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	retention := 30 * 24 * time.Hour

	s.Put("old", Record{FirstSeen: now.Add(-40 * 24 * time.Hour), LastAlerted: now.Add(-31 * 24 * time.Hour), Fingerprint: "low"})
	s.Put("fresh", Record{FirstSeen: now.Add(-40 * 24 * time.Hour), LastAlerted: now.Add(-1 * time.Hour), Fingerprint: "low"})
	// Never alerted: retention measured from FirstSeen.
	s.Put("seen-only", Record{FirstSeen: now.Add(-31 * 24 * time.Hour), Fingerprint: "ok"})

	if n := s.PurgeExpired(now, retention); n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatal("fresh record purged")
	}
	if _, ok := s.Get("old"); ok {
		t.Fatal("stale record survived")
	}
	if n := s.PurgeExpired(now, 0); n != 0 {
		t.Fatalf("zero retention purged %d records", n)
	}
}

func TestFileStorePurgesAtLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.Put("stale", Record{FirstSeen: time.Now().Add(-90 * 24 * time.Hour), Fingerprint: "low"})
	s.Put("fresh", Record{FirstSeen: time.Now(), Fingerprint: "low"})
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(Config{Path: path, Retention: 30 * 24 * time.Hour}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Get("stale"); ok {
		t.Fatal("stale record survived load-time purge")
	}
	if _, ok := reopened.Get("fresh"); !ok {
		t.Fatal("fresh record purged")
	}
}

func TestFileStoreClose(t *testing.T) {
	s, path := openTemp(t)
	s.Put("k", Record{FirstSeen: time.Now(), Fingerprint: "zero"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Persist(); err != ErrClosed {
		t.Fatalf("Persist after Close = %v, want ErrClosed", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot missing after Close: %v", err)
	}
}

func TestFileStoreIgnoresEmptyKey(t *testing.T) {
	s, _ := openTemp(t)
	s.Put("", Record{Fingerprint: "low"})
	if s.Len() != 0 {
		t.Fatal("empty key stored")
	}
}
