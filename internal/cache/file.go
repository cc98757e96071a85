package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "skladbot/pkg/logx"
)

// fileStore keeps the mapping in memory and snapshots it to one JSON file.
// Persist writes to a temp file and renames it over the snapshot, so a crash
// mid-write leaves the previous snapshot intact.
type fileStore struct {
	log  logx.Logger
	path string

	records map[string]Record
	closed  bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("cache.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, records: map[string]Record{}}
	s.load()
	if n := s.PurgeExpired(time.Now(), cfg.Retention); n > 0 {
		log.Info("stale cache records purged at load", logx.Int("removed", n))
	}
	return s, nil
}

// load reads the snapshot. Missing file, parse error, or schema mismatch all
// degrade to an empty store with a warning.
func (s *fileStore) load() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("cache snapshot unreadable, starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return
	}

	var m map[string]Record
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warn("cache snapshot corrupt, starting empty", logx.String("path", s.path), logx.Err(err))
		return
	}
	for k, r := range m {
		if k == "" {
			continue
		}
		s.records[k] = r
	}
}

func (s *fileStore) Get(key string) (Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

func (s *fileStore) Put(key string, r Record) {
	if key == "" {
		return
	}
	s.records[key] = r
}

func (s *fileStore) Len() int { return len(s.records) }

func (s *fileStore) PurgeExpired(now time.Time, retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	cutoff := now.Add(-retention)
	n := 0
	for k, r := range s.records {
		if r.purgeStamp().Before(cutoff) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

func (s *fileStore) Persist() error {
	if s.closed {
		return ErrClosed
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	if s.closed {
		return nil
	}
	err := s.Persist()
	s.closed = true
	return err
}
