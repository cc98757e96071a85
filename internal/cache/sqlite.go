//go:build sqlite
// +build sqlite

package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "skladbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore mirrors the table in memory (single-writer access, see doc.go)
// and writes through on Put, so every mutation is durable immediately and
// Persist is a no-op checkpoint.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	records map[string]Record
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("cache.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log, records: map[string]Record{}}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.loadAll()
	if n := s.PurgeExpired(time.Now(), cfg.Retention); n > 0 {
		log.Info("stale cache records purged at load", logx.Int("removed", n))
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(string(b))
	return err
}

// loadAll mirrors the table into memory. Row-level decode errors degrade to
// skipping the row, consistent with the file driver's corrupt-means-empty rule.
func (s *sqliteStore) loadAll() {
	rows, err := s.db.Query(`SELECT key, first_seen, last_alerted, fingerprint FROM records`)
	if err != nil {
		s.log.Warn("cache table unreadable, starting empty", logx.Err(err))
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, firstSeen, lastAlerted, fingerprint string
		if err := rows.Scan(&key, &firstSeen, &lastAlerted, &fingerprint); err != nil {
			s.log.Warn("cache row skipped", logx.Err(err))
			continue
		}
		r := Record{Fingerprint: fingerprint}
		r.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen)
		r.LastAlerted, _ = time.Parse(time.RFC3339Nano, lastAlerted)
		if key != "" {
			s.records[key] = r
		}
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("cache scan interrupted", logx.Err(err))
	}
}

func (s *sqliteStore) Get(key string) (Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

func (s *sqliteStore) Put(key string, r Record) {
	if key == "" || s.db == nil {
		return
	}
	s.records[key] = r
	_, err := s.db.Exec(
		`INSERT INTO records(key, first_seen, last_alerted, fingerprint) VALUES(?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET first_seen=excluded.first_seen,
		   last_alerted=excluded.last_alerted, fingerprint=excluded.fingerprint`,
		key, r.FirstSeen.Format(time.RFC3339Nano), r.LastAlerted.Format(time.RFC3339Nano), r.Fingerprint,
	)
	if err != nil {
		s.log.Warn("cache write failed", logx.String("key", key), logx.Err(err))
	}
}

func (s *sqliteStore) Len() int { return len(s.records) }

func (s *sqliteStore) PurgeExpired(now time.Time, retention time.Duration) int {
	if retention <= 0 || s.db == nil {
		return 0
	}
	cutoff := now.Add(-retention)
	n := 0
	for k, r := range s.records {
		if r.purgeStamp().Before(cutoff) {
			delete(s.records, k)
			if _, err := s.db.Exec(`DELETE FROM records WHERE key = ?`, k); err != nil {
				s.log.Warn("cache purge delete failed", logx.String("key", k), logx.Err(err))
			}
			n++
		}
	}
	return n
}

// Persist is a no-op: every Put is already durable.
func (s *sqliteStore) Persist() error { return nil }

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
