package cache

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("cache store closed")

// Config configures a cache store.
//
// Driver values:
//   - "file": JSON snapshot per store (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver string
	Path   string
	// Retention drops records older than this at load; 0 disables the
	// load-time purge (PurgeExpired still works).
	Retention   time.Duration
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is the dedup state kept per monitored entity.
//
// Fingerprint summarizes the alert-relevant state ("zero", "low",
// "expired:2026-01-02", ...); an unchanged fingerprint inside the
// suppression window means "same condition as before, stay quiet".
type Record struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastAlerted time.Time `json:"last_alerted"`
	Fingerprint string    `json:"fingerprint"`
}

// purgeStamp picks the timestamp retention is measured against.
func (r Record) purgeStamp() time.Time {
	if !r.LastAlerted.IsZero() {
		return r.LastAlerted
	}
	return r.FirstSeen
}

// Store is the persistence API used by checkers.
type Store interface {
	// Get has no side effects.
	Get(key string) (Record, bool)
	// Put upserts; it overwrites any fingerprint/timestamps for that key.
	Put(key string, r Record)
	Len() int
	// PurgeExpired removes records whose last activity is older than
	// retention and reports how many were dropped.
	PurgeExpired(now time.Time, retention time.Duration) int
	// Persist makes the current mapping durable. No partial/corrupt state
	// may be observable after a crash mid-write.
	Persist() error
	Close() error
}
