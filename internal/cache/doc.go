package cache

// Package cache persists per-entity alert records so checks stay idempotent
// across restarts.
//
// Concurrency contract: a Store instance is owned by exactly one checker and
// is only touched from the monitor loop, so drivers do not lock around the
// Get/Put path. This is a documented invariant, not an accident; do not share
// a store between checkers.
