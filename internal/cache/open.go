package cache

import (
	"errors"
	"strings"

	logx "skladbot/pkg/logx"
)

// Open initializes the configured store.
//
// A missing, unreadable, or corrupt backing file is a degraded start with an
// empty store (logged as a warning), never an error: losing alert history is
// safe, refusing to start is not.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown cache driver: " + cfg.Driver)
	}
}
