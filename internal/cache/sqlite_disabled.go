//go:build !sqlite
// +build !sqlite

package cache

import (
	"errors"

	logx "skladbot/pkg/logx"
)

// Built without the sqlite tag: keep the config surface but refuse to open.
func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite cache driver not built in (rebuild with -tags sqlite)")
}
