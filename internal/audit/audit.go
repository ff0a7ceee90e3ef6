// Package audit keeps an optional on-disk log of release fan-outs: who
// published what, and how much of the fan-out landed. Purely for
// operator forensics; nothing reads it on the hot path.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "wabbabot/pkg/logx"
)

var ErrDisabled = errors.New("audit storage disabled")

type Config struct {
	Driver      string // "" or "none" disables, "sqlite" enables
	Path        string
	BusyTimeout time.Duration
}

// ReleaseEntry records one publish attempt.
type ReleaseEntry struct {
	At        time.Time
	ModlistID string
	AuthorID  string
	Attempted int
	Succeeded int
	Failed    int
	Error     string
}

type Store interface {
	AppendRelease(ctx context.Context, e ReleaseEntry) error
	RecentReleases(ctx context.Context, limit int) ([]ReleaseEntry, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when
// auditing is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown audit driver: " + driver)
	}
}
