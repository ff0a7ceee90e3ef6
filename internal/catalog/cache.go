package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "wabbabot/pkg/logx"
)

// Cache wraps a Client with a periodically refreshed snapshot. Lookups
// are served from the last good snapshot, so a flapping upstream does
// not take command handling down with it; only a cache that never
// managed a successful fetch reports ErrUnavailable.
type Cache struct {
	upstream Client
	log      logx.Logger

	mu        sync.RWMutex
	entries   []Entry
	fetchedAt time.Time

	cronMu sync.Mutex
	c      *cron.Cron
}

func NewCache(upstream Client, log logx.Logger) *Cache {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{upstream: upstream, log: log}
}

// Start performs an initial refresh (best effort) and schedules periodic
// ones. Interval <= 0 disables the schedule; the cache then only
// refreshes on demand.
func (c *Cache) Start(ctx context.Context, interval time.Duration) error {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("initial catalog refresh failed", logx.Err(err))
	}
	if interval <= 0 {
		return nil
	}

	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.c != nil {
		return nil
	}
	cr := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := cr.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Refresh(rctx); err != nil {
			c.log.Warn("scheduled catalog refresh failed", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	cr.Start()
	c.c = cr
	c.log.Info("catalog refresh scheduled", logx.Duration("interval", interval))
	return nil
}

func (c *Cache) Stop() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.c != nil {
		<-c.c.Stop().Done()
		c.c = nil
	}
}

// Refresh pulls a fresh snapshot from the upstream. On failure the
// previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	entries, err := c.upstream.FetchAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	c.log.Debug("catalog snapshot updated", logx.Int("entries", len(entries)))
	return nil
}

func (c *Cache) FetchAll(ctx context.Context) ([]Entry, error) {
	c.mu.RLock()
	entries := c.entries
	stale := c.fetchedAt.IsZero()
	c.mu.RUnlock()

	if stale {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		c.mu.RLock()
		entries = c.entries
		c.mu.RUnlock()
	}
	return append([]Entry(nil), entries...), nil
}

func (c *Cache) Fetch(ctx context.Context, machineID string) (Entry, error) {
	entries, err := c.FetchAll(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.MachineURL == machineID {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}
