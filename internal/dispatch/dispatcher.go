package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wabbabot/internal/registry"
	"wabbabot/internal/transport"
	logx "wabbabot/pkg/logx"
)

var (
	ErrNoSubscribers  = errors.New("no channels subscribed to this modlist")
	ErrDeliveryFailed = errors.New("announcement could not be delivered anywhere")
)

type Config struct {
	Workers    int
	RatePerSec int
}

// SubscriptionSource is the read surface the dispatcher needs from the
// server registry.
type SubscriptionSource interface {
	ChannelsSubscribedTo(modlistID string) []registry.Destination
	RoleBinding(serverID, modlistID string) (string, bool)
}

// Result aggregates one fan-out run.
type Result struct {
	Attempted      int
	Succeeded      int
	Failed         int
	ServersReached int
	Took           time.Duration
}

// Dispatcher fans a release announcement out to every subscribed channel.
// Each destination is delivered independently; one dead channel never
// blocks the rest. Partial delivery is the expected common case.
type Dispatcher struct {
	subs    SubscriptionSource
	msgr    transport.Messenger
	log     logx.Logger
	workers int
	limiter *rate.Limiter
}

func New(cfg Config, subs SubscriptionSource, msgr transport.Messenger, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Dispatcher{
		subs:    subs,
		msgr:    msgr,
		log:     log,
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Publish delivers ann to every channel subscribed to modlistID and
// returns the aggregate counts. It fails fast with ErrNoSubscribers when
// nothing is subscribed, and with ErrDeliveryFailed only when every
// single destination failed. Once started, the run covers the full
// resolved destination set; there is no mid-flight cancellation beyond
// ctx.
func (d *Dispatcher) Publish(ctx context.Context, modlistID string, ann transport.Announcement) (Result, error) {
	start := time.Now()

	dests := d.subs.ChannelsSubscribedTo(modlistID)
	if len(dests) == 0 {
		return Result{}, ErrNoSubscribers
	}

	d.log.Info("fan-out started",
		logx.String("modlist", modlistID), logx.String("title", ann.Title), logx.Int("destinations", len(dests)))

	workers := d.workers
	if workers > len(dests) {
		workers = len(dests)
	}

	queue := make(chan registry.Destination)

	var (
		mu        sync.Mutex
		succeeded int
		failed    int
		okServers = map[string]struct{}{}
		wg        sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("panic in fan-out worker",
						logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			for dest := range queue {
				err := d.deliver(ctx, modlistID, dest, ann)
				mu.Lock()
				if err != nil {
					failed++
				} else {
					succeeded++
					okServers[dest.ServerID] = struct{}{}
				}
				mu.Unlock()
			}
		}()
	}

	for _, dest := range dests {
		queue <- dest
	}
	close(queue)
	wg.Wait()

	res := Result{
		Attempted:      len(dests),
		Succeeded:      succeeded,
		Failed:         failed,
		ServersReached: len(okServers),
		Took:           time.Since(start),
	}

	fields := []logx.Field{
		logx.String("modlist", modlistID),
		logx.Int("attempted", res.Attempted),
		logx.Int("succeeded", res.Succeeded),
		logx.Int("failed", res.Failed),
		logx.Int("servers", res.ServersReached),
		logx.Duration("took", res.Took),
	}
	if res.Succeeded == 0 {
		d.log.Error("fan-out failed everywhere", fields...)
		return res, ErrDeliveryFailed
	}
	if res.Failed > 0 {
		d.log.Warn("fan-out finished with failures", fields...)
	} else {
		d.log.Info("fan-out finished", fields...)
	}
	return res, nil
}

// deliver sends the announcement to one destination, then the optional
// role mention. A failed mention is logged but does not fail the
// destination; the announcement itself already landed.
func (d *Dispatcher) deliver(ctx context.Context, modlistID string, dest registry.Destination, ann transport.Announcement) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	to := transport.Destination{ServerID: dest.ServerID, ChannelID: dest.ChannelID}
	if err := d.msgr.SendAnnouncement(ctx, to, ann); err != nil {
		d.log.Warn("announcement delivery failed",
			logx.String("modlist", modlistID), logx.String("server", dest.ServerID),
			logx.String("channel", dest.ChannelID), logx.Err(err))
		return err
	}

	if roleID, ok := d.subs.RoleBinding(dest.ServerID, modlistID); ok {
		if err := d.msgr.MentionRole(ctx, to, roleID); err != nil {
			d.log.Warn("role mention failed",
				logx.String("modlist", modlistID), logx.String("server", dest.ServerID),
				logx.String("role", roleID), logx.Err(err))
		}
	}
	return nil
}
