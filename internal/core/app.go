package core

import (
	"context"
	"sync"
	"time"

	"wabbabot/internal/audit"
	"wabbabot/internal/catalog"
	"wabbabot/internal/dispatch"
	"wabbabot/internal/registry"
	"wabbabot/internal/store"
	"wabbabot/internal/transport/telegram"
	logx "wabbabot/pkg/logx"
)

// App owns explicit instances of every component and wires them
// together. There is no ambient global state; everything flows from
// here.
type App struct {
	cfgm *ConfigManager
	log  logx.Logger
	logs *logx.Service

	modlists *registry.ModlistRegistry
	servers  *registry.ServerRegistry
	cache    *catalog.Cache
	msgr     *telegram.Messenger
	disp     *dispatch.Dispatcher
	aud      audit.Store
	facade   *Facade

	refreshInterval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewApp(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")

	cfgm := NewConfigManager(cfgPath, boot)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	modlistStore, err := store.New[registry.Modlist](cfg.Storage.ModlistsPath)
	if err != nil {
		return nil, err
	}
	serverStore, err := store.New[registry.Server](cfg.Storage.ServersPath)
	if err != nil {
		return nil, err
	}
	modlists, err := registry.NewModlistRegistry(modlistStore, log.With(logx.String("comp", "modlists")))
	if err != nil {
		return nil, err
	}
	servers, err := registry.NewServerRegistry(serverStore, log.With(logx.String("comp", "servers")))
	if err != nil {
		return nil, err
	}

	catTimeout, err := parseDurationOrZero("catalog.timeout", cfg.Catalog.Timeout)
	if err != nil {
		return nil, err
	}
	httpClient, err := catalog.NewHTTPClient(catalog.HTTPConfig{
		URL:     cfg.Catalog.URL,
		Timeout: catTimeout,
	}, log.With(logx.String("comp", "catalog")))
	if err != nil {
		return nil, err
	}
	cache := catalog.NewCache(httpClient, log.With(logx.String("comp", "catalog")))

	refreshInterval, err := parseDurationOrZero("catalog.refresh_interval", cfg.Catalog.RefreshInterval)
	if err != nil {
		return nil, err
	}

	pollTimeout, err := parseDurationOrZero("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	msgr, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	disp := dispatch.New(dispatch.Config{
		Workers:    cfg.Dispatch.Workers,
		RatePerSec: cfg.Dispatch.RatePerSec,
	}, servers, msgr, log.With(logx.String("comp", "dispatch")))

	aud, err := audit.Open(audit.Config{
		Driver: cfg.Audit.Driver,
		Path:   cfg.Audit.Path,
	}, log.With(logx.String("comp", "audit")))
	if err != nil {
		return nil, err
	}

	facade := NewFacade(modlists, servers, cache, disp, aud, log.With(logx.String("comp", "commands")))

	return &App{
		cfgm:            cfgm,
		log:             log,
		logs:            logSvc,
		modlists:        modlists,
		servers:         servers,
		cache:           cache,
		msgr:            msgr,
		disp:            disp,
		aud:             aud,
		facade:          facade,
		refreshInterval: refreshInterval,
	}, nil
}

func (a *App) Facade() *Facade                { return a.facade }
func (a *App) Messenger() *telegram.Messenger { return a.msgr }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.cache.Start(runCtx, a.refreshInterval); err != nil {
		cancel()
		return err
	}

	a.attachCommands(runCtx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.msgr.Bot().Start()
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-runCtx.Done()
		a.msgr.Bot().Stop()
	}()

	// Hot reload: only logging applies live; storage paths and worker
	// counts need a restart.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded")
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.cache.Stop()
	if a.aud != nil {
		_ = a.aud.Close()
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
