package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"skladbot/internal/bot"
	"skladbot/internal/cache"
	"skladbot/internal/config"
	"skladbot/internal/erp"
	"skladbot/internal/monitor"
	"skladbot/internal/notify"
	kit "skladbot/internal/transport"
	telegram "skladbot/internal/transport/telegram"
	logx "skladbot/pkg/logx"
)

// App wires the service together: config, transport, ERP client, cache
// stores, checkers, monitor, notifier, and the interactive router.
type App struct {
	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	erp     *erp.Client

	stockStore cache.Store
	expStore   cache.Store
	phoneStore cache.Store

	notif  *notify.Service
	mon    *monitor.Monitor
	router *bot.Router

	messages chan kit.Message
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), adapter)
	log = log.With(logx.String("comp", "app"))

	erpCfg, err := mapErpConfig(cfg)
	if err != nil {
		return nil, err
	}
	erpClient, err := erp.New(erpCfg, log.With(logx.String("comp", "moysklad")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("cache.busy_timeout", cfg.Cache.BusyTimeout)
	if err != nil {
		return nil, err
	}
	retention := time.Duration(cfg.Cache.ResetDays) * 24 * time.Hour
	openStore := func(name string) (cache.Store, error) {
		return cache.Open(cache.Config{
			Driver:      cfg.Cache.Driver,
			Path:        storePath(cfg.Cache.Driver, cfg.Cache.Dir, name),
			Retention:   retention,
			BusyTimeout: busyTimeout,
		}, log.With(logx.String("comp", "cache"), logx.String("store", name)))
	}
	stockStore, err := openStore("stocks")
	if err != nil {
		return nil, err
	}
	expStore, err := openStore("expiration")
	if err != nil {
		return nil, err
	}
	phoneStore, err := openStore("phones")
	if err != nil {
		return nil, err
	}

	suppress, err := config.ParseDurationOrDefault("monitor.suppress_window", cfg.Monitor.SuppressWindow, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	checkers := []monitor.Checker{
		monitor.NewStockChecker(stockStore, suppress, retention,
			log.With(logx.String("comp", "check.stock"))),
		monitor.NewExpirationChecker(expStore, cfg.Monitor.AlertDays, suppress, retention,
			log.With(logx.String("comp", "check.expiration"))),
	}

	notifSvc := notify.New(notify.Config{
		ChatID:       cfg.Telegram.ChatID,
		MessageLimit: cfg.Notifier.MessageLimit,
		RatePerSec:   cfg.Notifier.RatePerSec,
	}, adapter, log.With(logx.String("comp", "notifier")))

	monCfg, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(monCfg, erpClient, notifSvc, checkers,
		log.With(logx.String("comp", "monitor")))

	router := bot.NewRouter(bot.Config{
		AllowedUserIDs: cfg.Telegram.AllowedUserIDs,
	}, adapter, erpClient, phoneStore, mon,
		log.With(logx.String("comp", "router")))

	return &App{
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		adapter:    adapter,
		erp:        erpClient,
		stockStore: stockStore,
		expStore:   expStore,
		phoneStore: phoneStore,
		notif:      notifSvc,
		mon:        mon,
		router:     router,
		messages:   make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the supervisor context is cancelled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, a.log)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// The monitor is the consumer of the schedule; make sure it will
		// accept the new value before anything is published.
		_, err := monitor.ParseSchedule(cfg.Monitor.Schedule)
		return err
	})

	if !a.erp.CheckConnection(a.sup.Context()) {
		a.log.Warn("moysklad api is not reachable at startup, continuing anyway")
	}

	if err := a.adapter.Start(a.sup.Context(), a.messages); err != nil {
		return err
	}

	// The phone store has one writer: warm it on the router goroutine, before
	// the message loop starts. Early updates just queue in the channel.
	a.sup.Go0("bot.router", func(c context.Context) {
		a.warmPhoneCache(c)
		a.router.Run(c, a.messages)
	})

	if a.cfgm.Get().Monitor.Enabled {
		a.sup.Go("monitor", a.mon.Run)
	} else {
		a.log.Info("monitoring disabled via config")
	}

	a.sup.Go("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}

	a.log.Info("service started")
	return nil
}

// warmPhoneCache seeds the phone store from the ERP counterparty list so the
// router skips lookups for numbers that already exist. Best-effort: a failed
// warm only costs extra lookups later.
func (a *App) warmPhoneCache(ctx context.Context) {
	if a.phoneStore.Len() > 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	names, err := a.erp.LoadCounterparties(wctx)
	if err != nil {
		a.log.Warn("phone cache warm failed", logx.Err(err))
		return
	}
	now := time.Now()
	for name := range names {
		if !strings.HasPrefix(name, "+") {
			continue
		}
		a.phoneStore.Put(name, cache.Record{FirstSeen: now, Fingerprint: "known"})
	}
	if err := a.phoneStore.Persist(); err != nil {
		a.log.Warn("phone cache persist failed", logx.Err(err))
	}
	a.log.Info("phone cache warmed", logx.Int("phones", a.phoneStore.Len()))
}

// applyConfig pushes a validated reload into the running components. Fields
// that cannot change at runtime (tokens, cache driver) need a restart and are
// left alone.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLogConfig(cfg))

	a.notif.Apply(notify.Config{
		ChatID:       cfg.Telegram.ChatID,
		MessageLimit: cfg.Notifier.MessageLimit,
		RatePerSec:   cfg.Notifier.RatePerSec,
	})

	if monCfg, err := mapMonitorConfig(cfg); err != nil {
		a.log.Warn("invalid monitor config, keeping previous", logx.Err(err))
	} else {
		a.mon.Apply(monCfg)
	}

	a.router.Apply(bot.Config{AllowedUserIDs: cfg.Telegram.AllowedUserIDs})
	a.log.Info("config applied")
}

// Stop tears the service down in dependency order: monitor first so no new
// cycle starts, then the interactive surface, then transport, then storage.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := a.mon.Stop(ctx); err != nil {
		a.log.Warn("monitor stop timed out", logx.Err(err))
		keep(err)
	}

	if a.sup != nil {
		keep(a.sup.Stop(ctx))
	}

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
		keep(err)
	}

	for name, st := range map[string]cache.Store{
		"stocks":     a.stockStore,
		"expiration": a.expStore,
		"phones":     a.phoneStore,
	} {
		if err := st.Close(); err != nil {
			a.log.Warn("cache close failed", logx.String("store", name), logx.Err(err))
			keep(err)
		}
	}

	a.log.Info("service stopped")
	_ = a.logs.Close()
	return firstErr
}

func storePath(driver, dir, name string) string {
	ext := ".json"
	if driver == "sqlite" {
		ext = ".db"
	}
	return filepath.Join(dir, name+ext)
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapErpConfig(cfg *config.Config) (erp.Config, error) {
	delay, err := config.ParseDurationField("moysklad.request_delay", cfg.Moysklad.RequestDelay)
	if err != nil {
		return erp.Config{}, err
	}
	timeout, err := config.ParseDurationField("moysklad.timeout", cfg.Moysklad.Timeout)
	if err != nil {
		return erp.Config{}, err
	}
	retryDelay, err := config.ParseDurationField("moysklad.retry_delay", cfg.Moysklad.RetryDelay)
	if err != nil {
		return erp.Config{}, err
	}
	return erp.Config{
		Token:        cfg.Moysklad.Token,
		BaseURL:      cfg.Moysklad.BaseURL,
		RequestLimit: cfg.Moysklad.RequestLimit,
		RequestDelay: delay,
		Timeout:      timeout,
		RetryMax:     cfg.Moysklad.RetryMax,
		RetryDelay:   retryDelay,
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	sched, err := monitor.ParseSchedule(cfg.Monitor.Schedule)
	if err != nil {
		return monitor.Config{}, fmt.Errorf("monitor.schedule: %w", err)
	}
	cycleTimeout, err := config.ParseDurationField("monitor.cycle_timeout", cfg.Monitor.CycleTimeout)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Schedule:     sched,
		CycleTimeout: cycleTimeout,
		PurgeEvery:   cfg.Monitor.PurgeEvery,
	}, nil
}
