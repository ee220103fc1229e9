// Package app wires the daemon together: config with hot reload, logging,
// the parser registry, the settings store, both ntfy relay directions, the
// optional Telegram channel, the ingest HTTP server and the self-test runner.
package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/Zentik-notifier/backend-sub001/internal/config"
	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/ingest"
	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/relay/ntfy"
	"github.com/Zentik-notifier/backend-sub001/internal/relay/telegram"
	"github.com/Zentik-notifier/backend-sub001/internal/selftest"
	"github.com/Zentik-notifier/backend-sub001/internal/settings"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	reg   *parser.Registry
	store settings.Store

	pub      *ntfy.Publisher
	listener *ntfy.Listener
	tg       *telegram.Forwarder
	server   *ingest.Server
	selftest *selftest.Runner

	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
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

	bus := eventbus.New()

	reg, err := buildRegistry(cfg.Parsers.Disabled)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("settings.busy_timeout", cfg.Settings.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	store, err := settings.Open(settings.Config{
		Driver:      cfg.Settings.Driver,
		Path:        cfg.Settings.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "settings")))
	if err != nil {
		return nil, err
	}

	retryBase, err := config.ParseDurationOrDefault("ntfy.publish.retry_base", cfg.Ntfy.Publish.RetryBase, 0)
	if err != nil {
		return nil, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("ntfy.publish.retry_max_delay", cfg.Ntfy.Publish.RetryMaxDelay, 0)
	if err != nil {
		return nil, err
	}
	pub := ntfy.NewPublisher(ntfy.Config{
		Enabled:       cfg.Ntfy.Publish.Enabled,
		BaseURL:       cfg.Ntfy.Publish.BaseURL,
		Topic:         cfg.Ntfy.Publish.Topic,
		Token:         cfg.Ntfy.Publish.Token,
		Workers:       cfg.Ntfy.Publish.Workers,
		QueueSize:     cfg.Ntfy.Publish.QueueSize,
		RatePerSec:    cfg.Ntfy.Publish.RatePerSec,
		RetryMax:      cfg.Ntfy.Publish.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, log, bus)

	var tgCfg telegram.Config
	if cfg.Telegram != nil {
		tgCfg = telegram.Config{
			Enabled:  cfg.Telegram.Enabled,
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		}
	}
	tg, err := telegram.New(tgCfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		bus:   bus,
		reg:   reg,
		store: store,
		pub:   pub,
		tg:    tg,
	}

	a.listener = ntfy.NewListener(ntfy.ListenerConfig{
		Enabled: cfg.Ntfy.Subscribe.Enabled,
		BaseURL: cfg.Ntfy.Subscribe.BaseURL,
		Topic:   cfg.Ntfy.Subscribe.Topic,
		Token:   cfg.Ntfy.Subscribe.Token,
	}, log, a.handleIncoming)

	a.server = ingest.NewServer(ingest.Config{
		Addr:         cfg.Server.Addr,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, log, reg, store, a.dispatch, bus)

	stCfg := selftest.Config{Enabled: true}
	if cfg.SelfTest != nil {
		if cfg.SelfTest.Enabled != nil {
			stCfg.Enabled = *cfg.SelfTest.Enabled
		}
		stCfg.Schedule = cfg.SelfTest.Schedule
	}
	a.selftest = selftest.New(stCfg, log, reg, bus)

	return a, nil
}

// buildRegistry assembles the static parser list, skipping disabled types.
func buildRegistry(disabled []string) (*parser.Registry, error) {
	skip := make(map[parser.BuiltInType]bool, len(disabled))
	for _, d := range disabled {
		skip[parser.BuiltInType(d)] = true
	}

	all := []parser.Parser{
		newGithub(),
		newRailway(),
		newServarr(),
		newExpo(),
		newEMQX(),
		newStatuspage(),
		newInstatus(),
		newStatuspal(),
	}

	reg := parser.NewRegistry()
	for _, p := range all {
		if skip[p.Descriptor().BuiltInType] {
			continue
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// dispatch fans an accepted message out to the configured channels.
func (a *App) dispatch(ctx context.Context, id string, m notification.Message) {
	if err := a.pub.Publish(ctx, id, m); err != nil {
		a.log.Debug("ntfy publish skipped", logx.String("id", id), logx.Err(err))
	}
	if a.tg != nil {
		if err := a.tg.Send(ctx, m); err != nil {
			a.log.Debug("telegram forward skipped", logx.String("id", id), logx.Err(err))
		}
	}
}

// handleIncoming bridges subscribed ntfy messages into the Telegram channel.
func (a *App) handleIncoming(ctx context.Context, m notification.Message, raw ntfy.IncomingMessage) {
	a.log.Debug("incoming relay message",
		logx.String("ntfy_id", raw.ID), logx.String("title", m.Title))
	if a.tg != nil {
		if err := a.tg.Send(ctx, m); err != nil {
			a.log.Warn("incoming relay forward failed", logx.Err(err))
		}
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})
	go func() { _ = a.cfgm.Watch(runCtx) }()

	a.pub.Start(runCtx)
	a.listener.Start(runCtx)
	if err := a.server.Start(runCtx); err != nil {
		cancel()
		return err
	}
	if err := a.selftest.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// hot reload: logging is the only section applied live; the rest logs a
	// restart-required warning.
	sub := a.cfgm.Subscribe(8)
	go func() {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok || newCfg == nil {
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
				a.log.Info("config reloaded; non-logging changes need a restart")
			}
		}
	}()

	// Best-effort; no-op outside systemd units.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a.server.Stop(stopCtx)
	a.selftest.Stop(stopCtx)
	a.listener.Stop(stopCtx)
	a.pub.Stop(stopCtx)

	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return nil
}
