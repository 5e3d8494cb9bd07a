package cli

import (
	"strings"
	"time"

	"socialia/internal/config"
	"socialia/internal/draft"
	"socialia/internal/platform"
	"socialia/internal/platform/linkedin"
	"socialia/internal/platform/reddit"
	"socialia/internal/platform/slack"
	"socialia/internal/platform/telegram"
	"socialia/internal/platform/twitter"
	"socialia/internal/scheduler"
	"socialia/internal/storage"
	logx "socialia/pkg/logx"
)

var factories = map[string]platform.Factory{
	twitter.Name:  twitter.New,
	linkedin.Name: linkedin.New,
	reddit.Name:   reddit.New,
	slack.Name:    slack.New,
	telegram.Name: telegram.New,
}

// dryRunPlatform accepts every post without sending it anywhere.
const dryRunPlatform = "dryrun"

// env is everything one command invocation needs, opened from the config.
type env struct {
	cfg      *config.Config
	logSvc   *logx.Service
	log      logx.Logger
	store    storage.Store
	registry *platform.Registry
	engine   *scheduler.Engine
}

func (a *App) open() (*env, error) {
	cfg, err := config.NewManager(a.configPath).Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LogConfig()
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	var notifier logx.Notifier
	var notifyErr error
	if logCfg.Telegram.Enabled {
		tg, err := telegram.Open(cfg.Platform(telegram.Name, a.env))
		if err != nil {
			notifyErr = err
			logCfg.Telegram.Enabled = false
		} else {
			notifier = tg
		}
	}
	logSvc, log := logx.New(logCfg, notifier)
	if notifyErr != nil {
		log.Warn("telegram log sink disabled", logx.Err(notifyErr))
	}

	store, err := storage.Open(cfg.StoreConfig(a.storePath), log.With(logx.String("component", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	reg := newRegistry(cfg, a.env)
	for _, c := range a.clients {
		reg.Use(c)
	}
	engine := scheduler.New(store, reg, log.With(logx.String("component", "scheduler")), scheduler.Options{
		Location: loc,
		Now:      a.now,
		OnPosted: draft.CompletionHook(loc),
	})
	log.Debug("environment ready",
		logx.String("store", cfg.StoreConfig(a.storePath).Path),
		logx.Strings("platforms", reg.Names()),
	)
	return &env{cfg: cfg, logSvc: logSvc, log: log, store: store, registry: reg, engine: engine}, nil
}

func (e *env) Close() error {
	err := e.store.Close()
	if cerr := e.logSvc.Close(); err == nil {
		err = cerr
	}
	return err
}

func newRegistry(cfg *config.Config, getenv func(string) string) *platform.Registry {
	reg := platform.NewRegistry()
	for name, f := range factories {
		reg.Register(name, cfg.Platform(name, getenv), f)
	}
	reg.Use(&platform.Recorder{PlatformName: dryRunPlatform})
	return reg
}

// manager opens a draft manager for path.
func (e *env) manager(path string) (*draft.Manager, error) {
	return draft.NewManager(path, e.engine, e.registry, e.log.With(logx.String("component", "draft")))
}

// fluctuation falls back to scheduler.fluctuation when the flag was not given.
func (e *env) fluctuation(flag int, changed bool) int {
	if changed {
		return flag
	}
	return e.cfg.Scheduler.Fluctuation
}

func (e *env) tick(flag string) (scheduler.Tick, error) {
	raw := strings.TrimSpace(flag)
	if raw == "" {
		raw = e.cfg.Scheduler.Interval
	}
	return scheduler.ParseTick(raw)
}

func formatTime(t time.Time) string { return t.Format("2006-01-02 15:04") }
