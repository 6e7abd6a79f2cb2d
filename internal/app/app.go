// Package app wires configuration, logging, storage, notification and the
// survey runner into the commands exposed by the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skysurvey/internal/config"
	"skysurvey/internal/gateway"
	"skysurvey/internal/notifier"
	"skysurvey/internal/runner"
	"skysurvey/internal/storage"
	"skysurvey/internal/survey"
	"skysurvey/internal/task/scheduler"
	logx "skysurvey/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	store storage.Store
	notif *notifier.Telegram

	// ids outlives single runs so a daemon never reuses a group id.
	ids *survey.GroupIDGenerator

	mu    sync.Mutex
	sched *scheduler.Service // set while Daemon runs
}

// Options tune New for commands that need less than a full run.
type Options struct {
	// ReadOnly skips the Telegram sender and the log sinks; used by
	// inspection commands.
	ReadOnly bool
}

func New(cfgPath string, opt Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)

	var notif *notifier.Telegram
	if !opt.ReadOnly {
		ncfg, err := mapNotifierConfig(cfg)
		if err != nil {
			return nil, err
		}
		notif, err = notifier.NewTelegram(ncfg, bootLog)
		if err != nil && !errors.Is(err, notifier.ErrDisabled) {
			return nil, err
		}
	}

	var (
		logSvc *logx.Service
		log    logx.Logger
	)
	if opt.ReadOnly {
		log = bootLog
	} else {
		// A nil *Telegram must not reach logx as a non-nil Sender.
		var sender logx.Sender
		if notif != nil {
			sender = notif
		}
		logSvc, log = logx.New(mapLogConfig(cfg), sender)
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	fail := func(err error) (*App, error) {
		if logSvc != nil {
			_ = logSvc.Close()
		}
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return fail(err)
	} else if enabled {
		store, err = storage.Open(sc, log)
		if err != nil {
			return fail(fmt.Errorf("open storage: %w", err))
		}
		log.Debug("storage enabled", logx.String("driver", sc.Driver))
	}

	return &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		store: store,
		notif: notif,
		ids:   survey.NewGroupIDGenerator(cfg.Survey.GroupPrefix),
	}, nil
}

func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Logger() logx.Logger { return a.log }

// Store returns the submission history, or nil when storage is disabled.
func (a *App) Store() storage.Store { return a.store }

// NextRun reports when the daemon triggers the next survey run (zero when
// the daemon is not running).
func (a *App) NextRun() time.Time {
	a.mu.Lock()
	sched := a.sched
	a.mu.Unlock()
	if sched == nil {
		return time.Time{}
	}
	return sched.Next(surveyJob)
}

// RunOnce performs a single survey run with the current configuration.
func (a *App) RunOnce(ctx context.Context) (runner.Report, error) {
	cfg := a.cfgm.Get()
	if a.ids.Prefix() != cfg.Survey.GroupPrefix {
		a.ids = survey.NewGroupIDGenerator(cfg.Survey.GroupPrefix)
	}
	gw, err := gateway.New(cfg.Gateway, cfg.Proposal, a.log)
	if err != nil {
		return runner.Report{}, err
	}
	d := runner.Deps{
		Config:    cfg,
		Log:       a.log,
		Submitter: gw,
		Store:     a.store,
		IDs:       a.ids,
	}
	if a.notif != nil {
		d.Notifier = a.notif
	}
	r, err := runner.New(d)
	if err != nil {
		return runner.Report{}, err
	}
	return r.Run(ctx)
}

func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}
