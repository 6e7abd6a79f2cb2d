package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skysurvey/internal/config"
	"skysurvey/internal/task/scheduler"
	logx "skysurvey/pkg/logx"
	"skysurvey/pkg/systemd"
)

const surveyJob = "survey"

// Daemon triggers survey runs on the configured schedule until ctx is done.
// Config file changes are picked up between runs.
func (a *App) Daemon(ctx context.Context) error {
	cfg := a.cfgm.Get()
	log := a.log.With(logx.String("comp", "daemon"))

	sched, err := scheduler.New(scheduler.Config{Timezone: cfg.Daemon.Timezone}, a.log)
	if err != nil {
		return err
	}
	job := func(ctx context.Context) error {
		rep, err := a.RunOnce(ctx)
		next := sched.Next(surveyJob)
		if err != nil {
			a.status(log, "last run %s failed: %v; next %s", rep.RunID, err, stamp(next))
			return err
		}
		a.status(log, "last run %s: submitted %d, failed %d, active %d; next %s",
			rep.RunID, len(rep.Submitted), len(rep.Failed), len(rep.Skipped), stamp(next))
		return nil
	}
	if err := sched.Add(surveyJob, cfg.Daemon.Schedule, 0, job); err != nil {
		return fmt.Errorf("daemon.schedule: %w", err)
	}
	a.mu.Lock()
	a.sched = sched
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.sched = nil
		a.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.cfgm.Watch(wctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	sub := a.cfgm.Subscribe(4)
	go func() {
		defer wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.applyReloads(wctx, log, sched, job, sub, cfg)
	}()

	sched.Start(ctx)
	if cfg.Daemon.RunOnStart {
		sched.RunNow(surveyJob)
	}
	if _, err := systemd.Ready(); err != nil {
		log.Debug("sd_notify ready failed", logx.Err(err))
	}
	next := sched.Next(surveyJob)
	a.status(log, "waiting; next run %s", stamp(next))
	log.Info("daemon started", logx.String("schedule", cfg.Daemon.Schedule), logx.Time("next", next))

	<-ctx.Done()

	log.Info("daemon stopping")
	_, _ = systemd.Stopping()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	return nil
}

func (a *App) applyReloads(ctx context.Context, log logx.Logger, sched *scheduler.Service, job scheduler.Job, sub chan *config.Config, last *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			_, _ = systemd.Reloading()
			if a.logs != nil {
				a.logs.Apply(mapLogConfig(next))
			}
			if next.Daemon.Schedule != last.Daemon.Schedule {
				if err := sched.Add(surveyJob, next.Daemon.Schedule, 0, job); err != nil {
					log.Warn("new schedule rejected; keeping the previous one", logx.Err(err))
				}
			}
			if next.Daemon.Timezone != last.Daemon.Timezone {
				log.Warn("daemon.timezone change takes effect after restart")
			}
			if !sameStorage(last.Storage, next.Storage) || !sameTelegram(last.Telegram, next.Telegram) {
				log.Warn("storage/telegram change takes effect after restart")
			}
			last = next
			_, _ = systemd.Ready()
		}
	}
}

func (a *App) status(log logx.Logger, format string, args ...any) {
	if _, err := systemd.Status(format, args...); err != nil {
		log.Debug("sd_notify status failed", logx.Err(err))
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "unscheduled"
	}
	return t.Format(time.RFC3339)
}

func sameStorage(a, b *config.StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTelegram(a, b *config.TelegramConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
