package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "skysurvey/pkg/logx"
)

// Job is one scheduled unit of work. The context is cancelled when the
// service stops or the job's timeout elapses.
type Job func(ctx context.Context) error

type Config struct {
	Timezone string // IANA TZ; default UTC
}

type scheduleDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	running atomic.Bool
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*scheduleDef

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		log:    log.With(logx.String("comp", "scheduler")),
		loc:    loc,
		parser: parser,
		c:      cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		defs:   map[string]*scheduleDef{},
	}, nil
}

// Add registers job under name, replacing any previous schedule with that name.
func (s *Service) Add(name, schedule string, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	t, err := ParseTrigger(schedule)
	if err != nil {
		return err
	}
	spec := t.Cron
	if t.Kind == TriggerInterval {
		spec = "@every " + t.Every.String()
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok {
		s.c.Remove(old.entryID)
	}
	d := &scheduleDef{name: name, spec: spec, timeout: timeout, job: job}
	d.entryID = s.c.Schedule(sched, cron.FuncJob(func() { s.fire(d) }))
	s.defs[name] = d

	s.log.Info("schedule registered",
		logx.String("name", name),
		logx.String("kind", t.Kind.String()),
		logx.String("spec", spec),
		logx.Time("next", sched.Next(time.Now().In(s.loc))),
	)
	return nil
}

// Next reports the next trigger time of name (zero if unknown or not started).
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return time.Time{}
	}
	return s.c.Entry(d.entryID).Next
}

// RunNow triggers name immediately, honoring the overlap rule. It reports
// whether the job was started.
func (s *Service) RunNow(name string) bool {
	s.mu.Lock()
	d, ok := s.defs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.fire(d)
}

func (s *Service) fire(d *scheduleDef) bool {
	// ctx check and wg.Add happen under mu so Stop never waits on a
	// WaitGroup that is still growing.
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if !d.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.log.Warn("previous run still in progress; trigger skipped", logx.String("name", d.name))
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer d.running.Store(false)

		jctx := ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			jctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		start := time.Now()
		err := d.job(jctx)
		if err != nil {
			s.log.Error("scheduled job failed", logx.String("name", d.name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("scheduled job done", logx.String("name", d.name), logx.Duration("took", time.Since(start)))
	}()
	return true
}

// Start begins triggering. Jobs receive a context derived from ctx. A
// stopped service can be started again.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop stops triggering, cancels running jobs and waits for them (or ctx).
// Triggers firing after Stop began are dropped.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	cancel := s.cancel
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for running jobs")
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}
