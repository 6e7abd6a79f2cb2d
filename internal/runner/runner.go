// Package runner drives one survey run: lock, dedup, tile, submit, record.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skysurvey/internal/catalog"
	"skysurvey/internal/config"
	"skysurvey/internal/gateway"
	"skysurvey/internal/instrument"
	"skysurvey/internal/ledger"
	"skysurvey/internal/lock"
	"skysurvey/internal/storage"
	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

// Submitter sends a group to the scheduler.
type Submitter interface {
	Simulated() bool
	Submit(ctx context.Context, g survey.ObservationGroup) (string, error)
}

// Notifier receives the run summary.
type Notifier interface {
	SendText(ctx context.Context, text string) error
}

type Deps struct {
	Config    *config.Config
	Log       logx.Logger
	Submitter Submitter

	// Optional.
	Store    storage.Store
	Notifier Notifier
	IDs      *survey.GroupIDGenerator
	Now      func() time.Time
}

type Runner struct {
	cfg      *config.Config
	log      logx.Logger
	gw       Submitter
	store    storage.Store
	notifier Notifier
	now      func() time.Time

	tiler  *survey.Tiler
	table  *instrument.Table
	ledger *ledger.Ledger
	lock   *lock.Lock
}

func New(d Deps) (*Runner, error) {
	if d.Config == nil {
		return nil, errors.New("runner: config is required")
	}
	if d.Submitter == nil {
		return nil, errors.New("runner: submitter is required")
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	utcNow := func() time.Time { return now().UTC() }

	s := d.Config.Survey
	ids := d.IDs
	if ids == nil || ids.Prefix() != s.GroupPrefix {
		ids = survey.NewGroupIDGenerator(s.GroupPrefix)
	}
	led := ledger.New(s, log)
	led.SetClock(utcNow)

	return &Runner{
		cfg:      d.Config,
		log:      log.With(logx.String("comp", "runner")),
		gw:       d.Submitter,
		store:    d.Store,
		notifier: d.Notifier,
		now:      utcNow,
		tiler: &survey.Tiler{
			Now:           utcNow,
			Grace:         s.SubmitGraceDuration(),
			RequestWindow: s.RequestWindow(),
			MaxAirmass:    s.MaxAirmass,
			ProposalID:    d.Config.Proposal.ProposalID,
			UserID:        d.Config.Proposal.UserID,
			IDs:           ids,
		},
		table:  instrument.NewTable(d.Config.Instruments),
		ledger: led,
		lock:   lock.New(s.LogDir, s.LockName),
	}, nil
}

// Run performs one survey pass. Fatal problems (lock conflict, catalog,
// ledger I/O) are returned; per-field failures are recorded and reported.
func (r *Runner) Run(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), Started: r.now(), Simulated: r.gw.Simulated()}
	log := r.log.With(logx.String("run_id", rep.RunID))
	log.Info("------------------------------------------------------")
	log.Info("run started", logx.Bool("simulate", rep.Simulated))

	defer func() {
		rep.Finished = r.now()
		rep.Err = err
		if err != nil {
			log.Error("run aborted", logx.Err(err))
		}
		r.notify(log, rep)
		log.Info("processing complete")
	}()

	s := r.cfg.Survey
	if err := r.lock.Check(s.ClashingLocks...); err != nil {
		log.Warn("clashing lock file encountered; halting", logx.Err(err))
		return rep, err
	}
	log.Info("checked for clashing locks; found none")
	if err := r.lock.Acquire(); err != nil {
		return rep, err
	}
	log.Info("created lock file", logx.String("path", r.lock.Path()))
	defer func() {
		if rerr := r.lock.Release(); rerr != nil {
			log.Error("release lock failed", logx.Err(rerr))
			return
		}
		log.Info("removed lock file")
	}()

	now := r.now()
	yesterday, today := r.ledger.DayPaths(now)
	active, err := ledger.LoadActive([]string{yesterday, today}, s.GroupPrefix, now, log)
	if err != nil {
		return rep, err
	}
	log.Info("active groups loaded", logx.Int("active", len(active)))

	fields, err := catalog.Load(s.Path(s.TargetList), catalog.Defaults{TTL: s.TTL()})
	if err != nil {
		return rep, err
	}
	log.Info("target list read", logx.Int("fields", len(fields)))

	for _, field := range fields {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			break
		}
		flog := log.With(logx.String("field", field.Name))
		if g, ok := active[field.Name]; ok {
			flog.Info("field still active; skipping", logx.String("group_id", g.GroupID), logx.Time("expire", g.Expire))
			rep.Skipped = append(rep.Skipped, field.Name)
			continue
		}

		g, terr := r.tile(field)
		if terr != nil {
			flog.Warn("cannot build observation request", logx.Err(terr))
			rep.Invalid = append(rep.Invalid, field.Name)
			continue
		}
		flog.Info("built observation request", logx.String("group_id", g.GroupID), logx.Int("sub_requests", len(g.SubRequests)))

		r.submit(ctx, flog, &g)
		flog.Info("=> status", logx.String("status", g.Status.String()), logx.String("response", g.Response))

		if aerr := r.ledger.Append(g); aerr != nil {
			return rep, fmt.Errorf("ledger append %s: %w", field.Name, aerr)
		}
		r.record(ctx, flog, rep.RunID, g)

		if g.Status.IsOK() {
			rep.Submitted = append(rep.Submitted, g)
		} else {
			rep.Failed = append(rep.Failed, g)
		}
		if g.Live(r.now()) {
			active[field.Name] = g
		}
	}

	if werr := r.ledger.RewriteActiveSnapshot(active); werr != nil {
		return rep, werr
	}
	log.Info("finished requesting observations",
		logx.Int("submitted", len(rep.Submitted)),
		logx.Int("failed", len(rep.Failed)),
		logx.Int("skipped", len(rep.Skipped)),
		logx.Int("invalid", len(rep.Invalid)),
	)
	return rep, err
}

func (r *Runner) tile(field survey.FieldSpec) (survey.ObservationGroup, error) {
	inst := r.table.Lookup(field.Telescope, field.Instrument)
	return r.tiler.Tile(field, survey.Equipment{
		InstrumentClass: inst.Class,
		InstrumentName:  inst.Name,
		Duration:        inst.GroupDuration,
	})
}

// submit sets the status of g from the scheduler's reply.
func (r *Runner) submit(ctx context.Context, log logx.Logger, g *survey.ObservationGroup) {
	raw, err := r.gw.Submit(ctx, *g)
	if err != nil {
		var te *gateway.TransportError
		if errors.As(err, &te) {
			log.Warn("submission transport failure", logx.Err(err))
		} else {
			log.Error("submission failed", logx.Err(err))
		}
		g.Status = survey.StatusTransportError
		g.Response = err.Error()
		return
	}
	if r.gw.Simulated() {
		log.Info("in simulation mode", logx.String("status", string(survey.StatusSimOK)))
		g.Status = survey.StatusSimOK
		g.Response = raw
		return
	}
	log.Debug("request response", logx.String("raw", raw))
	c := survey.Classify(raw)
	g.Status = c.Status
	g.Response = c.Response
	g.RequestNumber = c.RequestNumber
}

func (r *Runner) record(ctx context.Context, log logx.Logger, runID string, g survey.ObservationGroup) {
	if r.store == nil {
		return
	}
	err := r.store.AppendSubmission(ctx, storage.SubmissionEntry{
		RunID:         runID,
		GroupID:       g.GroupID,
		Field:         g.Field.Name,
		Status:        g.Status.String(),
		Response:      g.Response,
		RequestNumber: g.RequestNumber,
		Submit:        g.Submit,
		Expire:        g.Expire,
		SubRequests:   len(g.SubRequests),
		RecordedAt:    r.now(),
	})
	if err != nil {
		log.Warn("submission history write failed", logx.Err(err))
	}
}

func (r *Runner) notify(log logx.Logger, rep Report) {
	if r.notifier == nil || r.cfg.Telegram == nil || !r.cfg.Telegram.NotifyRuns {
		return
	}
	// The run context may already be cancelled; the summary still goes out.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.notifier.SendText(ctx, rep.Text()); err != nil {
		log.Warn("run summary not delivered", logx.Err(err))
	}
}
