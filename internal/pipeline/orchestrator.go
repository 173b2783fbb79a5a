// Package pipeline runs the per-bank sequence acquire → login → navigate →
// extract → publish → logout → release as a state machine. A session, once
// acquired, is always logged out of and released, whatever happened before.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/diagnostics"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	"github.com/dvloznov/unbilled-sync/internal/session"
)

// DefaultCleanupTimeout bounds logout plus release when Options leave it unset.
const DefaultCleanupTimeout = 30 * time.Second

// Capturer saves a diagnostic screenshot and returns its path, or "".
type Capturer interface {
	Capture(ctx context.Context, shooter diagnostics.Shooter, label string) string
}

// Deps are the collaborators of an Orchestrator. Capturer and Runs are
// optional.
type Deps struct {
	Provider  session.Provider
	Publisher Publisher
	Capturer  Capturer
	Runs      runs.Store
}

// Options tunes how the orchestrator runs jobs.
type Options struct {
	// PublishEmpty clears the sheet and writes the header even when no
	// records were extracted.
	PublishEmpty bool
	// DryRun stops after extraction; nothing is published.
	DryRun         bool
	CleanupTimeout time.Duration
}

// Result describes one finished bank run.
type Result struct {
	Bank  string
	Sheet string
	RunID string
	// State is Closed on success and Failed otherwise.
	State State
	// FailedIn is the last state reached before failing.
	FailedIn   State
	Records    []domain.TransactionRecord
	Published  bool
	Screenshot string
	Duration   time.Duration
	Err        error
}

// Orchestrator runs bank jobs one at a time.
type Orchestrator struct {
	deps Deps
	opts Options
}

// NewOrchestrator checks deps against opts.
func NewOrchestrator(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, errors.New("NewOrchestrator: session provider is required")
	}
	if deps.Publisher == nil && !opts.DryRun {
		return nil, errors.New("NewOrchestrator: publisher is required unless dry run")
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = DefaultCleanupTimeout
	}
	return &Orchestrator{deps: deps, opts: opts}, nil
}

func (o *Orchestrator) pipeline() *Pipeline {
	steps := []PipelineStep{LoginStep{}, NavigateStep{}, ExtractStep{}}
	if !o.opts.DryRun {
		steps = append(steps, PublishStep{Publisher: o.deps.Publisher, PublishEmpty: o.opts.PublishEmpty})
	}
	return NewPipeline(steps...)
}

// Run executes one bank job. The returned error is ErrSessionAcquire or a
// *StepError; the Result is always non-nil.
func (o *Orchestrator) Run(ctx context.Context, job Job) (res *Result, err error) {
	name := job.Adapter.Name()
	ctx = logger.Bank(ctx, name)
	started := time.Now()

	st := &RunState{Job: job, Current: Idle}
	res = &Result{Bank: name, Sheet: job.Target.SheetName}

	res.RunID = o.startRun(ctx, job)
	if res.RunID != "" {
		log := logger.FromContext(ctx).With().Str("run_id", res.RunID).Logger()
		ctx = logger.WithContext(ctx, log)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("sheet", job.Target.SheetName).Bool("dry_run", o.opts.DryRun).Msg("Starting bank run")

	defer func() {
		res.Duration = time.Since(started)
		res.Records = st.Records
		res.Err = err
		o.finishRun(ctx, res)
	}()

	sess, err := o.deps.Provider.Acquire(ctx)
	if err != nil {
		res.FailedIn = st.Current
		st.transition(ctx, Failed)
		res.State = Failed
		log.Error().Err(err).Msg("Failed to acquire browser session")
		return res, fmt.Errorf("%w: %s: %w", ErrSessionAcquire, name, err)
	}
	st.Session = sess
	st.transition(ctx, SessionReady)

	defer func() {
		o.cleanup(ctx, st)
		res.State = st.Current
	}()

	if err = o.pipeline().Execute(ctx, st); err != nil {
		res.FailedIn = st.Current
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			res.Screenshot = o.capture(ctx, sess, name, stepErr.Step)
		}
		log.Error().Err(err).Str("state", st.Current.String()).Msg("Bank run failed")
		st.transition(ctx, Failed)
		return res, err
	}

	res.Published = st.Current == Published
	log.Info().
		Int("records", len(st.Records)).
		Bool("published", res.Published).
		Msg("Bank run finished")
	return res, nil
}

// cleanup logs out and releases the session on a context that survives the
// caller's cancellation. Failures are logged only.
func (o *Orchestrator) cleanup(ctx context.Context, st *RunState) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CleanupTimeout)
	defer cancel()
	log := logger.FromContext(ctx)

	if err := o.logout(cctx, st); err != nil {
		log.Error().Err(err).Msg("Logout failed")
	} else if st.Current != Failed {
		st.transition(ctx, LoggedOut)
	}

	if err := st.Session.Release(cctx); err != nil {
		log.Error().Err(err).Msg("Failed to release browser session")
	}
	if st.Current != Failed {
		st.transition(ctx, Closed)
	}
}

// logout shields cleanup from a panicking adapter.
func (o *Orchestrator) logout(ctx context.Context, st *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("logout panicked: %v", r)
		}
	}()
	return st.Job.Adapter.Logout(ctx, st.Session)
}

func (o *Orchestrator) capture(ctx context.Context, sess session.Session, bank, step string) string {
	if o.deps.Capturer == nil {
		return ""
	}
	label := strings.ToLower(bank) + "_" + step + "_failed"
	return o.deps.Capturer.Capture(ctx, sess, label)
}

func (o *Orchestrator) startRun(ctx context.Context, job Job) string {
	if o.deps.Runs == nil {
		return ""
	}
	id, err := o.deps.Runs.Start(ctx, job.Adapter.Name(), job.Target.SheetName)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to record run start")
		return ""
	}
	return id
}

func (o *Orchestrator) finishRun(ctx context.Context, res *Result) {
	if o.deps.Runs == nil || res.RunID == "" {
		return
	}
	out := runs.Outcome{
		Status:    runs.StatusSucceeded,
		Extracted: len(res.Records),
		Published: res.Published,
	}
	if res.Err != nil {
		out.Status = runs.StatusFailed
		out.FailedState = res.FailedIn.String()
		out.Err = res.Err
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CleanupTimeout)
	defer cancel()
	if err := o.deps.Runs.Finish(cctx, res.RunID, out); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to record run outcome")
	}
}

// RunAll runs jobs in order. A failed bank does not stop the next one, but a
// session acquisition failure or a cancelled ctx ends the batch. The error
// joins every bank's failure.
func (o *Orchestrator) RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	log := logger.FromContext(ctx)
	results := make([]*Result, 0, len(jobs))
	var errs []error

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := o.Run(ctx, job)
		results = append(results, res)
		if err == nil {
			continue
		}
		errs = append(errs, err)

		if errors.Is(err, ErrSessionAcquire) {
			log.Error().Int("remaining", len(jobs)-i-1).Msg("Aborting remaining banks")
			break
		}
	}
	return results, errors.Join(errs...)
}
