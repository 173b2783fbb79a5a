package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/unbilled-sync/internal/bank"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/session"
)

// Job is one bank to run and the sheet its records replace.
type Job struct {
	Adapter bank.Adapter
	Target  domain.SheetTarget
}

// RunState holds the shared state across the steps of one bank run.
type RunState struct {
	Job     Job
	Session session.Session
	Current State
	Records []domain.TransactionRecord
}

// PipelineStep is a single step of a bank run. Execute returns the state the
// run is in once the step succeeds.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *RunState) (State, error)
}

// Step names, as reported in StepError and screenshot labels.
const (
	StepLogin    = "login"
	StepNavigate = "navigate"
	StepExtract  = "extract"
	StepPublish  = "publish"
)

// LoginStep runs the adapter's login sequence.
type LoginStep struct{}

func (LoginStep) Name() string { return StepLogin }

func (LoginStep) Execute(ctx context.Context, state *RunState) (State, error) {
	if err := state.Job.Adapter.Login(ctx, state.Session); err != nil {
		return state.Current, err
	}
	return LoggedIn, nil
}

// NavigateStep reaches the unbilled-transactions view.
type NavigateStep struct{}

func (NavigateStep) Name() string { return StepNavigate }

func (NavigateStep) Execute(ctx context.Context, state *RunState) (State, error) {
	if err := state.Job.Adapter.Navigate(ctx, state.Session); err != nil {
		return state.Current, err
	}
	return Navigated, nil
}

// ExtractStep reads the records off the page.
type ExtractStep struct{}

func (ExtractStep) Name() string { return StepExtract }

func (ExtractStep) Execute(ctx context.Context, state *RunState) (State, error) {
	records, err := state.Job.Adapter.ExtractRows(ctx, state.Session)
	if err != nil {
		return state.Current, err
	}
	state.Records = records
	return Extracted, nil
}

// Publisher replaces a sheet's rows with records.
type Publisher interface {
	Publish(ctx context.Context, target domain.SheetTarget, records []domain.TransactionRecord) error
}

// PublishStep writes the extracted records to the job's sheet. With no
// records the step is skipped unless PublishEmpty is set, and the run stays
// in Extracted.
type PublishStep struct {
	Publisher    Publisher
	PublishEmpty bool
}

func (PublishStep) Name() string { return StepPublish }

func (s PublishStep) Execute(ctx context.Context, state *RunState) (State, error) {
	if len(state.Records) == 0 && !s.PublishEmpty {
		log := logger.FromContext(ctx)
		log.Warn().Str("sheet", state.Job.Target.SheetName).Msg("No transactions extracted, skipping publish")
		return state.Current, nil
	}
	if err := s.Publisher.Publish(ctx, state.Job.Target, state.Records); err != nil {
		return state.Current, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return Published, nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *RunState) error {
	for _, step := range p.steps {
		next, err := step.Execute(ctx, state)
		if err != nil {
			return &StepError{Bank: state.Job.Adapter.Name(), Step: step.Name(), Err: err}
		}
		state.transition(ctx, next)
	}
	return nil
}
