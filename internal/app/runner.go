package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// compensationTimeout bounds each compensating action.
const compensationTimeout = 10 * time.Second

// Step is one unit of work of a saga. Criticality decides whether its failure
// aborts the run; Compensate, when set, undoes a completed step.
type Step struct {
	Name        string
	Stage       domain.Stage
	Criticality domain.Criticality
	Timeout     time.Duration
	Run         func(ctx context.Context) error
	Compensate  func(ctx context.Context) error
}

// Phase groups steps that run concurrently. Phases run in order and each is a
// barrier for the next.
type Phase struct {
	Stage domain.Stage
	Steps []Step
}

// Observer is notified around every step. The function returned by
// StepStarted is called with the step's error once it ends. RunFinished
// receives the final stage of each run.
type Observer interface {
	StepStarted(ctx context.Context, name string, stage domain.Stage, criticality domain.Criticality) (context.Context, func(error))
	RunFinished(ctx context.Context, stage domain.Stage)
}

type nopObserver struct{}

func (nopObserver) StepStarted(ctx context.Context, _ string, _ domain.Stage, _ domain.Criticality) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (nopObserver) RunFinished(context.Context, domain.Stage) {}

// Report is the outcome of a run.
type Report struct {
	Outcomes []domain.StepOutcome
	// Stage is SUCCEEDED, or FAILED after a fatal step failure.
	Stage domain.Stage
	// Err is the *domain.StepError of the first fatal failure.
	Err error
}

// Runner executes phases of steps with a per-step fatal/best-effort policy.
type Runner struct {
	observer Observer
	logger   *zap.Logger
}

// NewRunner creates a runner. A nil observer is replaced by a no-op.
func NewRunner(logger *zap.Logger, observer Observer) *Runner {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{observer: observer, logger: logger}
}

// Run executes phases in order. Steps of one phase run concurrently, each
// with its own timeout and error; a failing step never cancels its siblings.
// After a phase, the first fatal failure stops the run and compensates every
// completed step in reverse completion order.
func (r *Runner) Run(ctx context.Context, phases []Phase) Report {
	var report Report
	var completed []Step

	for _, phase := range phases {
		outcomes := make([]domain.StepOutcome, len(phase.Steps))

		var g errgroup.Group
		for i, step := range phase.Steps {
			g.Go(func() error {
				outcomes[i] = r.runStep(ctx, step)
				return nil
			})
		}
		_ = g.Wait()

		report.Outcomes = append(report.Outcomes, outcomes...)

		var fatal *domain.StepError
		for i, o := range outcomes {
			step := phase.Steps[i]
			if !o.Failed() {
				completed = append(completed, step)
				continue
			}
			if step.Criticality == domain.Fatal && fatal == nil {
				fatal = &domain.StepError{Step: step.Name, Stage: step.Stage, Err: o.Err}
				continue
			}
			if step.Criticality == domain.BestEffort {
				r.logger.Warn("best-effort step failed",
					zap.String("step", step.Name),
					zap.String("stage", string(step.Stage)),
					zap.Error(o.Err),
				)
			}
		}

		if fatal != nil {
			r.logger.Error("fatal step failed, compensating",
				zap.String("step", fatal.Step),
				zap.String("stage", string(fatal.Stage)),
				zap.Error(fatal.Err),
			)
			r.compensate(ctx, completed)
			report.Stage = domain.StageFailed
			report.Err = fatal
			r.observer.RunFinished(ctx, report.Stage)
			return report
		}
	}

	report.Stage = domain.StageSucceeded
	r.observer.RunFinished(ctx, report.Stage)
	return report
}

func (r *Runner) runStep(ctx context.Context, step Step) (outcome domain.StepOutcome) {
	outcome = domain.StepOutcome{Name: step.Name, Stage: step.Stage, Criticality: step.Criticality}

	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	ctx, end := r.observer.StepStarted(ctx, step.Name, step.Stage, step.Criticality)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			outcome.Err = fmt.Errorf("step %s panicked: %v", step.Name, p)
		}
		outcome.Duration = time.Since(start)
		end(outcome.Err)
	}()

	outcome.Err = step.Run(ctx)
	return outcome
}

// compensate undoes completed steps in reverse order. Compensation runs even
// if the caller's context is already cancelled.
func (r *Runner) compensate(ctx context.Context, completed []Step) {
	base := context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}

		cctx, cancel := context.WithTimeout(base, compensationTimeout)
		err := step.Compensate(cctx)
		cancel()

		if err != nil {
			r.logger.Error("compensation failed",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("step compensated", zap.String("step", step.Name))
	}
}
