// Package pipeline provides a generic ordered-step executor with per-step
// retry, skip predicates, and a shared mutable run context. The first step
// failure terminates the run; later steps are reported as pending.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oriondocs/orion/internal/errs"
)

// Status is the lifecycle state of a run or of an individual step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Step is one unit of work in a pipeline.
type Step interface {
	// Name identifies the step in reports and logs.
	Name() string

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries() int

	// ShouldSkip inspects the run context and reports whether to skip,
	// with a human-readable reason.
	ShouldSkip(pctx *Context) (bool, string)

	// Execute performs the work, reading inputs from and writing outputs
	// to the run context.
	Execute(ctx context.Context, pctx *Context) error
}

// RetryPolicy lets a step override the default retry decision, which is
// attempt < MaxRetries().
type RetryPolicy interface {
	ShouldRetry(attempt int, err error) bool
}

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string
	Status   Status
	Message  string
	Err      error
	Duration time.Duration
}

// Report is the outcome of a full run.
type Report struct {
	Name           string
	Status         Status
	Err            error
	Steps          []StepResult
	StartedAt      time.Time
	CompletedAt    time.Time
	CompletedCount int
	FailedCount    int
}

// Pipeline executes a fixed sequence of steps.
type Pipeline struct {
	name        string
	steps       []Step
	timeout     time.Duration
	backoffUnit time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout sets a soft deadline for the whole run. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithBackoffUnit scales the inter-retry sleep. The sleep before retry
// attempt n is 2^(n-1) units; the default unit is one second.
func WithBackoffUnit(d time.Duration) Option {
	return func(p *Pipeline) {
		p.backoffUnit = d
	}
}

// WithLogger sets the logger for the pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline that runs the given steps in order.
func New(name string, steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:        name,
		steps:       steps,
		backoffUnit: time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs all steps in order and returns the full report. The report's
// step results follow declaration order; steps after a failure keep status
// pending. Cancellation is observed between steps and between retries.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) *Report {
	report := &Report{
		Name:      p.name,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := p.logger.With("pipeline", p.name, "document_id", pctx.DocumentID)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			report.finish(p.remainingPending(report), classifyInterrupt(err))
			log.Warn("pipeline interrupted", "status", report.Status)
			return report
		}

		if skip, reason := step.ShouldSkip(pctx); skip {
			result := StepResult{Name: step.Name(), Status: StatusSkipped, Message: reason}
			report.Steps = append(report.Steps, result)
			pctx.Results[step.Name()] = result
			log.Debug("step skipped", "step", step.Name(), "reason", reason)
			continue
		}

		result := p.runStep(ctx, step, pctx, log)
		report.Steps = append(report.Steps, result)
		pctx.Results[step.Name()] = result

		switch result.Status {
		case StatusSuccess:
			report.CompletedCount++
		case StatusFailed:
			report.FailedCount++
			report.finish(p.remainingPending(report), fmt.Errorf("step %s failed; %w", step.Name(), result.Err))
			log.Error("pipeline failed", "step", step.Name(), "error", result.Err)
			return report
		case StatusCancelled:
			report.finish(p.remainingPending(report), classifyInterrupt(result.Err))
			log.Warn("pipeline interrupted", "step", step.Name(), "status", report.Status)
			return report
		}
	}

	report.Status = StatusSuccess
	report.CompletedAt = time.Now()
	log.Info("pipeline completed",
		"steps", len(report.Steps),
		"duration", report.CompletedAt.Sub(report.StartedAt))
	return report
}

// runStep executes one step with its retry budget. All attempts and
// inter-retry sleeps count toward the reported duration.
func (p *Pipeline) runStep(ctx context.Context, step Step, pctx *Context, log *slog.Logger) StepResult {
	start := time.Now()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := p.backoffUnit << (attempt - 1)
			log.Debug("retrying step", "step", step.Name(), "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return StepResult{
					Name:     step.Name(),
					Status:   StatusCancelled,
					Err:      ctx.Err(),
					Duration: time.Since(start),
				}
			case <-time.After(backoff):
			}
		}

		lastErr = step.Execute(ctx, pctx)
		if lastErr == nil {
			return StepResult{
				Name:     step.Name(),
				Status:   StatusSuccess,
				Message:  "completed",
				Duration: time.Since(start),
			}
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return StepResult{
				Name:     step.Name(),
				Status:   StatusCancelled,
				Err:      lastErr,
				Duration: time.Since(start),
			}
		}

		if !p.shouldRetry(step, attempt, lastErr) {
			break
		}
	}

	return StepResult{
		Name:     step.Name(),
		Status:   StatusFailed,
		Message:  lastErr.Error(),
		Err:      lastErr,
		Duration: time.Since(start),
	}
}

func (p *Pipeline) shouldRetry(step Step, attempt int, err error) bool {
	if rp, ok := step.(RetryPolicy); ok {
		return rp.ShouldRetry(attempt, err)
	}
	return attempt < step.MaxRetries()
}

// remainingPending returns pending results for declared steps that never ran.
func (p *Pipeline) remainingPending(report *Report) []StepResult {
	var out []StepResult
	for _, step := range p.steps[len(report.Steps):] {
		out = append(out, StepResult{Name: step.Name(), Status: StatusPending})
	}
	return out
}

func (r *Report) finish(pending []StepResult, err error) {
	r.Steps = append(r.Steps, pending...)
	r.Err = err
	r.CompletedAt = time.Now()
	if errors.Is(err, errs.ErrCancelled) || errors.Is(err, context.Canceled) {
		r.Status = StatusCancelled
	} else {
		r.Status = StatusFailed
	}
}

// classifyInterrupt maps context termination to the reported error kind.
func classifyInterrupt(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w; %w", errs.ErrTimedOut, err)
	}
	return fmt.Errorf("%w; %w", errs.ErrCancelled, err)
}
