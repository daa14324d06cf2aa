// Package runner executes one complete digest run under a single-flight lock.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/lock"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/metrics"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/pipeline"

	"github.com/google/uuid"
)

// StageDeliver labels failures of the commit and delivery step
const StageDeliver pipeline.Stage = "deliver"

const lockKey = "newsletter-digest:run"

var ErrRunInProgress = errors.New("a digest run is already in progress")

type Pipeline interface {
	Run(ctx context.Context, runID string) pipeline.Outcome
}

type Deliverer interface {
	CommitAndDeliver(ctx context.Context, d *models.Digest, sourceIDs []string) (*models.DeliveryReport, error)
}

// RunError reports the stage a run stopped at
type RunError struct {
	Stage pipeline.Stage
	Err   *failure.Error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Result describes a finished run
type Result struct {
	RunID   string                 `json:"runId"`
	Sources int                    `json:"sources"`
	Skipped bool                   `json:"skipped"`
	Digest  *models.Digest         `json:"digest,omitempty"`
	Report  *models.DeliveryReport `json:"report,omitempty"`
}

type Options struct {
	LockTTL         time.Duration
	SendEmptyDigest bool
}

type Runner struct {
	pipeline  Pipeline
	deliverer Deliverer
	locker    lock.Locker
	opts      Options
}

func New(p Pipeline, d Deliverer, l lock.Locker, opts Options) *Runner {
	if l == nil {
		l = lock.NewLocal()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Runner{pipeline: p, deliverer: d, locker: l, opts: opts}
}

// RunOnce fetches, summarizes, commits and delivers one digest. It returns ErrRunInProgress when
// another run holds the lock and a *RunError when a stage fails.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	release, err := r.locker.Acquire(ctx, lockKey, r.opts.LockTTL)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		if errors.Is(err, lock.ErrHeld) {
			return nil, ErrRunInProgress
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	runID := uuid.New().String()
	log := logging.ForRun(runID)
	log.Info("Starting digest run")

	outcome := r.pipeline.Run(ctx, runID)
	if outcome.Failed() {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, &RunError{Stage: outcome.Stage, Err: outcome.Err}
	}

	state := outcome.State
	result := &Result{RunID: runID, Sources: len(state.SourceIDs), Digest: state.Digest}

	if len(state.SourceIDs) == 0 && !r.opts.SendEmptyDigest {
		log.Info("No newsletters matched, nothing to deliver")
		metrics.RunsTotal.WithLabelValues("empty").Inc()
		result.Skipped = true
		return result, nil
	}

	report, err := r.deliverer.CommitAndDeliver(ctx, state.Digest, state.SourceIDs)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, &RunError{Stage: StageDeliver, Err: failure.As(err)}
	}
	result.Report = report

	metrics.RunsTotal.WithLabelValues("delivered").Inc()
	log.WithField("digest_id", report.DigestID).
		Infof("Run complete: %d items, %d/%d recipients", report.ItemCount, report.RecipientsAttempted-report.RecipientsFailed, report.RecipientsAttempted)
	return result, nil
}
