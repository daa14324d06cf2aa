package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsletter-digest/internal/logging"
)

// Scheduler triggers a run once a day at a fixed wall-clock time
type Scheduler struct {
	runner *Runner
	hour   int
	minute int
	loc    *time.Location
	now    func() time.Time
}

// NewScheduler parses at as HH:MM in the named IANA timezone
func NewScheduler(r *Runner, at, timezone string) (*Scheduler, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Scheduler{runner: r, hour: t.Hour(), minute: t.Minute(), loc: loc, now: time.Now}, nil
}

// Next returns the first scheduled instant strictly after from
func (s *Scheduler) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

// Start blocks, running the digest at each scheduled time until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.Next(s.now())
		logging.Log.WithField("next_run", next.Format(time.RFC3339)).Info("Scheduled next digest run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Log.Info("Scheduler stopped")
			return
		case <-timer.C:
		}

		result, err := s.runner.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			logging.Log.Warn("Skipping scheduled run, another run is in progress")
		case err != nil:
			logging.Log.WithError(err).Error("Scheduled run failed")
		case result.Skipped:
			logging.Log.Info("Scheduled run found no newsletters")
		}
	}
}
