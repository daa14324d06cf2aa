package retry

import (
	"context"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"

	"github.com/googleapis/gax-go/v2"
)

// Policy bounds how often and how slowly a transient failure is retried
type Policy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// FromConfig converts the YAML retry block into a Policy
func FromConfig(c models.RetryConfig) Policy {
	return Policy{
		Attempts:   c.Attempts,
		Initial:    c.Initial,
		Max:        c.Max,
		Multiplier: c.Multiplier,
	}
}

// Do runs fn until it succeeds, returns a non-transient error, or the attempts run out
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	bo := gax.Backoff{
		Initial:    p.Initial,
		Max:        p.Max,
		Multiplier: p.Multiplier,
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !failure.IsTransient(err) || attempt == attempts {
			return err
		}

		pause := bo.Pause()
		logging.Log.WithError(err).WithField("op", op).Warnf("Attempt %d/%d failed, retrying in %s", attempt, attempts, pause)

		if sleepErr := gax.Sleep(ctx, pause); sleepErr != nil {
			return err
		}
	}
	return err
}
