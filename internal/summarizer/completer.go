package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/metrics"
	"newsletter-digest/internal/retry"
)

// Completer turns a prompt into model output text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// classifyStatus tags an HTTP failure: rate limits and server errors are worth retrying
func classifyStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (%d): %s", provider, status, truncateBody(body))
	if status == http.StatusTooManyRequests || status >= 500 {
		return failure.New(failure.KindTransientIO, provider, err)
	}
	return err
}

func classifyTransport(provider string, err error) error {
	return failure.New(failure.KindTransientIO, provider, fmt.Errorf("%s request failed: %w", provider, err))
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

type retrying struct {
	next   Completer
	policy retry.Policy
}

// WithRetry retries transient completion failures with backoff
func WithRetry(c Completer, p retry.Policy) Completer {
	return &retrying{next: c, policy: p}
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := retry.Do(ctx, r.policy, "complete:"+r.next.Name(), func(ctx context.Context) error {
		start := time.Now()
		var err error
		out, err = r.next.Complete(ctx, prompt)
		metrics.RecordLLMCall(r.next.Name(), err, time.Since(start))
		return err
	})
	return out, err
}
