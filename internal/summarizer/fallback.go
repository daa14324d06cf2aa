package summarizer

import (
	"context"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
)

// FallbackCompleter tries the primary provider and switches to the secondary
// when the primary fails with a transient error (quota, outage, unreachable).
type FallbackCompleter struct {
	primary   Completer
	secondary Completer
}

func NewFallbackCompleter(primary, secondary Completer) *FallbackCompleter {
	return &FallbackCompleter{primary: primary, secondary: secondary}
}

func (f *FallbackCompleter) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := f.primary.Complete(ctx, prompt)
	if err == nil || !failure.IsTransient(err) {
		return out, err
	}

	logging.Log.WithError(err).Warnf("%s unavailable, falling back to %s", f.primary.Name(), f.secondary.Name())
	return f.secondary.Complete(ctx, prompt)
}
