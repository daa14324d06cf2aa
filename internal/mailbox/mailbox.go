// Package mailbox defines the mail provider boundary used by the pipeline and the coordinator.
package mailbox

import (
	"context"
	"time"

	"newsletter-digest/internal/models"
	"newsletter-digest/internal/retry"
)

// Mailbox is implemented by the Gmail and IMAP providers
type Mailbox interface {
	// ListUnreadSince returns refs of unread messages carrying label, received after since,
	// from any sender matching one of senderKeywords (all senders when empty).
	ListUnreadSince(ctx context.Context, since time.Time, label string, senderKeywords []string) ([]string, error)
	GetFull(ctx context.Context, ref string) (*models.RawMessage, error)
	MarkProcessed(ctx context.Context, ref string) error
	SendDocument(ctx context.Context, recipient, subject, html string) error
}

type retrying struct {
	next   Mailbox
	policy retry.Policy
}

// WithRetry wraps every call of m with the backoff policy. Only transient errors are retried.
func WithRetry(m Mailbox, p retry.Policy) Mailbox {
	return &retrying{next: m, policy: p}
}

func (r *retrying) ListUnreadSince(ctx context.Context, since time.Time, label string, senderKeywords []string) ([]string, error) {
	var refs []string
	err := retry.Do(ctx, r.policy, "list", func(ctx context.Context) error {
		var err error
		refs, err = r.next.ListUnreadSince(ctx, since, label, senderKeywords)
		return err
	})
	return refs, err
}

func (r *retrying) GetFull(ctx context.Context, ref string) (*models.RawMessage, error) {
	var msg *models.RawMessage
	err := retry.Do(ctx, r.policy, "get", func(ctx context.Context) error {
		var err error
		msg, err = r.next.GetFull(ctx, ref)
		return err
	})
	return msg, err
}

func (r *retrying) MarkProcessed(ctx context.Context, ref string) error {
	return retry.Do(ctx, r.policy, "mark", func(ctx context.Context) error {
		return r.next.MarkProcessed(ctx, ref)
	})
}

func (r *retrying) SendDocument(ctx context.Context, recipient, subject, html string) error {
	return retry.Do(ctx, r.policy, "send", func(ctx context.Context) error {
		return r.next.SendDocument(ctx, recipient, subject, html)
	})
}
