// Package delivery commits a digest to the store and sends it to subscribers.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"newsletter-digest/internal/events"
	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/mailbox"
	"newsletter-digest/internal/metrics"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/render"
	"newsletter-digest/internal/store"

	"golang.org/x/time/rate"
)

// Store is the subset of store.Store the coordinator writes to
type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
	ActiveSubscriberEmails(ctx context.Context) ([]string, error)
}

// Publisher announces committed digests
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Archiver copies committed digests to object storage
type Archiver interface {
	Archive(ctx context.Context, date time.Time, d *models.Digest, html string) (map[string]string, error)
}

type Options struct {
	// Subject is used when the digest has no headline
	Subject        string
	Title          string
	UnsubscribeURL string
	// RatePerSecond caps sends; zero or less means unlimited
	RatePerSecond float64
	Publisher     Publisher
	Archiver      Archiver
}

type Coordinator struct {
	store   Store
	mailbox mailbox.Mailbox
	opts    Options
	now     func() time.Time
}

func NewCoordinator(st Store, mb mailbox.Mailbox, opts Options) *Coordinator {
	return &Coordinator{
		store:   st,
		mailbox: mb,
		opts:    opts,
		now:     time.Now,
	}
}

// CommitAndDeliver persists d and its items atomically, then sends the rendered document to every
// active subscriber and acknowledges the source messages. Only a failed commit is returned as an
// error; send and acknowledge failures are counted in the report.
func (c *Coordinator) CommitAndDeliver(ctx context.Context, d *models.Digest, sourceIDs []string) (*models.DeliveryReport, error) {
	const op = "delivery.CommitAndDeliver"
	log := logging.Log.WithField("date", d.Date)

	date := ResolveDate(d.Date, c.now())

	html, err := render.Render(d, render.Options{Title: c.opts.Title, UnsubscribeURL: c.opts.UnsubscribeURL})
	if err != nil {
		return nil, failure.New(failure.KindPersistence, op, fmt.Errorf("render: %w", err))
	}

	content, err := json.Marshal(d)
	if err != nil {
		return nil, failure.New(failure.KindPersistence, op, fmt.Errorf("encode digest: %w", err))
	}

	row := &models.PersistedDigest{
		Date:        date,
		Headline:    d.Headline,
		ContentHTML: html,
		ContentJSON: string(content),
	}
	items := Items(d)

	err = c.store.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.InsertDigest(ctx, row)
		if err != nil {
			return err
		}
		return tx.InsertItems(ctx, id, items)
	})
	if err != nil {
		log.WithError(err).Error("Failed to commit digest")
		return nil, failure.New(failure.KindPersistence, op, err)
	}
	log.WithField("digest_id", row.ID).Infof("Committed digest with %d items", len(items))

	report := &models.DeliveryReport{DigestID: row.ID, ItemCount: len(items)}

	recipients, err := c.store.ActiveSubscriberEmails(ctx)
	if err != nil {
		// the digest is committed; nobody gets it this run
		log.WithError(err).Error("Failed to load subscribers")
	}
	c.send(ctx, recipients, d, html, report)
	c.acknowledge(ctx, sourceIDs, report)
	c.afterCommit(ctx, row.ID, date, d, html, report)

	return report, nil
}

func (c *Coordinator) send(ctx context.Context, recipients []string, d *models.Digest, html string, report *models.DeliveryReport) {
	limit := rate.Inf
	if c.opts.RatePerSecond > 0 {
		limit = rate.Limit(c.opts.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	subject := d.Headline
	if subject == "" {
		subject = c.opts.Subject
	}

	for _, to := range recipients {
		report.RecipientsAttempted++

		err := limiter.Wait(ctx)
		if err == nil {
			err = c.mailbox.SendDocument(ctx, to, subject, html)
		}
		metrics.RecordDelivery(err)
		if err != nil {
			report.RecipientsFailed++
			report.FailedRecipients = append(report.FailedRecipients, to)
			logging.Log.WithField("recipient", to).WithError(err).Warn("Failed to send digest")
		}
	}

	logging.Log.Infof("Sent digest to %d/%d subscribers", report.RecipientsAttempted-report.RecipientsFailed, report.RecipientsAttempted)
}

func (c *Coordinator) acknowledge(ctx context.Context, sourceIDs []string, report *models.DeliveryReport) {
	for _, id := range sourceIDs {
		if err := c.mailbox.MarkProcessed(ctx, id); err != nil {
			report.AcknowledgeFailed++
			logging.Log.WithField("message_id", id).WithError(err).Warn("Failed to mark message processed")
		}
	}
}

// afterCommit announces and archives the digest under its stored date
func (c *Coordinator) afterCommit(ctx context.Context, id int64, date time.Time, d *models.Digest, html string, report *models.DeliveryReport) {
	if c.opts.Publisher != nil {
		event := events.DigestPublished{
			DigestID:  id,
			Date:      date.Format("2006-01-02"),
			Headline:  d.Headline,
			ItemCount: report.ItemCount,
			SentAt:    c.now().UTC(),
		}
		if err := c.opts.Publisher.Publish(ctx, events.RoutingDigestPublished, event); err != nil {
			logging.Log.WithError(err).Warn("Failed to publish digest event")
		}
	}

	if c.opts.Archiver != nil {
		if _, err := c.opts.Archiver.Archive(ctx, date, d, html); err != nil {
			logging.Log.WithError(err).Warn("Failed to archive digest")
		}
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "January 2, 2006"}

// ResolveDate parses the digest date, falling back to the calendar day of now
func ResolveDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Items flattens the digest sections into rows, one per item, in section order
func Items(d *models.Digest) []models.PersistedItem {
	items := make([]models.PersistedItem, 0, d.ItemCount())
	for _, section := range d.Sections {
		category := Category(section.Title)
		for _, it := range section.Items {
			snippet := it.Snippet
			if snippet == "" {
				snippet = it.Summary
			}
			items = append(items, models.PersistedItem{
				Title:    it.Title,
				Snippet:  snippet,
				Category: category,
				Source:   it.Source,
				URL:      it.URL,
				ImageURL: it.ImageURL,
			})
		}
	}
	return items
}

// Category strips leading emoji and punctuation from a section title
func Category(title string) string {
	return strings.TrimSpace(strings.TrimLeftFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}
