package pipeline

import (
	"context"
	"fmt"
	"time"

	"newsletter-digest/internal/cleaner"
	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/mailbox"
	"newsletter-digest/internal/mailparse"
	"newsletter-digest/internal/metrics"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/summarizer"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Synthesizer condenses cleaned messages into a digest
type Synthesizer interface {
	Synthesize(ctx context.Context, messages []models.SanitizedMessage) (*models.Digest, error)
}

// Options selects which messages are fetched and how they are cleaned
type Options struct {
	Label          string
	SenderKeywords []string
	Lookback       time.Duration
	Budget         int
	Workers        int
}

type stageFunc func(ctx context.Context, s State) (State, error)

// Orchestrator runs Fetch → Clean → Summarize. It neither persists nor acknowledges anything.
type Orchestrator struct {
	mailbox     mailbox.Mailbox
	synthesizer Synthesizer
	opts        Options
	now         func() time.Time
}

// NewOrchestrator creates a new Orchestrator with the provided mailbox and synthesizer
func NewOrchestrator(mb mailbox.Mailbox, synth Synthesizer, opts Options) *Orchestrator {
	if opts.Budget <= 0 {
		opts.Budget = cleaner.DefaultBudget
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	return &Orchestrator{
		mailbox:     mb,
		synthesizer: synth,
		opts:        opts,
		now:         time.Now,
	}
}

// Run executes the stage graph. runID tags the logs; a fresh one is generated when empty.
func (o *Orchestrator) Run(ctx context.Context, runID string) Outcome {
	if runID == "" {
		runID = uuid.New().String()
	}

	stages := []struct {
		name Stage
		fn   stageFunc
	}{
		{StageFetch, o.fetch},
		{StageClean, o.clean},
		{StageSummarize, o.summarize},
	}

	state := State{RunID: runID}
	for _, st := range stages {
		locallog := logging.ForRun(runID).WithField("stage", st.name)
		start := time.Now()

		next, err := st.fn(ctx, state)
		metrics.RecordStage(string(st.name), time.Since(start))

		if err != nil {
			locallog.WithError(err).Error("Stage failed")
			return Outcome{State: state, Stage: st.name, Err: failure.As(err)}
		}

		locallog.Infof("Stage done in %s (%s)", time.Since(start).Round(time.Millisecond), next.Status)
		state = next
	}

	return Outcome{State: state, Stage: StageSummarize}
}

// fetch lists unread newsletters and retrieves each one. A message that cannot be
// retrieved is skipped, so it is never acknowledged and will be picked up next run.
func (o *Orchestrator) fetch(ctx context.Context, s State) (State, error) {
	locallog := logging.ForRun(s.RunID)
	since := o.now().Add(-o.opts.Lookback)

	refs, err := o.mailbox.ListUnreadSince(ctx, since, o.opts.Label, o.opts.SenderKeywords)
	if err != nil {
		return s, fmt.Errorf("list unread messages: %w", err)
	}

	locallog.Infof("Found %d newsletter messages since %s", len(refs), since.Format(time.RFC3339))

	raw := make([]models.RawMessage, 0, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		msg, err := o.mailbox.GetFull(ctx, ref)
		if err != nil {
			locallog.WithField("message_id", ref).WithError(err).Warn("Error fetching message, skipping")
			continue
		}
		if msg.ID == "" {
			msg.ID = ref
		}
		raw = append(raw, *msg)
		ids = append(ids, ref)
	}

	metrics.MessagesFetched.Add(float64(len(raw)))
	return s.withRaw(raw, ids), nil
}

// clean extracts, sanitizes and truncates every message in parallel. Output order
// matches input order and no message is dropped: an undecodable body becomes "".
func (o *Orchestrator) clean(ctx context.Context, s State) (State, error) {
	cleaned := make([]models.SanitizedMessage, len(s.Raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i := range s.Raw {
		i := i
		msg := s.Raw[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			body, err := mailparse.Extract(msg.Payload)
			if err != nil {
				logging.ForRun(s.RunID).WithField("message_id", msg.ID).WithError(err).Warn("Error extracting body, using empty body")
				body = ""
			}

			cleaned[i] = cleaner.Clean(models.ExtractedMessage{
				ID:      msg.ID,
				Sender:  msg.Sender,
				Subject: msg.Subject,
				SentAt:  msg.SentAt,
				Body:    body,
			}, o.opts.Budget)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return s, err
	}
	return s.withCleaned(cleaned), nil
}

func (o *Orchestrator) summarize(ctx context.Context, s State) (State, error) {
	if len(s.Cleaned) == 0 {
		return s.withDigest(summarizer.EmptyDigest(o.now())), nil
	}

	digest, err := o.synthesizer.Synthesize(ctx, s.Cleaned)
	if err != nil {
		return s, err
	}
	return s.withDigest(digest), nil
}
