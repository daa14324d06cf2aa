// Package imap implements the mailbox over a generic IMAP server.
package imap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/mailparse"
	"newsletter-digest/internal/models"

	"github.com/emersion/go-imap"
)

const defaultMailbox = "INBOX"

var ErrCannotSend = errors.New("imap mailbox cannot send; configure delivery.sender")

type Client interface {
	Connect(server string) error
	Login(user, password string) error
	SelectMailbox(name string) error
	SearchUnseen(since time.Time, senderKeywords []string) ([]uint32, error)
	FetchMessage(uid uint32) (*imap.Message, error)
	MarkSeen(uid uint32) error
	Close() error
}

// Mailbox serializes access to one IMAP session and reconnects lazily after a failure.
// Refs are message UIDs in the selected label.
type Mailbox struct {
	mu        sync.Mutex
	client    Client
	cfg       models.ImapConfig
	connected bool
	label     string
	selected  string
}

func NewMailbox(client Client, cfg models.ImapConfig) *Mailbox {
	return &Mailbox{client: client, cfg: cfg}
}

func (m *Mailbox) ListUnreadSince(ctx context.Context, since time.Time, label string, senderKeywords []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.label = label
	if err := m.ensure(ctx, label); err != nil {
		return nil, err
	}

	uids, err := m.client.SearchUnseen(since, senderKeywords)
	if err != nil {
		return nil, m.fail("imap.search", err)
	}

	refs := make([]string, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, strconv.FormatUint(uint64(uid), 10))
	}
	logging.Log.WithField("label", m.selected).Infof("Found %d unseen messages", len(refs))
	return refs, nil
}

func (m *Mailbox) GetFull(ctx context.Context, ref string) (*models.RawMessage, error) {
	uid, err := parseUID(ref)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensure(ctx, m.label); err != nil {
		return nil, err
	}

	msg, err := m.client.FetchMessage(uid)
	if err != nil {
		return nil, m.fail("imap.fetch", err)
	}

	raw, err := mailparse.ParseIMAP(msg)
	if err != nil {
		return nil, fmt.Errorf("parse message UID %d: %w", uid, err)
	}
	return raw, nil
}

func (m *Mailbox) MarkProcessed(ctx context.Context, ref string) error {
	uid, err := parseUID(ref)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensure(ctx, m.label); err != nil {
		return err
	}
	if err := m.client.MarkSeen(uid); err != nil {
		return m.fail("imap.store", err)
	}
	return nil
}

// SendDocument is unsupported over IMAP; wrap the mailbox with email.RouteSends.
func (m *Mailbox) SendDocument(ctx context.Context, recipient, subject, html string) error {
	return failure.New(failure.KindDelivery, "imap.send", ErrCannotSend)
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	m.connected = false
	return m.client.Close()
}

// ensure connects, logs in and selects label when needed. Caller holds mu.
func (m *Mailbox) ensure(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if label == "" {
		label = defaultMailbox
	}

	if !m.connected {
		if err := m.client.Connect(m.cfg.Server); err != nil {
			return failure.New(failure.KindTransientIO, "imap.connect", err)
		}
		if err := m.client.Login(m.cfg.Login, m.cfg.Password); err != nil {
			_ = m.client.Close()
			return fmt.Errorf("imap.login: %w", err)
		}
		m.connected = true
		m.selected = ""
		logging.Log.WithField("server", m.cfg.Server).Info("Connected to IMAP server")
	}

	if m.selected != label {
		if err := m.client.SelectMailbox(label); err != nil {
			return m.fail("imap.select", err)
		}
		m.selected = label
	}
	return nil
}

// fail drops the session so the next call reconnects, and reports the error as retryable
func (m *Mailbox) fail(op string, err error) error {
	logging.Log.WithError(err).Warnf("%s failed, resetting IMAP session", op)
	_ = m.client.Close()
	m.connected = false
	m.selected = ""
	return failure.New(failure.KindTransientIO, op, err)
}

func parseUID(ref string) (uint32, error) {
	uid, err := strconv.ParseUint(strings.TrimSpace(ref), 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid message ref %q", ref)
	}
	return uint32(uid), nil
}
