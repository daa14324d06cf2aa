package imap

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

type StandardClient struct {
	client  *client.Client
	timeout time.Duration
}

// NewStandardClient creates a StandardClient. A zero timeout defaults to 30 seconds per fetch.
func NewStandardClient(timeout time.Duration) *StandardClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StandardClient{
		timeout: timeout,
	}
}

// Connect establishes a secure connection to the IMAP server using TLS.
func (c *StandardClient) Connect(server string) error {
	cl, err := client.DialTLS(server, nil)
	if err != nil {
		return fmt.Errorf("IMAP connection error: %w", err)
	}
	c.client = cl
	return nil
}

func (c *StandardClient) Login(user, password string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	return c.client.Login(user, password)
}

// SelectMailbox selects the mailbox (or Gmail label) read by later searches, read-write so flags can be stored.
func (c *StandardClient) SelectMailbox(name string) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	_, err := c.client.Select(name, false)
	return err
}

// SearchUnseen returns the UIDs of unseen messages received since the given time whose From header
// contains one of senderKeywords.
func (c *StandardClient) SearchUnseen(since time.Time, senderKeywords []string) ([]uint32, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	uids, err := c.client.UidSearch(SearchCriteria(since, senderKeywords))
	if err != nil {
		return nil, fmt.Errorf("error searching for unseen emails: %w", err)
	}
	return uids, nil
}

// FetchMessage retrieves the full message for uid without setting \Seen.
func (c *StandardClient) FetchMessage(uid uint32) (*imap.Message, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	prevTimeout := c.client.Timeout
	c.client.Timeout = c.timeout
	defer func() { c.client.Timeout = prevTimeout }()

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching message UID %d: %w", uid, err)
	}

	if msg == nil {
		return nil, fmt.Errorf("no message retrieved for UID %d", uid)
	}

	return msg, nil
}

func (c *StandardClient) MarkSeen(uid uint32) error {
	if c.client == nil {
		return fmt.Errorf("not connected")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	return c.client.UidStore(seqSet, item, flags, nil)
}

// Close logs out. It is a no-op without a connection.
func (c *StandardClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	return err
}

// SearchCriteria matches unseen mail since the given time from any of senderKeywords
func SearchCriteria(since time.Time, senderKeywords []string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since

	var keywords []string
	for _, kw := range senderKeywords {
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}

	switch len(keywords) {
	case 0:
	case 1:
		criteria.Header.Add("From", keywords[0])
	default:
		criteria.Or = append(criteria.Or, fromAny(keywords))
	}
	return criteria
}

// fromAny folds keywords into a right-leaning OR tree
func fromAny(keywords []string) [2]*imap.SearchCriteria {
	first := imap.NewSearchCriteria()
	first.Header.Add("From", keywords[0])

	rest := imap.NewSearchCriteria()
	if len(keywords) == 2 {
		rest.Header.Add("From", keywords[1])
	} else {
		rest.Or = append(rest.Or, fromAny(keywords[1:]))
	}
	return [2]*imap.SearchCriteria{first, rest}
}
