package models

import (
	"encoding/json"
	"time"
)

// DigestItem is a single entry of a digest section
type DigestItem struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// UnmarshalJSON also accepts the snake_case image_url some model responses use
func (i *DigestItem) UnmarshalJSON(data []byte) error {
	type plain DigestItem
	var aux struct {
		plain
		SnakeImageURL string `json:"image_url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = DigestItem(aux.plain)
	if i.ImageURL == "" {
		i.ImageURL = aux.SnakeImageURL
	}
	return nil
}

// Section groups digest items under a title such as "🔬 Research Highlights"
type Section struct {
	Title string       `json:"title"`
	Items []DigestItem `json:"items"`
}

// Digest is the structured result of summarizing a batch of newsletters
type Digest struct {
	Headline string    `json:"headline"`
	Date     string    `json:"date"`
	Sections []Section `json:"sections"`
	Summary  string    `json:"summary,omitempty"`
}

// ItemCount returns the number of items across all sections
func (d *Digest) ItemCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Items)
	}
	return n
}

// PersistedDigest is a stored digest row
type PersistedDigest struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Headline    string    `json:"headline"`
	ContentHTML string    `json:"-"`
	ContentJSON string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PersistedItem is a stored digest item row
type PersistedItem struct {
	ID        int64     `json:"id"`
	DigestID  int64     `json:"newsletterId"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is a digest recipient
type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"subscribedAt"`
}

// DeliveryReport summarizes the outcome of committing and sending one digest
type DeliveryReport struct {
	DigestID            int64    `json:"digestId"`
	ItemCount           int      `json:"itemCount"`
	RecipientsAttempted int      `json:"recipientsAttempted"`
	RecipientsFailed    int      `json:"recipientsFailed"`
	FailedRecipients    []string `json:"failedRecipients,omitempty"`
	AcknowledgeFailed   int      `json:"acknowledgeFailed"`
}

// Stats holds aggregate counts over the store
type Stats struct {
	Digests           int64            `json:"digests"`
	Items             int64            `json:"items"`
	ActiveSubscribers int64            `json:"activeSubscribers"`
	ItemsByCategory   map[string]int64 `json:"itemsByCategory"`
}
