package cleaner

import "newsletter-digest/internal/models"

// Clean sanitizes and truncates the body of m, keeping its header fields
func Clean(m models.ExtractedMessage, budget int) models.SanitizedMessage {
	return models.SanitizedMessage{
		ID:      m.ID,
		Sender:  m.Sender,
		Subject: m.Subject,
		SentAt:  m.SentAt,
		Body:    Truncate(Sanitize(m.Body), budget),
	}
}
