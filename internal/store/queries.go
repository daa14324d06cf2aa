package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsletter-digest/internal/models"

	"github.com/jackc/pgx/v5"
)

// ActiveSubscriberEmails returns the addresses of every active subscriber
func (s *Store) ActiveSubscriberEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM subscribers WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// AddSubscriber registers email, reactivating it when it was unsubscribed.
// It returns ErrAlreadySubscribed when the address is already active.
func (s *Store) AddSubscriber(ctx context.Context, email string) (*models.Subscriber, error) {
	query := `
		INSERT INTO subscribers (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET active = TRUE
		WHERE subscribers.active = FALSE
		RETURNING id, email, active, created_at
	`

	var sub models.Subscriber
	err := s.pool.QueryRow(ctx, query, normalizeEmail(email)).Scan(&sub.ID, &sub.Email, &sub.Active, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadySubscribed
	}
	if err != nil {
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}
	return &sub, nil
}

// Unsubscribe deactivates email. It returns ErrNotFound for unknown or inactive addresses.
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE subscribers SET active = FALSE WHERE email = $1 AND active`, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestDigests returns up to limit digests, newest first
func (s *Store) LatestDigests(ctx context.Context, limit int) ([]models.PersistedDigest, error) {
	query := `
		SELECT id, date, headline, content_html, content_json, created_at
		FROM newsletters
		ORDER BY date DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	return pgx.CollectRows(rows, scanDigest)
}

// DigestByID returns one digest and its items
func (s *Store) DigestByID(ctx context.Context, id int64) (*models.PersistedDigest, []models.PersistedItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, headline, content_html, content_json, created_at
		FROM newsletters WHERE id = $1
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query digest: %w", err)
	}

	digest, err := pgx.CollectOneRow(rows, scanDigest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err = s.pool.Query(ctx, itemColumns+` WHERE newsletter_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, nil, err
	}
	return &digest, items, nil
}

// LatestItems returns up to limit items, newest first. A non-empty category
// filters with a case-insensitive substring match.
func (s *Store) LatestItems(ctx context.Context, limit int, category string) ([]models.PersistedItem, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = s.pool.Query(ctx, itemColumns+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, itemColumns+` WHERE category ILIKE '%' || $2 || '%' ORDER BY created_at DESC, id DESC LIMIT $1`, limit, category)
	}
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Stats returns aggregate counts
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{ItemsByCategory: map[string]int64{}}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM newsletters),
			(SELECT COUNT(*) FROM news_items),
			(SELECT COUNT(*) FROM subscribers WHERE active)
	`).Scan(&st.Digests, &st.Items, &st.ActiveSubscribers)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT category, COUNT(*) FROM news_items GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			count    int64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		st.ItemsByCategory[category] = count
	}
	return st, rows.Err()
}

const itemColumns = `
	SELECT id, newsletter_id, title, snippet, category, source, url, COALESCE(image_url, ''), created_at
	FROM news_items`

func scanDigest(row pgx.CollectableRow) (models.PersistedDigest, error) {
	var d models.PersistedDigest
	err := row.Scan(&d.ID, &d.Date, &d.Headline, &d.ContentHTML, &d.ContentJSON, &d.CreatedAt)
	return d, err
}

func scanItem(row pgx.CollectableRow) (models.PersistedItem, error) {
	var it models.PersistedItem
	err := row.Scan(&it.ID, &it.DigestID, &it.Title, &it.Snippet, &it.Category, &it.Source, &it.URL, &it.ImageURL, &it.CreatedAt)
	return it, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
