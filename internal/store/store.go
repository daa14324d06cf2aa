// Package store persists digests, digest items and subscribers in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDigestExists      = errors.New("a digest already exists for this date")
	ErrAlreadySubscribed = errors.New("email already subscribed")
	ErrNotFound          = errors.New("not found")
)

const uniqueViolation = "23505"

// Tx is the write surface available inside WithTx
type Tx interface {
	InsertDigest(ctx context.Context, d *models.PersistedDigest) (int64, error)
	InsertItems(ctx context.Context, digestID int64, items []models.PersistedItem) error
}

type Store struct {
	pool *pgxpool.Pool
}

// Open creates the connection pool, installs the slow query tracer and pings the database
func Open(ctx context.Context, cfg models.DatabaseConfig) (*Store, error) {
	logging.Log.Info("Initializing PostgreSQL connection pool")

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnIdleTime = time.Minute
	poolCfg.ConnConfig.Tracer = NewSlowQueryTracer(cfg.SlowQueryThreshold)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	logging.Log.Info("PostgreSQL connection established successfully")
	return &Store{pool: pool}, nil
}

// New wraps an existing pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx runs fn inside one transaction and commits when fn returns nil.
// Once the transaction is open it ignores ctx cancellation, so it always ends in
// either a commit or a rollback.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txCtx := context.WithoutCancel(ctx)

	tx, err := s.pool.Begin(txCtx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(&pgxTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) InsertDigest(ctx context.Context, d *models.PersistedDigest) (int64, error) {
	ctx = context.WithoutCancel(ctx)
	query := `
		INSERT INTO newsletters (date, headline, content_html, content_json)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := t.tx.QueryRow(ctx, query, d.Date, d.Headline, d.ContentHTML, d.ContentJSON).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDigestExists, d.Date.Format("2006-01-02"))
		}
		return 0, fmt.Errorf("insert digest: %w", err)
	}
	return d.ID, nil
}

func (t *pgxTx) InsertItems(ctx context.Context, digestID int64, items []models.PersistedItem) error {
	if len(items) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	query := `
		INSERT INTO news_items (newsletter_id, title, snippet, category, source, url, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(query, digestID, it.Title, it.Snippet, it.Category, it.Source, it.URL, nullable(it.ImageURL))
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	return br.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
