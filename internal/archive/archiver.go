package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/snapshot"
)

// Archiver copies each published digest to storage as JSON, HTML and optionally PDF
type Archiver struct {
	storage Storage
	browser snapshot.Browser
}

// NewArchiver creates an Archiver. A nil browser disables PDF snapshots.
func NewArchiver(storage Storage, browser snapshot.Browser) *Archiver {
	return &Archiver{storage: storage, browser: browser}
}

// Archive uploads the digest artifacts under the stored digest date and returns their URLs
// keyed by extension. Every artifact is attempted; the errors are joined.
func (a *Archiver) Archive(ctx context.Context, date time.Time, d *models.Digest, html string) (map[string]string, error) {
	day := date.Format("2006-01-02")
	prefix := fmt.Sprintf("digests/%s/digest", day)
	urls := map[string]string{}
	var errs []error

	put := func(ext, contentType string, body []byte) {
		url, err := a.storage.Upload(ctx, prefix+"."+ext, bytes.NewReader(body), contentType, int64(len(body)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ext, err))
			return
		}
		urls[ext] = url
	}

	stored := *d
	stored.Date = day
	payload, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return nil, err
	}
	put("json", "application/json", payload)
	put("html", "text/html; charset=utf-8", []byte(html))

	if a.browser != nil {
		pdf, err := a.browser.PrintPDF(ctx, html)
		if err != nil {
			errs = append(errs, fmt.Errorf("pdf: %w", err))
		} else {
			put("pdf", "application/pdf", pdf)
		}
	}

	if len(urls) > 0 {
		logging.Log.WithField("date", day).Infof("Archived %d digest artifacts", len(urls))
	}
	return urls, errors.Join(errs...)
}

// ExportItems writes items as a dated JSON file and returns its URL
func ExportItems(ctx context.Context, storage Storage, date string, items []models.PersistedItem) (string, error) {
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	return storage.Upload(ctx, date+".json", bytes.NewReader(payload), "application/json", int64(len(payload)))
}
