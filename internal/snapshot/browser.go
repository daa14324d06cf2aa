// Package snapshot prints rendered digests to PDF with a headless browser.
package snapshot

import "context"

type Browser interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}
