package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"newsletter-digest/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const tempDirPattern = "rod-digest-*"

var activeRodSessions atomic.Int32

type RodBrowser struct {
	maxAttempts int
	timeout     time.Duration
}

// NewRodBrowser creates a new instance of RodBrowser
func NewRodBrowser() *RodBrowser {
	return &RodBrowser{maxAttempts: 3, timeout: time.Minute}
}

// PrintPDF loads html into a fresh headless browser and prints it, retrying with a new
// browser and profile when an attempt fails.
func (rb *RodBrowser) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= rb.maxAttempts; attempt++ {
		logging.Log.Debugf("PDF attempt %d/%d (fresh browser & profile)", attempt, rb.maxAttempts)

		pdf, err := rb.attemptPrint(ctx, html)
		if err == nil {
			return pdf, nil
		}
		lastErr = err
		logging.Log.WithError(err).Warnf("PDF attempt %d error", attempt)

		if attempt < rb.maxAttempts {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("all %d PDF attempts failed: %w", rb.maxAttempts, lastErr)
}

// attemptPrint performs a single attempt with its own user data dir
func (rb *RodBrowser) attemptPrint(ctx context.Context, html string) ([]byte, error) {
	activeRodSessions.Add(1)
	defer activeRodSessions.Add(-1)

	tmpDir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp user data dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logging.Log.WithError(err).Warn("failed to remove temp user data dir")
		}
	}()

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		UserDataDir(tmpDir)
	defer l.Cleanup()

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, rb.timeout)
	defer cancel()

	browser := rod.New().ControlURL(u).Context(attemptCtx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("empty pdf")
	}
	return pdf, nil
}

// StartCleanup starts a background goroutine that cleans up old Rod temp directories
func StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CleanupTempDirs()
			}
		}
	}()
}

// CleanupTempDirs removes leftover profile directories unless a session is running
func CleanupTempDirs() {
	if activeRodSessions.Load() > 0 {
		logging.Log.Info("Skipping /tmp cleanup: active Rod sessions detected")
		return
	}

	pattern := filepath.Join(os.TempDir(), tempDirPattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logging.Log.WithError(err).Warn("Failed to glob temp directories")
		return
	}

	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			logging.Log.WithError(err).Warnf("Failed to remove temp dir: %s", dir)
		} else {
			logging.Log.Infof("Cleaned up temp dir: %s", dir)
		}
	}
}

// GetActiveSessionCount returns the current number of active Rod sessions (for testing)
func GetActiveSessionCount() int32 {
	return activeRodSessions.Load()
}
