package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"newsletter-digest/internal/logging"
)

// FileStorage writes objects below a local directory
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

// Upload writes body to dir/key and returns the file path
func (s *FileStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return p, nil
}

func (s *FileStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LogStorage logs storage operations instead of actually storing files.
type LogStorage struct{}

func NewLogStorage() *LogStorage {
	return &LogStorage{}
}

func (s *LogStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (string, error) {
	written, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	logging.Log.WithField("key", key).WithField("content_type", contentType).WithField("bytes", written).Info("[STORAGE] Upload")
	return "log://" + key, nil
}

func (s *LogStorage) Delete(ctx context.Context, key string) error {
	logging.Log.WithField("key", key).Info("[STORAGE] Delete")
	return nil
}
