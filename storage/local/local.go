// Package local stores objects under a directory and hands out file://
// URLs. Only the local transcription backend can read those.
package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(cfg.BasePath)
	})
}

type Storage struct {
	root string
}

func NewStorage(basePath string) (*Storage, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Storage{root: root}, nil
}

// path maps key below root. Leading "../" segments are dropped.
func (s *Storage) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(filepath.Clean("/"+key)))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: key %q escapes base path", key)
	}
	return p, nil
}

// Upload writes a temp file next to the target and renames it, so readers
// never see a partial object.
func (s *Storage) Upload(_ context.Context, key string, reader io.Reader, _ string) (err error) {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, err = io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage: rename %s: %w", key, err)
	}
	return nil
}

func (s *Storage) URL(_ context.Context, key string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

var _ storage.Storage = (*Storage)(nil)
