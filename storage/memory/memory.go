// Package memory is an in-process Storage used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderMemory, func(_ storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return New("memory://objects"), nil
	})
}

type Storage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
	// FailUploads makes every Upload return an error.
	FailUploads bool
}

func New(baseURL string) *Storage {
	return &Storage{baseURL: strings.TrimSuffix(baseURL, "/"), objects: map[string][]byte{}}
}

func (s *Storage) Upload(_ context.Context, key string, reader io.Reader, _ string) error {
	if s.FailUploads {
		return fmt.Errorf("storage: memory upload of %s refused", key)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("storage: read upload: %w", err)
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *Storage) URL(_ context.Context, key string) (string, error) {
	return s.baseURL + "/" + key, nil
}

// Object returns the bytes stored under key.
func (s *Storage) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Keys returns the stored keys in order.
func (s *Storage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.objects))
}

var _ storage.Storage = (*Storage)(nil)
