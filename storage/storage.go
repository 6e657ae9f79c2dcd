// Package storage is the object storage layer the upload steps push audio
// artifacts to. Backends register themselves from their own packages.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Storage is where the upload steps put audio. URL must be reachable by
// the transcription backend when it needs a remote file.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// UploadFile uploads the file at localPath to key and returns its public URL.
func UploadFile(ctx context.Context, s Storage, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", filepath.Base(localPath), err)
	}
	defer f.Close() //nolint:errcheck // read-only

	if err := s.Upload(ctx, key, f, ContentType(localPath)); err != nil {
		return "", err
	}
	return s.URL(ctx, key)
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	switch filepath.Ext(name) {
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
