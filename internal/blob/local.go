package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// LocalStore writes blobs to a directory on disk and serves them back by
// path-style URLs under baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put stores data under a timestamped, sanitized file name and returns the
// public URL for it.
func (s *LocalStore) Put(ctx context.Context, name string, mediaType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), unsafeNameChars.ReplaceAllString(name, "_"))
	path := filepath.Join(s.dir, fileName)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", fileName, err)
	}
	return s.baseURL + "/uploads/" + fileName, nil
}

// Get reads back a blob previously stored by Put.
func (s *LocalStore) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := strings.LastIndex(url, "/uploads/")
	if idx < 0 {
		return nil, fmt.Errorf("not a managed blob URL: %s", url)
	}
	fileName := url[idx+len("/uploads/"):]
	if fileName == "" || strings.Contains(fileName, "/") || strings.Contains(fileName, "..") {
		return nil, fmt.Errorf("invalid blob name in URL: %s", url)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", fileName, err)
	}
	return data, nil
}
