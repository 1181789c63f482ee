package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid object path")

// LocalStorage keeps objects in a directory on disk, for development.
// Handler serves them back over HTTP under the configured base URL.
type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (ls *LocalStorage) fullPath(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(clean)), nil
}

// Save writes the object to a temp file and renames it into place.
func (ls *LocalStorage) Save(ctx context.Context, path string, body io.Reader) error {
	dst, err := ls.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save file content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

// Delete is idempotent: a missing object is not an error.
func (ls *LocalStorage) Delete(ctx context.Context, path string) error {
	dst, err := ls.fullPath(path)
	if err != nil {
		return err
	}

	err = os.Remove(dst)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("object to delete does not exist", "path", dst)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (ls *LocalStorage) URL(path string) string {
	return ls.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(path), "/")
}

// DownloadURL is the public URL; the object server needs no signature.
func (ls *LocalStorage) DownloadURL(ctx context.Context, path string) (string, error) {
	if _, err := ls.fullPath(path); err != nil {
		return "", err
	}
	return ls.URL(path), nil
}

// Handler serves stored objects; mount it at the base URL's path.
func (ls *LocalStorage) Handler() http.Handler {
	return http.FileServer(http.Dir(ls.basePath))
}
