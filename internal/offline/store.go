// Package offline keeps downloaded copies of library files in an app-private
// directory and reconciles them with the remote catalog.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/model"
)

// Outcome of Download. Failed always comes with a non-nil error.
type Outcome int

const (
	Failed Outcome = iota
	Downloaded
	AlreadyDownloaded
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case AlreadyDownloaded:
		return "already_downloaded"
	default:
		return "failed"
	}
}

// Entry is one blob in the download directory.
type Entry struct {
	Key     string
	Path    string
	Size    int64
	ModTime time.Time
	// File is the catalog entry the key was derived from, nil when the
	// remote file is gone.
	File *model.File
}

// Recorder logs a completed download with the backend.
type Recorder interface {
	RecordDownload(ctx context.Context, fileID string) error
}

type RecorderFunc func(ctx context.Context, fileID string) error

func (f RecorderFunc) RecordDownload(ctx context.Context, fileID string) error {
	return f(ctx, fileID)
}

// Locator resolves the URL a file can be fetched from right now, e.g. a
// freshly presigned one.
type Locator interface {
	DownloadURL(ctx context.Context, f model.File) (string, error)
}

type Options struct {
	Dir      string
	Client   *http.Client
	Locator  Locator  // optional, defaults to the file's stored URL
	Recorder Recorder // optional
	Opener   Opener   // optional
}

type Store struct {
	dir      string
	client   *http.Client
	locator  Locator
	recorder Recorder
	opener   Opener

	mu         sync.Mutex
	downloaded map[string]bool     // file ids available offline
	inFlight   map[string]struct{} // keys being transferred
}

func New(opts Options) *Store {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Store{
		dir:        opts.Dir,
		client:     client,
		locator:    opts.Locator,
		recorder:   opts.Recorder,
		opener:     opts.Opener,
		downloaded: make(map[string]bool),
		inFlight:   make(map[string]struct{}),
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// EnsureDirectory creates the download directory if it does not exist.
func (s *Store) EnsureDirectory() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	return nil
}

// ListLocal enumerates the download directory by key and links each blob to
// the catalog file whose id prefixes its key.
func (s *Store) ListLocal(catalog []model.File) (map[string]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list download directory: %w", err)
	}

	entries := make(map[string]Entry, len(dirents))
	for _, d := range dirents {
		// partial transfers are hidden
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		e := Entry{
			Key:     d.Name(),
			Path:    filepath.Join(s.dir, d.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		for i := range catalog {
			if belongsTo(e.Key, catalog[i].ID) {
				f := catalog[i]
				e.File = &f
				break
			}
		}
		entries[e.Key] = e
	}
	return entries, nil
}

// Entries is ListLocal as a slice, newest first.
func (s *Store) Entries(catalog []model.File) ([]Entry, error) {
	m, err := s.ListLocal(catalog)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Key < out[j].Key
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Reconcile rebuilds the set of catalog files available offline from what is
// on disk.
func (s *Store) Reconcile(catalog []model.File) error {
	local, err := s.ListLocal(catalog)
	if err != nil {
		return err
	}

	downloaded := make(map[string]bool)
	for _, e := range local {
		if e.File != nil {
			downloaded[e.File.ID] = true
		}
	}

	s.mu.Lock()
	s.downloaded = downloaded
	s.mu.Unlock()
	return nil
}

// Downloaded reports whether the file with id is available offline.
func (s *Store) Downloaded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloaded[id]
}

// Download copies f to the download directory. A key that already exists or
// is being transferred short-circuits with AlreadyDownloaded.
func (s *Store) Download(ctx context.Context, f model.File) (Outcome, error) {
	key := Key(f)
	path := filepath.Join(s.dir, key)

	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		return AlreadyDownloaded, nil
	}
	if _, err := os.Stat(path); err == nil {
		s.downloaded[f.ID] = true
		s.mu.Unlock()
		return AlreadyDownloaded, nil
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()

	err := s.fetch(ctx, f, key)

	s.mu.Lock()
	delete(s.inFlight, key)
	if err == nil {
		s.downloaded[f.ID] = true
	}
	s.mu.Unlock()

	if err != nil {
		return Failed, err
	}

	if s.recorder != nil {
		// the local copy stands even if the log write fails
		if err := s.recorder.RecordDownload(ctx, f.ID); err != nil {
			slog.Warn("failed to record download", "file_id", f.ID, "error", err)
		}
	}

	slog.Info("file downloaded", "file_id", f.ID, "key", key)
	return Downloaded, nil
}

func (s *Store) fetch(ctx context.Context, f model.File, key string) error {
	url := f.URL
	if s.locator != nil {
		resolved, err := s.locator.DownloadURL(ctx, f)
		if err != nil {
			return err
		}
		url = resolved
	}
	return s.transfer(ctx, url, key)
}

// transfer streams url into a hidden temp file and renames it to key only
// after a 200 response was copied in full.
func (s *Store) transfer(ctx context.Context, url, key string) error {
	if url == "" {
		return apperrors.New(apperrors.Validation, "file has no download URL")
	}
	if err := s.EnsureDirectory(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Transient, "Download failed. Check your connection and try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Wrap(fmt.Errorf("unexpected status %d", resp.StatusCode), apperrors.Transient, "Download failed. Please try again.")
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.Transient, "Download interrupted. Please try again.")
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

// OpenLocal hands the entry to the configured opener.
func (s *Store) OpenLocal(ctx context.Context, e Entry) error {
	if s.opener == nil {
		return ErrNoOpener
	}
	return s.opener.Open(ctx, e.Path)
}

// DeleteLocal removes the blob. Callers re-run ListLocal or Reconcile to
// refresh their view.
func (s *Store) DeleteLocal(e Entry) error {
	if e.Key == "" || e.Key != filepath.Base(e.Key) {
		return fmt.Errorf("invalid local key %q", e.Key)
	}
	err := os.Remove(filepath.Join(s.dir, e.Key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete local file: %w", err)
	}
	return nil
}
