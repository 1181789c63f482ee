package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/storage"
	"github.com/templui/campus/internal/validation"
	"golang.org/x/text/cases"
)

const DefaultCategory = "General"

// FileFilter narrows List. Query matches the file name or category.
type FileFilter struct {
	Category   string
	UploaderID string
	Query      string
}

type UploadInput struct {
	Name     string
	Category string
	MimeType string // optional, derived from the name or content when empty
	Size     int64
	Body     io.Reader
}

type FileService struct {
	fileRepo     repository.FileRepository
	downloadRepo repository.DownloadRepository
	storage      storage.Storage
}

func NewFileService(fileRepo repository.FileRepository, downloadRepo repository.DownloadRepository, storage storage.Storage) *FileService {
	return &FileService{
		fileRepo:     fileRepo,
		downloadRepo: downloadRepo,
		storage:      storage,
	}
}

// List returns files newest first.
func (s *FileService) List(ctx context.Context, filter FileFilter) ([]*model.File, error) {
	files, err := s.fileRepo.List(ctx, repository.FileQuery{
		Category:   filter.Category,
		UploaderID: filter.UploaderID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	query := strings.TrimSpace(filter.Query)
	if query == "" {
		return files, nil
	}

	fold := cases.Fold()
	needle := fold.String(query)

	matched := files[:0]
	for _, f := range files {
		if strings.Contains(fold.String(f.Name), needle) || strings.Contains(fold.String(f.Category), needle) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*model.File, error) {
	file, err := s.fileRepo.ByID(ctx, id)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, apperrors.NotFoundf("File not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

func (s *FileService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.fileRepo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Upload writes the object first, then the metadata row. If the row cannot
// be written the object is removed again.
func (s *FileService) Upload(ctx context.Context, uploaderID string, in UploadInput) (*model.File, error) {
	if uploaderID == "" {
		return nil, apperrors.Rejectedf("Sign in to upload", ErrNoSession)
	}
	if err := validation.ValidateFileName(in.Name); err != nil {
		return nil, invalid(err)
	}
	if in.Body == nil {
		return nil, apperrors.Validationf("file content is required")
	}

	body := bufio.NewReaderSize(in.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	err = validation.ValidateFile(in.Name, in.Size, head, validation.ImageConstraints, validation.DocumentConstraints)
	if err != nil {
		return nil, invalid(err)
	}

	ext := strings.ToLower(filepath.Ext(in.Name))
	storagePath := fmt.Sprintf("%s/%d%s", uploaderID, time.Now().UnixMilli(), ext)

	counter := &countingReader{r: body}
	err = s.storage.Save(ctx, storagePath, counter)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}

	file := &model.File{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		URL:         s.storage.URL(storagePath),
		MimeType:    mimeType(in.MimeType, ext, head),
		Size:        counter.n,
		Category:    category,
		UploaderID:  uploaderID,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}

	err = s.fileRepo.Create(ctx, file)
	if err != nil {
		// If DB insert fails, try to cleanup the uploaded file
		delErr := s.storage.Delete(context.WithoutCancel(ctx), storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	slog.Info("file uploaded", "file_id", file.ID, "uploader_id", uploaderID, "size", file.Size, "path", storagePath)
	return file, nil
}

func mimeType(declared, ext string, head []byte) string {
	if declared != "" {
		return declared
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return http.DetectContentType(head)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Delete removes the metadata row first, so a row never points at a missing
// object. The object itself is removed best effort.
func (s *FileService) Delete(ctx context.Context, id, requesterID string) error {
	file, err := s.fileRepo.Delete(ctx, id, requesterID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return apperrors.NotFoundf("File not found or not yours", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	delErr := s.storage.Delete(ctx, file.StoragePath)
	if delErr != nil {
		slog.Error("failed to delete file from storage", "error", delErr, "path", file.StoragePath)
	}

	return nil
}

// DownloadURL returns a URL f can be fetched from now. The stored URL is a
// stable reference that a private bucket may not serve directly.
func (s *FileService) DownloadURL(ctx context.Context, f model.File) (string, error) {
	if f.StoragePath == "" {
		return f.URL, nil
	}
	url, err := s.storage.DownloadURL(ctx, f.StoragePath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Transient, "Could not prepare the download. Please try again.")
	}
	return url, nil
}

// RecordDownload logs one download action. Repeated downloads are all kept.
func (s *FileService) RecordDownload(ctx context.Context, userID, fileID string) error {
	download := &model.Download{
		ID:           uuid.New().String(),
		UserID:       userID,
		FileID:       fileID,
		DownloadedAt: time.Now().UTC(),
	}

	err := s.downloadRepo.Create(ctx, download)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}
