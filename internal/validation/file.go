package validation

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool
	AllowedExtensions map[string]bool
	MaxSize           int64
}

var (
	// ImageConstraints covers avatars and photos shared in the library
	ImageConstraints = FileConstraints{
		AllowedMimeTypes: map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/webp": true,
		},
		AllowedExtensions: map[string]bool{
			".jpg":  true,
			".jpeg": true,
			".png":  true,
			".webp": true,
		},
		MaxSize: 5 << 20, // 5MB
	}

	// DocumentConstraints covers lecture notes and handouts.
	// Office formats are zip containers, so they sniff as application/zip.
	DocumentConstraints = FileConstraints{
		AllowedMimeTypes: map[string]bool{
			"application/pdf":           true,
			"application/zip":           true,
			"text/plain; charset=utf-8": true,
		},
		AllowedExtensions: map[string]bool{
			".pdf":  true,
			".docx": true,
			".pptx": true,
			".xlsx": true,
			".zip":  true,
			".txt":  true,
			".md":   true,
		},
		MaxSize: 50 << 20, // 50MB
	}
)

// ValidateFileName rejects empty names and path components
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file name is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("file name must not contain path separators")
	}
	return nil
}

// ValidateFile validates an upload against one or more constraint sets.
// head is the first bytes of the content (up to 512) used for sniffing.
// If multiple constraints are provided, the file must match at least one.
func ValidateFile(name string, size int64, head []byte, constraints ...FileConstraints) error {
	if len(constraints) == 0 {
		return fmt.Errorf("no file constraints provided")
	}

	var lastErr error
	for _, constraint := range constraints {
		err := validateAgainstConstraint(name, size, head, constraint)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return lastErr
}

func validateAgainstConstraint(name string, size int64, head []byte, constraints FileConstraints) error {
	if size > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return fmt.Errorf("file too large: maximum size is %d MB", maxMB)
	}

	// Detect actual content type from magic numbers, not the caller's claim
	detectedType := http.DetectContentType(head)
	if !constraints.AllowedMimeTypes[detectedType] {
		return fmt.Errorf("invalid file type (detected: %s)", detectedType)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !constraints.AllowedExtensions[ext] {
		return fmt.Errorf("invalid file extension: %s", ext)
	}

	return nil
}
