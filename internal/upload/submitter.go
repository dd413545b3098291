// Package upload stages a locally selected photo, renders a preview of it and
// submits it to the backend for detection.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/mmynk/foodguardian/internal/models"
)

// MaxFileSize is the largest photo accepted for upload.
const MaxFileSize = 20 << 20

var (
	ErrNoFileSelected = errors.New("no file selected")
	ErrNotImage       = errors.New("file is not an image")
	ErrFileTooLarge   = fmt.Errorf("file exceeds %d MiB", MaxFileSize>>20)
	// ErrSuperseded is returned by SelectFile when a newer selection was made
	// while the file was being read.
	ErrSuperseded = errors.New("selection superseded by a newer file")
)

// Uploader sends image bytes to the backend.
type Uploader interface {
	UploadImage(ctx context.Context, filename, contentType string, data []byte) (models.UploadRecord, error)
}

// Staged is the file currently waiting to be submitted.
type Staged struct {
	Name        string
	ContentType string
	Size        int
	Preview     Preview

	data []byte
	seq  uint64
}

// Submitter holds at most one staged file. It is safe for concurrent use.
type Submitter struct {
	uploader Uploader
	log      *slog.Logger

	mu     sync.Mutex
	seq    uint64
	staged *Staged
}

func NewSubmitter(uploader Uploader, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		uploader: uploader,
		log:      logger.With("component", "upload"),
	}
}

// SelectFile reads a file chosen by the user, checks that it is an image and
// stages it together with a preview. The backend is not contacted.
//
// An empty or generic contentType is replaced by one sniffed from the bytes.
// A rejected file leaves any previously staged file in place.
func (s *Submitter) SelectFile(ctx context.Context, name, contentType string, r io.Reader) (Preview, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Preview{}, fmt.Errorf("read %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}
	if len(data) > MaxFileSize {
		return Preview{}, ErrFileTooLarge
	}

	ct := normalizeContentType(contentType, data)
	if !strings.HasPrefix(ct, "image/") {
		s.log.Debug("rejected non-image file", "name", name, "content_type", ct)
		return Preview{}, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	preview := buildPreview(ct, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return Preview{}, ErrSuperseded
	}
	s.staged = &Staged{
		Name:        name,
		ContentType: ct,
		Size:        len(data),
		Preview:     preview,
		data:        data,
		seq:         seq,
	}
	s.log.Info("file staged", "name", name, "content_type", ct, "bytes", len(data), "thumbnail", preview.Thumbnail)
	return preview, nil
}

// Submit uploads the staged file. On success the staged file and its preview
// are cleared, unless a newer file was selected while the upload ran. On
// failure they are kept so the user can retry.
func (s *Submitter) Submit(ctx context.Context) (models.UploadRecord, error) {
	s.mu.Lock()
	staged := s.staged
	s.mu.Unlock()

	if staged == nil {
		return models.UploadRecord{}, ErrNoFileSelected
	}

	record, err := s.uploader.UploadImage(ctx, staged.Name, staged.ContentType, staged.data)
	if err != nil {
		s.log.Warn("upload failed", "name", staged.Name, "error", err)
		return models.UploadRecord{}, err
	}

	s.mu.Lock()
	if s.staged != nil && s.staged.seq == staged.seq {
		s.staged = nil
	}
	s.mu.Unlock()

	s.log.Info("upload complete", "id", record.ID, "items", len(record.DetectedItems), "processing", record.Processing())
	return record, nil
}

// Staged returns the staged file, if any.
func (s *Submitter) Staged() (Staged, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return Staged{}, false
	}
	return *s.staged, true
}

// Clear drops the staged file and cancels any selection still being read.
func (s *Submitter) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.staged = nil
}

func normalizeContentType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	ct := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}
