package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/foodguardian/internal/middleware"
)

// MaxUploadSize is the largest photo /upload-test accepts.
const MaxUploadSize = 20 << 20

// Detection is one item recognised in a photo.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector recognises food items in an image.
type Detector interface {
	Detect(ctx context.Context, contentType string, image []byte) ([]Detection, error)
	Source() string
}

// StubDetector answers every photo with the same two items.
type StubDetector struct{}

func (StubDetector) Detect(ctx context.Context, contentType string, image []byte) ([]Detection, error) {
	return []Detection{
		{Label: "bread", Confidence: 0.998},
		{Label: "cake", Confidence: 0.87},
	}, nil
}

func (StubDetector) Source() string { return "stub" }

type uploadResponse struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Items     []Detection `json:"items"`
	Source    string      `json:"source"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+(1<<20))

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.ErrorResponse(w, http.StatusRequestEntityTooLarge, "image exceeds 20 MiB")
			return
		}
		middleware.ErrorResponse(w, http.StatusBadRequest, "multipart field \"image\" required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) > MaxUploadSize {
		middleware.ErrorResponse(w, http.StatusRequestEntityTooLarge, "image exceeds 20 MiB")
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		declared := header.Header.Get("Content-Type")
		if !strings.HasPrefix(declared, "image/") || len(data) == 0 {
			middleware.ErrorResponse(w, http.StatusUnsupportedMediaType, "unsupported image format")
			return
		}
		contentType = declared
	}

	items, err := s.detector.Detect(r.Context(), contentType, data)
	if err != nil {
		s.logger.Error("Detection failed", "filename", header.Filename, "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "detection failed")
		return
	}
	if items == nil {
		items = []Detection{}
	}

	resp := uploadResponse{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Unix(),
		Items:     items,
		Source:    s.detector.Source(),
	}
	s.logger.Info("Upload processed", "id", resp.ID, "filename", header.Filename, "bytes", len(data), "items", len(items))
	middleware.JSONResponse(w, http.StatusOK, resp)
}
