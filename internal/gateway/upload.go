package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/foodguardian/internal/models"
)

// UploadImage sends an image to POST /upload-test as multipart field "image".
// contentType labels the part; when empty it is sniffed from data.
// Rejections (format, size) are KindUpload. The returned record may have no
// detected items yet; treat that as "processing".
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, data []byte) (models.UploadRecord, error) {
	if len(data) == 0 {
		err := &Error{Kind: KindUpload, Message: "image is empty"}
		c.metrics.observe("upload_image", time.Now(), err)
		return models.UploadRecord{}, err
	}

	body, formType, err := multipartImage(filename, contentType, data)
	if err != nil {
		return models.UploadRecord{}, &Error{Kind: KindUpload, Message: "failed to encode upload", Err: err}
	}

	r := request{
		operation:     "upload_image",
		method:        http.MethodPost,
		path:          "/upload-test",
		body:          body,
		contentType:   formType,
		authenticated: true,
		classify:      classifyUpload,
	}

	var resp uploadResponse
	if err := c.send(ctx, r, &resp); err != nil {
		return models.UploadRecord{}, err
	}

	record := models.UploadRecord{
		ID:             resp.ID,
		Timestamp:      resp.Timestamp.Time,
		ImageReference: resp.ImageURL,
	}
	if record.ImageReference == "" {
		record.ImageReference = resp.ImageURLCamel
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	for _, item := range resp.Items {
		if label := strings.TrimSpace(string(item)); label != "" {
			record.DetectedItems = append(record.DetectedItems, label)
		}
	}
	return record, nil
}

func multipartImage(filename, contentType string, data []byte) ([]byte, string, error) {
	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type uploadResponse struct {
	ID            string         `json:"id"`
	Timestamp     flexibleTime   `json:"timestamp"`
	Items         []detectedItem `json:"items"`
	ImageURL      string         `json:"image_url"`
	ImageURLCamel string         `json:"imageUrl"`
}

// detectedItem accepts either a bare label or a detector object
// {"label": "bread", "confidence": 0.99}.
type detectedItem string

func (d *detectedItem) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*d = detectedItem(label)
		return nil
	}
	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("detected item must be a string or {label}: %w", err)
	}
	*d = detectedItem(obj.Label)
	return nil
}

// flexibleTime accepts RFC 3339 text or Unix seconds.
type flexibleTime struct {
	time.Time
}

func (t *flexibleTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", raw, err)
	}
	t.Time = time.Unix(0, int64(secs*float64(time.Second)))
	return nil
}
