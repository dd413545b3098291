package models

import "time"

// UploadRecord is the backend's answer to an image upload.
// It is read-only to the client.
type UploadRecord struct {
	// ID identifies the upload.
	ID string

	// Timestamp is when the backend accepted the upload.
	Timestamp time.Time

	// DetectedItems are the item labels found in the image, in detector order.
	// Empty means detection has not finished yet, not that nothing was found.
	DetectedItems []string

	// ImageReference points at the stored image, empty when the backend
	// does not expose one.
	ImageReference string
}

// Processing reports whether detection results are still pending.
func (r UploadRecord) Processing() bool {
	return len(r.DetectedItems) == 0
}
