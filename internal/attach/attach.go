// Package attach defines the attachment store interface and the stored-file
// descriptor. The interface lives in its own leaf package so both storage
// implementations and services can depend on it without cycles.
package attach

import (
	"context"
	"io"
)

// Attachment describes a file persisted in the attachment store. It is the
// shape embedded in messages and kept for avatars.
type Attachment struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// Upload is one file handed to the store: its content and metadata.
type Upload struct {
	Reader   io.Reader
	Size     int64
	Name     string
	MimeType string
}

// Store persists and destroys attachment files (avatars, message media).
// Failures surface as internal errors to callers; Destroy is best-effort for
// cascade paths and is never rolled back.
type Store interface {
	// Upload stores the file and returns its descriptor, including the
	// public URL and the PublicID needed to destroy it later.
	Upload(ctx context.Context, up Upload) (*Attachment, error)

	// Destroy removes a previously uploaded file by its PublicID.
	Destroy(ctx context.Context, publicID string) error
}
