package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chat-go/internal/attach"
	"chat-go/internal/config"
)

// LocalAttachmentStore implements attach.Store on the local filesystem.
// The generated unique file name doubles as the attachment's PublicID.
type LocalAttachmentStore struct {
	basePath string // root directory for stored files, e.g. "./uploads"
	baseURL  string // URL prefix files are served under, e.g. "/uploads"
}

// NewLocalAttachmentStore creates a local attach.Store rooted at cfg.LocalPath.
func NewLocalAttachmentStore(cfg config.StorageConfig) (attach.Store, error) {
	if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", cfg.LocalPath, err)
	}
	return &LocalAttachmentStore{
		basePath: cfg.LocalPath,
		baseURL:  cfg.BaseURL,
	}, nil
}

// Upload saves the file under a unique name and returns its descriptor.
func (s *LocalAttachmentStore) Upload(ctx context.Context, up attach.Upload) (*attach.Attachment, error) {
	// Keep the original extension; fall back to the MIME type when absent.
	ext := filepath.Ext(up.Name)
	if ext == "" {
		extensions, _ := mime.ExtensionsByType(up.MimeType)
		if len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	publicID := uuid.New().String() + ext

	dstPath := filepath.Join(s.basePath, publicID)
	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file '%s': %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, up.Reader)
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if up.Size > 0 && written != up.Size {
		os.Remove(dstPath)
		return nil, fmt.Errorf("file size mismatch: expected %d, wrote %d", up.Size, written)
	}

	fileURL := strings.TrimSuffix(s.baseURL, "/") + "/" + url.PathEscape(publicID)

	return &attach.Attachment{
		URL:      fileURL,
		PublicID: publicID,
		Name:     up.Name,
		Size:     written,
	}, nil
}

// Destroy removes a stored file. A file that is already gone is not an error.
func (s *LocalAttachmentStore) Destroy(ctx context.Context, publicID string) error {
	// PublicID is a generated file name; reject anything path-like.
	if publicID == "" || publicID != filepath.Base(publicID) {
		return fmt.Errorf("invalid public id %q", publicID)
	}
	err := os.Remove(filepath.Join(s.basePath, publicID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
