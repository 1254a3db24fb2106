package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-go/internal/attach"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

// newTestDB opens an isolated in-memory database and migrates the schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, fullName, email string) *models.User {
	t.Helper()
	user := &models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fakeAttachStore is an in-memory attach.Store recording every operation.
type fakeAttachStore struct {
	mu        sync.Mutex
	uploads   int
	destroyed []string
}

func (f *fakeAttachStore) Upload(ctx context.Context, up attach.Upload) (*attach.Attachment, error) {
	if up.Reader != nil {
		if _, err := io.Copy(io.Discard, up.Reader); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return &attach.Attachment{
		URL:      "/uploads/" + up.Name,
		PublicID: fmt.Sprintf("pub-%s", up.Name),
		Name:     up.Name,
		Size:     up.Size,
	}, nil
}

func (f *fakeAttachStore) Destroy(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func testUpload(name string) attach.Upload {
	content := []byte("test content for " + name)
	return attach.Upload{
		Reader:   bytes.NewReader(content),
		Size:     int64(len(content)),
		Name:     name,
		MimeType: "application/octet-stream",
	}
}
