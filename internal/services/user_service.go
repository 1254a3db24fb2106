package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/attach"
	"chat-go/internal/auth"
	"chat-go/internal/models"
	appredis "chat-go/internal/redis"
	"chat-go/internal/storage"
)

// ProfileUpdate carries the optional fields of a profile update. Nil or
// zero-valued fields are left unchanged.
type ProfileUpdate struct {
	FullName string
	Password string
	Avatar   *attach.Upload
}

// UserService defines the interface for user profile operations.
type UserService interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error)
	DeleteAccount(ctx context.Context, userID uint) error
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error)
}

type userService struct {
	userRepo storage.UserRepository
	store    attach.Store
	presence appredis.PresenceCache
}

// NewUserService creates a new UserService instance. presence may be nil;
// profiles then carry only the persisted last-seen timestamp.
func NewUserService(userRepo storage.UserRepository, store attach.Store, presence appredis.PresenceCache) UserService {
	return &userService{userRepo: userRepo, store: store, presence: presence}
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to fetch user", err)
	}

	// The cache holds fresher last-seen data than the user row.
	if s.presence != nil {
		if at, ok, err := s.presence.LastSeen(ctx, id); err == nil && ok {
			user.LastSeenAt = &at
		}
	}
	return user, nil
}

// UpdateProfile applies the given changes to the user's profile. A new avatar
// replaces the previous one; the old file is destroyed best-effort after the
// row is saved.
func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FullName != "" {
		user.FullName = update.FullName
	}
	if update.Password != "" {
		if len(update.Password) < 6 {
			return nil, apperrors.Validation("Password must be at least 6 characters long")
		}
		hash, err := auth.HashPassword(update.Password)
		if err != nil {
			return nil, apperrors.Internal("Failed to hash password", err)
		}
		user.PasswordHash = hash
	}

	oldAvatarPublicID := ""
	if update.Avatar != nil {
		uploaded, err := s.store.Upload(ctx, *update.Avatar)
		if err != nil {
			return nil, apperrors.Internal("Failed to upload avatar", err)
		}
		oldAvatarPublicID = user.AvatarPublicID
		user.AvatarURL = uploaded.URL
		user.AvatarPublicID = uploaded.PublicID
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("Failed to update user", err)
	}

	if oldAvatarPublicID != "" {
		if err := s.store.Destroy(ctx, oldAvatarPublicID); err != nil {
			log.Printf("Failed to destroy previous avatar %s for user %d: %v", oldAvatarPublicID, userID, err)
		}
	}
	return user, nil
}

// DeleteAccount removes the user row and destroys the stored avatar.
func (s *userService) DeleteAccount(ctx context.Context, userID uint) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.AvatarPublicID != "" {
		if err := s.store.Destroy(ctx, user.AvatarPublicID); err != nil {
			log.Printf("Failed to destroy avatar %s for user %d: %v", user.AvatarPublicID, userID, err)
		}
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return apperrors.Internal("Failed to delete user", err)
	}
	log.Printf("User %d deleted their account", userID)
	return nil
}

func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	if query == "" {
		return []models.User{}, nil
	}
	users, err := s.userRepo.SearchUsers(ctx, query, currentUserID)
	if err != nil {
		return nil, apperrors.Internal("Failed to search users", err)
	}
	return users, nil
}
