package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/auth"
	"chat-go/internal/config"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService defines the interface for account and session operations.
type AuthService interface {
	Signup(ctx context.Context, fullName, email, password string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, authCfg config.AuthConfig) AuthService {
	return &authService{userRepo: userRepo, blacklist: blacklist, authCfg: authCfg}
}

// Signup registers a new account and returns the user with a session token.
// Emails are stored lowercased and must be unique.
func (s *authService) Signup(ctx context.Context, fullName, email, password string) (*models.User, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" || email == "" || password == "" {
		return nil, "", apperrors.Validation("All fields are required")
	}
	if len(password) < 6 {
		return nil, "", apperrors.Validation("Password must be at least 6 characters long")
	}
	if !emailPattern.MatchString(email) {
		return nil, "", apperrors.Validation("Email is invalid")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.Internal("Failed to check existing email", err)
	}
	if existing != nil {
		return nil, "", apperrors.Conflict("Email already exists")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", apperrors.Internal("Failed to hash password", err)
	}

	user := &models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", apperrors.Internal("Failed to create user", err)
	}

	token, err := auth.GenerateToken(user.ID, s.authCfg)
	if err != nil {
		return nil, "", apperrors.Internal("Failed to generate session token", err)
	}

	log.Printf("User %d signed up (%s)", user.ID, user.Email)
	return user, token, nil
}

// Login verifies the credentials and returns the user with a fresh session
// token. Unknown email and wrong password are indistinguishable to callers.
func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apperrors.Validation("All fields are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.Validation("Invalid credentials")
		}
		return nil, "", apperrors.Internal("Failed to look up user", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", apperrors.Validation("Invalid credentials")
	}

	token, err := auth.GenerateToken(user.ID, s.authCfg)
	if err != nil {
		return nil, "", apperrors.Internal("Failed to generate session token", err)
	}
	return user, token, nil
}

// Logout revokes the session token by blacklisting its jti until the token
// would have expired on its own.
func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil {
		return nil
	}
	if err := s.blacklist.Add(ctx, jti, expiresAt); err != nil {
		return apperrors.Internal("Failed to revoke session", err)
	}
	return nil
}
