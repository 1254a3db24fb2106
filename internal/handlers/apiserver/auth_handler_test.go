package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-go/internal/config"
	"chat-go/internal/middleware"
	"chat-go/internal/services"
	"chat-go/internal/storage"
)

var testAuthConfig = config.AuthConfig{
	JWTSecretKey: "test-secret",
	JWTExpiry:    time.Hour,
	CookieName:   "jwt",
}

type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func (m *memoryBlacklist) Add(ctx context.Context, jti string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = struct{}{}
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// newTestRouter wires the auth routes the way the server does, against an
// in-memory database.
func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))

	blacklist := &memoryBlacklist{revoked: make(map[string]struct{})}
	userRepo := storage.NewGormUserRepository(db)
	authService := services.NewAuthService(userRepo, blacklist, testAuthConfig)
	userService := services.NewUserService(userRepo, nil, nil)
	authHandler := NewAuthHandler(authService, userService, testAuthConfig)

	r := mux.NewRouter()
	r.HandleFunc("/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, testAuthConfig, blacklist, nil)
	})
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/check", authHandler.Check).Methods(http.MethodGet)

	return r
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == testAuthConfig.CookieName {
			return c
		}
	}
	return nil
}

func TestSignupSetsSessionCookie(t *testing.T) {
	router := newTestRouter(t)

	body := `{"fullName":"Alice Anderson","email":"alice@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	cookie := sessionCookie(t, rec.Result())
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestAuthCheckFlow(t *testing.T) {
	router := newTestRouter(t)

	// Unauthenticated requests are rejected.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := `{"fullName":"Alice Anderson","email":"alice@example.com","password":"secret1"}`
	req = httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := sessionCookie(t, rec.Result())
	require.NotNil(t, cookie)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice Anderson")
}

func TestLogoutInvalidatesSession(t *testing.T) {
	router := newTestRouter(t)

	body := `{"fullName":"Alice Anderson","email":"alice@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := sessionCookie(t, rec.Result())
	require.NotNil(t, cookie)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The cleared cookie is sent back expired.
	cleared := sessionCookie(t, rec.Result())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// The original token no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := newTestRouter(t)

	body := `{"fullName":"Alice Anderson","email":"alice@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"nope"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"secret1"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sessionCookie(t, rec.Result()))
}
