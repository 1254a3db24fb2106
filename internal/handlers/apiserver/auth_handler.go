package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"chat-go/internal/auth"
	"chat-go/internal/config"
	"chat-go/internal/middleware"
	"chat-go/internal/services"
)

// AuthHandler bundles the authentication HTTP handlers. The session token
// is a JWT delivered in an httpOnly cookie.
type AuthHandler struct {
	AuthService services.AuthService
	UserService services.UserService
	AuthConfig  config.AuthConfig
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(authService services.AuthService, userService services.UserService, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{AuthService: authService, UserService: userService, AuthConfig: authCfg}
}

// SignupRequest is the request body for account registration.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles account registration and opens a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, token, err := h.AuthService.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusCreated, user)
}

// Login handles credential verification and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, token, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusOK, user)
}

// Logout revokes the current session token and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.AuthConfig.CookieName)
	if err == nil && cookie.Value != "" {
		// The middleware already validated the token; blacklist is skipped
		// here so an about-to-expire token can still be revoked.
		claims, err := auth.ValidateToken(r.Context(), cookie.Value, h.AuthConfig.JWTSecretKey, nil)
		if err == nil && claims.ID != "" && claims.ExpiresAt != nil {
			if err := h.AuthService.Logout(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				writeServiceError(w, err)
				return
			}
		}
	}

	h.clearSessionCookie(w)
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Check returns the authenticated user, used by clients to restore sessions.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.UserService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.AuthConfig.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.AuthConfig.JWTExpiry),
		HttpOnly: true,
		Secure:   h.AuthConfig.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.AuthConfig.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.AuthConfig.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
