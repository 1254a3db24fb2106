package apiserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"chat-go/internal/middleware"
	"chat-go/internal/services"
)

// UserHandler bundles the user profile HTTP handlers.
type UserHandler struct {
	UserService services.UserService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{UserService: userService}
}

// GetMe returns the authenticated user's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	user, err := h.UserService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMe updates the authenticated user's profile. Accepts either a JSON
// body or a multipart form carrying a new avatar under the "avatar" field.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var update services.ProfileUpdate

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		update.FullName = r.FormValue("fullName")
		update.Password = r.FormValue("password")

		if files := r.MultipartForm.File["avatar"]; len(files) > 0 {
			up, file, err := uploadFromFileHeader(files[0])
			if err != nil {
				writeJSONError(w, "Failed to read avatar", http.StatusBadRequest)
				return
			}
			defer file.Close()
			update.Avatar = up
		}
	} else {
		var req struct {
			FullName string `json:"fullName"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		update.FullName = req.FullName
		update.Password = req.Password
	}

	user, err := h.UserService.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// DeleteMe deletes the authenticated user's account.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.UserService.DeleteAccount(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

// Search finds users by name or email fragment, excluding the caller.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	users, err := h.UserService.SearchUsers(r.Context(), r.URL.Query().Get("q"), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// GetUser returns another user's profile by ID.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	user, err := h.UserService.GetUserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}
