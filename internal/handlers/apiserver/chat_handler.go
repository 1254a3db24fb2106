package apiserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"chat-go/internal/middleware"
	"chat-go/internal/services"
	"chat-go/internal/storage"
)

// ChatHandler bundles the chat lifecycle HTTP handlers.
type ChatHandler struct {
	ChatService services.ChatService
}

// NewChatHandler creates a new ChatHandler instance.
func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{ChatService: chatService}
}

// CreateChatRequest is the request body for chat creation. Members lists
// the other participants; the caller is included implicitly.
type CreateChatRequest struct {
	IsGroup   bool   `json:"isGroup"`
	GroupName string `json:"groupName"`
	Members   []uint `json:"members"`
}

// CreateChat creates a private or group chat.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	chat, err := h.ChatService.CreateChat(r.Context(), userID, services.CreateChatInput{
		IsGroup:   req.IsGroup,
		GroupName: req.GroupName,
		MemberIDs: req.Members,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, chat)
}

// GetChats lists the caller's chats, most recently active first.
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chats, err := h.ChatService.GetUserChats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, chats)
}

// GetChat returns a single chat with its members.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	chat, err := h.ChatService.GetChatByID(r.Context(), chatID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, chat)
}

// UpdateChat updates a group chat's name, members, admin or avatar. Accepts
// JSON or a multipart form with a "groupAvatar" file field.
func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	var update services.ChatUpdate

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		update.GroupName = r.FormValue("groupName")
		if adminRaw := r.FormValue("groupAdmin"); adminRaw != "" {
			adminID, err := storage.StrToUint(adminRaw)
			if err != nil || adminID == 0 {
				writeJSONError(w, "Invalid group admin ID", http.StatusBadRequest)
				return
			}
			update.GroupAdminID = &adminID
		}
		if membersRaw := r.FormValue("members"); membersRaw != "" {
			ids, err := parseMemberList(membersRaw)
			if err != nil {
				writeJSONError(w, "Invalid members list", http.StatusBadRequest)
				return
			}
			update.MemberIDs = ids
		}
		if files := r.MultipartForm.File["groupAvatar"]; len(files) > 0 {
			up, file, err := uploadFromFileHeader(files[0])
			if err != nil {
				writeJSONError(w, "Failed to read group avatar", http.StatusBadRequest)
				return
			}
			defer file.Close()
			update.Avatar = up
		}
	} else {
		var req struct {
			GroupName  string `json:"groupName"`
			Members    []uint `json:"members"`
			GroupAdmin *uint  `json:"groupAdmin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		update.GroupName = req.GroupName
		update.MemberIDs = req.Members
		update.GroupAdminID = req.GroupAdmin
	}

	chat, err := h.ChatService.UpdateChat(r.Context(), chatID, userID, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, chat)
}

// DeleteChat deletes a group chat and soft-deletes its messages.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	if err := h.ChatService.DeleteChat(r.Context(), chatID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

// LeaveChat removes the caller from a group chat. A leaving admin names a
// successor via the "newAdmin" body field.
func (h *ChatHandler) LeaveChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	var req struct {
		NewAdmin *uint `json:"newAdmin"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
	}

	if err := h.ChatService.LeaveChat(r.Context(), chatID, userID, req.NewAdmin); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Left chat"})
}

// parseMemberList parses a comma-separated ID list from a form value.
func parseMemberList(raw string) ([]uint, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		id, err := storage.StrToUint(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
