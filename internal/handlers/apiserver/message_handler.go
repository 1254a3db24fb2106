package apiserver

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"chat-go/internal/middleware"
	"chat-go/internal/models"
	"chat-go/internal/services"
	"chat-go/internal/storage"
)

// MessageHandler bundles the message HTTP handlers.
type MessageHandler struct {
	MessageService services.MessageService
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(messageService services.MessageService) *MessageHandler {
	return &MessageHandler{MessageService: messageService}
}

// SendMessage posts a message to a chat. Text messages arrive as JSON;
// media messages arrive as a multipart form with "files" entries.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	var input services.SendMessageInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		input.Type = models.MessageType(r.FormValue("messageType"))
		input.Text = r.FormValue("text")
		if replyTo := r.FormValue("replyTo"); replyTo != "" {
			id, err := storage.StrToUint(replyTo)
			if err != nil {
				writeJSONError(w, "Invalid replyTo ID", http.StatusBadRequest)
				return
			}
			input.ReplyToID = &id
		}

		var openFiles []multipart.File
		defer func() {
			for _, f := range openFiles {
				f.Close()
			}
		}()
		for _, fh := range r.MultipartForm.File["files"] {
			up, file, err := uploadFromFileHeader(fh)
			if err != nil {
				writeJSONError(w, "Failed to read uploaded file", http.StatusBadRequest)
				return
			}
			openFiles = append(openFiles, file)
			input.Files = append(input.Files, *up)
		}
	} else {
		var req struct {
			MessageType models.MessageType `json:"messageType"`
			Text        string             `json:"text"`
			ReplyTo     *uint              `json:"replyTo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		input.Type = req.MessageType
		input.Text = req.Text
		input.ReplyToID = req.ReplyTo
	}

	message, err := h.MessageService.SendMessage(r.Context(), chatID, userID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// GetMessages returns one page of a chat's history, newest first. Page and
// limit come from query parameters.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	chatID, ok := pathID(r, "chatID")
	if !ok {
		writeJSONError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.MessageService.GetMessagesByChatID(r.Context(), chatID, userID, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// DeleteMessage soft-deletes the caller's own message.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	messageID, ok := pathID(r, "messageID")
	if !ok {
		writeJSONError(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	if err := h.MessageService.DeleteMessage(r.Context(), messageID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}

// ReactToMessage toggles the caller's reaction on a message.
func (h *MessageHandler) ReactToMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	messageID, ok := pathID(r, "messageID")
	if !ok {
		writeJSONError(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Reaction models.ReactionType `json:"reaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	message, err := h.MessageService.ReactToMessage(r.Context(), messageID, userID, req.Reaction)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, message)
}
