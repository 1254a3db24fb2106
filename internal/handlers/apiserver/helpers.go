package apiserver

import (
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"

	"chat-go/internal/apperrors"
	"chat-go/internal/attach"
	"chat-go/internal/storage"
)

// ErrorResponse is the generic shape of API error responses.
type ErrorResponse struct {
	Message string `json:"message"`
}

// writeJSONResponse sends data as a JSON response with the given status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
		}
	}
}

// writeJSONError sends a JSON error response with the given status.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Message: message})
}

// writeServiceError maps a service error to its HTTP status and message.
// Internal errors are logged with their cause and reported generically.
func writeServiceError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	writeJSONError(w, apperrors.UserMessage(err), status)
}

// pathID extracts a numeric path variable from the request.
func pathID(r *http.Request, name string) (uint, bool) {
	id, err := storage.StrToUint(mux.Vars(r)[name])
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// uploadFromFileHeader opens a multipart file as an attachment upload. The
// caller owns the returned closer.
func uploadFromFileHeader(fh *multipart.FileHeader) (*attach.Upload, multipart.File, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &attach.Upload{
		Reader:   file,
		Size:     fh.Size,
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
	}, file, nil
}
