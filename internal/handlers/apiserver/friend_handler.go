package apiserver

import (
	"encoding/json"
	"net/http"

	"chat-go/internal/middleware"
	"chat-go/internal/services"
)

// FriendHandler bundles the friend graph HTTP handlers.
type FriendHandler struct {
	FriendService services.FriendService
}

// NewFriendHandler creates a new FriendHandler instance.
func NewFriendHandler(friendService services.FriendService) *FriendHandler {
	return &FriendHandler{FriendService: friendService}
}

// GetFriends lists the caller's friends.
func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	friends, err := h.FriendService.GetFriends(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// GetPendingRequests lists friend requests awaiting the caller's decision.
func (h *FriendHandler) GetPendingRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	requests, err := h.FriendService.GetPendingRequests(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// AddFriendRequest is the request body for sending a friend request.
type AddFriendRequest struct {
	UserID  uint   `json:"userId"`
	Message string `json:"message"`
}

// AddFriend sends a friend request to another user.
func (h *FriendHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req AddFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	request, err := h.FriendService.AddFriend(r.Context(), userID, req.UserID, req.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, request)
}

// AcceptRequest accepts a pending friend request addressed to the caller.
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	requestID, ok := pathID(r, "requestID")
	if !ok {
		writeJSONError(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	if err := h.FriendService.AcceptFriendRequest(r.Context(), userID, requestID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Friend request accepted"})
}

// DeclineRequest declines a pending friend request addressed to the caller.
func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	requestID, ok := pathID(r, "requestID")
	if !ok {
		writeJSONError(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	if err := h.FriendService.DeclineFriendRequest(r.Context(), userID, requestID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Friend request declined"})
}

// RemoveFriend removes an existing friendship.
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	friendID, ok := pathID(r, "friendID")
	if !ok {
		writeJSONError(w, "Invalid friend ID", http.StatusBadRequest)
		return
	}

	if err := h.FriendService.RemoveFriend(r.Context(), userID, friendID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}
