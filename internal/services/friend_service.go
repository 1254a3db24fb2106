package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

// FriendService defines the interface for the friend graph and the friend
// request lifecycle.
type FriendService interface {
	GetFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	GetPendingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithSender, error)
	AddFriend(ctx context.Context, senderID, receiverID uint, requestMessage string) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, receiverID, requestID uint) error
	DeclineFriendRequest(ctx context.Context, receiverID, requestID uint) error
	RemoveFriend(ctx context.Context, userID, friendID uint) error
}

type friendService struct {
	db             *gorm.DB
	userRepo       storage.UserRepository
	requestRepo    storage.FriendRequestRepository
	friendshipRepo storage.FriendshipRepository
	chatRepo       storage.ChatRepository
	notifier       *Notifier
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	requestRepo storage.FriendRequestRepository,
	friendshipRepo storage.FriendshipRepository,
	chatRepo storage.ChatRepository,
	notifier *Notifier,
) FriendService {
	return &friendService{
		db:             db,
		userRepo:       userRepo,
		requestRepo:    requestRepo,
		friendshipRepo: friendshipRepo,
		chatRepo:       chatRepo,
		notifier:       notifier,
	}
}

// GetFriends lists the basic info of all the user's friends.
func (s *friendService) GetFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch friends", err)
	}
	if len(friendIDs) == 0 {
		return []*models.UserBasicInfo{}, nil
	}
	friends, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, friendIDs)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch friend info", err)
	}
	return friends, nil
}

// GetPendingRequests lists the requests awaiting the user's decision,
// enriched with sender info.
func (s *friendService) GetPendingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithSender, error) {
	requests, err := s.requestRepo.GetPendingRequestsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch pending requests", err)
	}

	result := make([]*models.FriendRequestWithSender, 0, len(requests))
	for _, req := range requests {
		sender, err := s.userRepo.GetBasicInfoByID(ctx, req.SenderID)
		if err != nil {
			log.Printf("Failed to fetch sender %d for friend request %d: %v", req.SenderID, req.ID, err)
			continue
		}
		result = append(result, &models.FriendRequestWithSender{
			FriendRequest: req,
			Sender:        sender,
		})
	}
	return result, nil
}

// AddFriend creates a pending friend request from sender to receiver. At
// most one pending request may exist per direction.
func (s *friendService) AddFriend(ctx context.Context, senderID, receiverID uint, requestMessage string) (*models.FriendRequest, error) {
	if receiverID == 0 {
		return nil, apperrors.Validation("Receiver ID is required")
	}
	if senderID == receiverID {
		return nil, apperrors.Validation("Cannot add yourself as a friend")
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to fetch user", err)
	}

	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check friendship", err)
	}
	if areFriends {
		return nil, apperrors.Conflict("Already friends")
	}

	existing, err := s.requestRepo.FindPendingRequest(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing request", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("Friend request already sent")
	}

	request := &models.FriendRequest{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Status:         models.FriendRequestStatusPending,
		RequestMessage: requestMessage,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, apperrors.Internal("Failed to create friend request", err)
	}

	s.notifier.Publish("friend_request.created", senderID, []uint{receiverID}, map[string]uint{"requestId": request.ID})
	log.Printf("Friend request %d created: %d -> %d", request.ID, senderID, receiverID)
	return request, nil
}

// AcceptFriendRequest marks the request accepted, creates the friendship
// edge and provisions the private chat between the two users if one does
// not already exist. Only the receiver of a pending request may accept.
func (s *friendService) AcceptFriendRequest(ctx context.Context, receiverID, requestID uint) error {
	request, err := s.getActionableRequest(ctx, receiverID, requestID)
	if err != nil {
		return err
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRequestRepo := storage.NewGormFriendRequestRepository(tx)
		txFriendshipRepo := storage.NewGormFriendshipRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		if err := txRequestRepo.UpdateRequestStatus(ctx, requestID, models.FriendRequestStatusAccepted); err != nil {
			return fmt.Errorf("failed to update request status: %w", err)
		}

		friendship := &models.Friendship{UserID1: request.SenderID, UserID2: request.ReceiverID}
		friendship.EnsureCanonicalOrder()
		if err := txFriendshipRepo.Create(ctx, friendship); err != nil {
			return fmt.Errorf("failed to create friendship: %w", err)
		}

		existing, err := txChatRepo.FindPrivateChatByUsers(ctx, request.SenderID, request.ReceiverID)
		if err != nil {
			return fmt.Errorf("failed to check for private chat: %w", err)
		}
		if existing == nil {
			chat := &models.Chat{IsGroup: false}
			if err := txChatRepo.CreateChat(ctx, chat, []uint{request.SenderID, request.ReceiverID}); err != nil {
				return fmt.Errorf("failed to provision private chat: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return apperrors.Internal("Failed to accept friend request", txErr)
	}

	s.notifier.Publish("friend_request.accepted", receiverID, []uint{request.SenderID}, map[string]uint{"requestId": requestID})
	log.Printf("Friend request %d accepted by user %d", requestID, receiverID)
	return nil
}

// DeclineFriendRequest marks the request declined. Only the receiver of a
// pending request may decline.
func (s *friendService) DeclineFriendRequest(ctx context.Context, receiverID, requestID uint) error {
	if _, err := s.getActionableRequest(ctx, receiverID, requestID); err != nil {
		return err
	}
	if err := s.requestRepo.UpdateRequestStatus(ctx, requestID, models.FriendRequestStatusDeclined); err != nil {
		return apperrors.Internal("Failed to decline friend request", err)
	}
	log.Printf("Friend request %d declined by user %d", requestID, receiverID)
	return nil
}

// RemoveFriend deletes the friendship edge between the two users. The
// private chat, if any, is kept.
func (s *friendService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	if _, err := s.userRepo.GetByID(ctx, friendID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Friend not found")
		}
		return apperrors.Internal("Failed to fetch user", err)
	}

	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, userID, friendID)
	if err != nil {
		return apperrors.Internal("Failed to check friendship", err)
	}
	if !areFriends {
		return apperrors.Validation("Not friends")
	}

	if err := s.friendshipRepo.Delete(ctx, userID, friendID); err != nil {
		return apperrors.Internal("Failed to remove friend", err)
	}
	log.Printf("Friendship removed between %d and %d", userID, friendID)
	return nil
}

// getActionableRequest loads the request and verifies the caller may act on
// it: the caller must be the receiver and the request still pending.
func (s *friendService) getActionableRequest(ctx context.Context, receiverID, requestID uint) (*models.FriendRequest, error) {
	request, err := s.requestRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Friend request not found")
		}
		return nil, apperrors.Internal("Failed to fetch friend request", err)
	}
	if request.ReceiverID != receiverID {
		return nil, apperrors.Forbidden("Unauthorized")
	}
	if request.Status != models.FriendRequestStatusPending {
		return nil, apperrors.Validation("Friend request already handled")
	}
	return request, nil
}
