package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/attach"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

// groupNameBudget caps the length of an auto-derived group name.
const groupNameBudget = 40

// CreateChatInput carries the parameters for chat creation. MemberIDs lists
// the other participants; the creator is always included implicitly.
type CreateChatInput struct {
	IsGroup   bool
	GroupName string
	MemberIDs []uint
}

// ChatUpdate carries the optional fields of a group chat update. Zero-valued
// fields are left unchanged; MemberIDs, when non-nil, replaces the full
// member set (the list is of the other participants, the requester stays).
// GroupAdminID transfers admin rights and may only be set by the current
// admin.
type ChatUpdate struct {
	GroupName    string
	Avatar       *attach.Upload
	MemberIDs    []uint
	GroupAdminID *uint
}

// ChatService defines the interface for chat lifecycle operations.
type ChatService interface {
	CreateChat(ctx context.Context, creatorID uint, input CreateChatInput) (*models.Chat, error)
	GetChatByID(ctx context.Context, chatID, requesterID uint) (*models.Chat, error)
	GetUserChats(ctx context.Context, userID uint) ([]*models.Chat, error)
	UpdateChat(ctx context.Context, chatID, requesterID uint, update ChatUpdate) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID, requesterID uint) error
	LeaveChat(ctx context.Context, chatID, userID uint, newAdminID *uint) error
}

type chatService struct {
	db       *gorm.DB
	chatRepo storage.ChatRepository
	userRepo storage.UserRepository
	msgRepo  storage.MessageRepository
	store    attach.Store
	notifier *Notifier
}

// NewChatService creates a new ChatService instance.
func NewChatService(
	db *gorm.DB,
	chatRepo storage.ChatRepository,
	userRepo storage.UserRepository,
	msgRepo storage.MessageRepository,
	store attach.Store,
	notifier *Notifier,
) ChatService {
	return &chatService{
		db:       db,
		chatRepo: chatRepo,
		userRepo: userRepo,
		msgRepo:  msgRepo,
		store:    store,
		notifier: notifier,
	}
}

// CreateChat creates a private or group chat. Private chats hold exactly two
// members and at most one chat exists per user pair. Group chats need at
// least three members; the creator becomes admin, and a missing group name
// is derived from the member names.
func (s *chatService) CreateChat(ctx context.Context, creatorID uint, input CreateChatInput) (*models.Chat, error) {
	otherIDs := dedupeIDs(input.MemberIDs, creatorID)
	if len(otherIDs) == 0 {
		return nil, apperrors.Validation("Members are required")
	}

	if !input.IsGroup && len(otherIDs) != 1 {
		return nil, apperrors.Validation("Private chat must have exactly 2 members")
	}
	if input.IsGroup && len(otherIDs) < 2 {
		return nil, apperrors.Validation("Group chat must have at least 3 members")
	}

	count, err := s.userRepo.CountByIDs(ctx, otherIDs)
	if err != nil {
		return nil, apperrors.Internal("Failed to verify members", err)
	}
	if count != int64(len(otherIDs)) {
		return nil, apperrors.NotFound("User not found")
	}

	chat := &models.Chat{IsGroup: input.IsGroup}
	memberIDs := append([]uint{creatorID}, otherIDs...)

	if input.IsGroup {
		chat.GroupAdminID = &creatorID
		chat.GroupName = strings.TrimSpace(input.GroupName)
		if chat.GroupName == "" {
			name, err := s.deriveGroupName(ctx, append(append([]uint{}, otherIDs...), creatorID))
			if err != nil {
				return nil, err
			}
			chat.GroupName = name
		}
	} else {
		existing, err := s.chatRepo.FindPrivateChatByUsers(ctx, creatorID, otherIDs[0])
		if err != nil {
			return nil, apperrors.Internal("Failed to check for existing chat", err)
		}
		if existing != nil {
			return nil, apperrors.Conflict("Chat already exists")
		}
	}

	if err := s.chatRepo.CreateChat(ctx, chat, memberIDs); err != nil {
		return nil, apperrors.Internal("Failed to create chat", err)
	}

	created, err := s.chatRepo.GetChatByID(ctx, chat.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load created chat", err)
	}

	s.notifier.Publish("chat.created", creatorID, otherIDs, map[string]uint{"chatId": created.ID})
	log.Printf("Chat %d created by user %d (group=%v, members=%d)", created.ID, creatorID, created.IsGroup, len(memberIDs))
	return created, nil
}

// GetChatByID returns the chat with its members. Only members may view it.
func (s *chatService) GetChatByID(ctx context.Context, chatID, requesterID uint) (*models.Chat, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(requesterID) {
		return nil, apperrors.Forbidden("Unauthorized")
	}
	return chat, nil
}

// GetUserChats lists all chats the user belongs to, most recently active
// first, with members and the latest message preloaded for previews.
func (s *chatService) GetUserChats(ctx context.Context, userID uint) ([]*models.Chat, error) {
	chats, err := s.chatRepo.GetUserChats(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch chats", err)
	}
	return chats, nil
}

// UpdateChat updates a group chat's name, avatar, member set or admin.
// Private chats are immutable. Any member may update the group, except the
// admin transfer which is reserved for the current admin.
func (s *chatService) UpdateChat(ctx context.Context, chatID, requesterID uint, update ChatUpdate) (*models.Chat, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(requesterID) {
		return nil, apperrors.Forbidden("Unauthorized")
	}
	if !chat.IsGroup {
		return nil, apperrors.Validation("Private chat cannot be updated")
	}
	if update.GroupAdminID != nil {
		if !chat.IsAdmin(requesterID) {
			return nil, apperrors.Forbidden("Only group admin can update")
		}
		if !chat.HasMember(*update.GroupAdminID) {
			return nil, apperrors.Validation("New admin must be a member of the group")
		}
		chat.GroupAdminID = update.GroupAdminID
	}

	if update.MemberIDs != nil {
		otherIDs := dedupeIDs(update.MemberIDs, requesterID)
		if len(otherIDs) < 2 {
			return nil, apperrors.Validation("Group chat must have at least 3 members")
		}
		count, err := s.userRepo.CountByIDs(ctx, otherIDs)
		if err != nil {
			return nil, apperrors.Internal("Failed to verify members", err)
		}
		if count != int64(len(otherIDs)) {
			return nil, apperrors.NotFound("User not found")
		}
		memberIDs := append([]uint{requesterID}, otherIDs...)
		if err := s.chatRepo.ReplaceMembers(ctx, chatID, memberIDs); err != nil {
			return nil, apperrors.Internal("Failed to update members", err)
		}
	}

	if name := strings.TrimSpace(update.GroupName); name != "" {
		chat.GroupName = name
	}

	oldAvatarPublicID := ""
	if update.Avatar != nil {
		uploaded, err := s.store.Upload(ctx, *update.Avatar)
		if err != nil {
			return nil, apperrors.Internal("Failed to upload group avatar", err)
		}
		oldAvatarPublicID = chat.GroupAvatarPublicID
		chat.GroupAvatarURL = uploaded.URL
		chat.GroupAvatarPublicID = uploaded.PublicID
	}

	if err := s.chatRepo.UpdateChat(ctx, chat); err != nil {
		return nil, apperrors.Internal("Failed to update chat", err)
	}

	if oldAvatarPublicID != "" {
		if err := s.store.Destroy(ctx, oldAvatarPublicID); err != nil {
			log.Printf("Failed to destroy previous group avatar %s for chat %d: %v", oldAvatarPublicID, chatID, err)
		}
	}

	return s.loadChat(ctx, chatID)
}

// DeleteChat removes a group chat: its messages are soft-deleted in bulk,
// the membership rows and the chat row are removed, and the group avatar is
// destroyed best-effort after the transaction commits.
func (s *chatService) DeleteChat(ctx context.Context, chatID, requesterID uint) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(requesterID) {
		return apperrors.Forbidden("Unauthorized")
	}
	if !chat.IsGroup {
		return apperrors.Validation("Cannot delete private chat")
	}
	if !chat.IsAdmin(requesterID) {
		return apperrors.Forbidden("Only admin can delete group")
	}

	memberIDs, err := s.chatRepo.GetMemberIDs(ctx, chatID)
	if err != nil {
		return apperrors.Internal("Failed to load members", err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMsgRepo := storage.NewGormMessageRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		if err := txMsgRepo.MarkChatDeleted(ctx, chatID); err != nil {
			return fmt.Errorf("failed to soft-delete chat messages: %w", err)
		}
		if err := txChatRepo.DeleteChat(ctx, chatID); err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return apperrors.Internal("Failed to delete chat", txErr)
	}

	if chat.GroupAvatarPublicID != "" {
		if err := s.store.Destroy(ctx, chat.GroupAvatarPublicID); err != nil {
			log.Printf("Failed to destroy group avatar %s for deleted chat %d: %v", chat.GroupAvatarPublicID, chatID, err)
		}
	}

	s.notifier.Publish("chat.deleted", requesterID, memberIDs, map[string]uint{"chatId": chatID})
	log.Printf("Chat %d deleted by admin %d", chatID, requesterID)
	return nil
}

// LeaveChat removes the user from a group chat. A leaving admin must appoint
// a new admin from the remaining members first. When the last member leaves,
// the chat is deleted with the same cascade as DeleteChat.
func (s *chatService) LeaveChat(ctx context.Context, chatID, userID uint, newAdminID *uint) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return apperrors.Validation("Cannot leave private chat")
	}
	if !chat.HasMember(userID) {
		return apperrors.Forbidden("You are not a member of this group")
	}

	lastMember := len(chat.Members) == 1

	if chat.IsAdmin(userID) && !lastMember {
		if newAdminID == nil {
			return apperrors.Validation("Please appoint a new admin before leaving")
		}
		if *newAdminID == userID || !chat.HasMember(*newAdminID) {
			return apperrors.Validation("New admin must be a member of the group")
		}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txChatRepo := storage.NewGormChatRepository(tx)

		if lastMember {
			txMsgRepo := storage.NewGormMessageRepository(tx)
			if err := txMsgRepo.MarkChatDeleted(ctx, chatID); err != nil {
				return fmt.Errorf("failed to soft-delete chat messages: %w", err)
			}
			if err := txChatRepo.DeleteChat(ctx, chatID); err != nil {
				return fmt.Errorf("failed to delete empty chat: %w", err)
			}
			return nil
		}

		if chat.IsAdmin(userID) {
			chat.GroupAdminID = newAdminID
			if err := txChatRepo.UpdateChat(ctx, chat); err != nil {
				return fmt.Errorf("failed to appoint new admin: %w", err)
			}
		}
		if err := txChatRepo.RemoveMember(ctx, chatID, userID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return apperrors.Internal("Failed to leave chat", txErr)
	}

	if lastMember {
		if chat.GroupAvatarPublicID != "" {
			if err := s.store.Destroy(ctx, chat.GroupAvatarPublicID); err != nil {
				log.Printf("Failed to destroy group avatar %s for deleted chat %d: %v", chat.GroupAvatarPublicID, chatID, err)
			}
		}
		log.Printf("Chat %d deleted after last member %d left", chatID, userID)
		return nil
	}

	log.Printf("User %d left chat %d", userID, chatID)
	return nil
}

// loadChat fetches a chat with members, mapping missing rows to a NotFound.
func (s *chatService) loadChat(ctx context.Context, chatID uint) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Chat not found")
		}
		return nil, apperrors.Internal("Failed to fetch chat", err)
	}
	return chat, nil
}

// deriveGroupName builds a default group name from the members' last names
// in the order they were given, keeping as many as fit the budget and
// summarizing the rest as a count.
func (s *chatService) deriveGroupName(ctx context.Context, memberIDs []uint) (string, error) {
	infos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, memberIDs)
	if err != nil {
		return "", apperrors.Internal("Failed to load member names", err)
	}

	byID := make(map[uint]*models.UserBasicInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	names := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		info, ok := byID[id]
		if !ok {
			continue
		}
		parts := strings.Fields(info.FullName)
		if len(parts) == 0 {
			continue
		}
		names = append(names, parts[len(parts)-1])
	}

	joined := strings.Join(names, ", ")
	if len(joined) <= groupNameBudget {
		return joined, nil
	}

	// Keep a prefix of names within the budget, count the rest.
	for keep := len(names) - 1; keep > 0; keep-- {
		candidate := fmt.Sprintf("%s +%d more", strings.Join(names[:keep], ", "), len(names)-keep)
		if len(candidate) <= groupNameBudget {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%d members", len(names)), nil
}

// dedupeIDs removes duplicates and the excluded ID, preserving order.
func dedupeIDs(ids []uint, exclude uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == exclude || id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
