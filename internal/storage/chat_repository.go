package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chat-go/internal/models"
)

// ChatRepository defines the interface for chat data operations.
type ChatRepository interface {
	// CreateChat persists the chat and its membership rows.
	CreateChat(ctx context.Context, chat *models.Chat, memberIDs []uint) error
	// GetChatByID retrieves a chat with its members resolved.
	GetChatByID(ctx context.Context, id uint) (*models.Chat, error)
	// GetUserChats lists the chats the user belongs to, newest-updated first,
	// with members and the latest message resolved.
	GetUserChats(ctx context.Context, userID uint) ([]*models.Chat, error)
	UpdateChat(ctx context.Context, chat *models.Chat) error
	// DeleteChat removes the chat row and its membership rows. Messages are
	// left to the caller, which bulk soft-deletes them in the same
	// transaction.
	DeleteChat(ctx context.Context, id uint) error
	// FindPrivateChatByUsers looks up the private chat whose member set is
	// exactly {userID1, userID2}. Returns nil when none exists.
	FindPrivateChatByUsers(ctx context.Context, userID1, userID2 uint) (*models.Chat, error)
	AddMember(ctx context.Context, chatID, userID uint) error
	RemoveMember(ctx context.Context, chatID, userID uint) error
	// ReplaceMembers makes the membership set exactly memberIDs.
	ReplaceMembers(ctx context.Context, chatID uint, memberIDs []uint) error
	GetMemberIDs(ctx context.Context, chatID uint) ([]uint, error)
	IsMember(ctx context.Context, chatID, userID uint) (bool, error)
	// SetLatestMessage sets or clears the chat's latest-message pointer.
	SetLatestMessage(ctx context.Context, chatID uint, messageID *uint) error
	// GetDB returns the underlying database handle, used for transaction scoping.
	GetDB() *gorm.DB
}

// gormChatRepository implements ChatRepository using GORM.
type gormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based ChatRepository.
func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) CreateChat(ctx context.Context, chat *models.Chat, memberIDs []uint) error {
	if err := r.db.WithContext(ctx).Omit("Members").Create(chat).Error; err != nil {
		return err
	}
	now := time.Now()
	for _, userID := range memberIDs {
		member := &models.ChatMember{ChatID: chat.ID, UserID: userID, JoinedAt: now}
		if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *gormChatRepository) GetChatByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).Preload("Members").First(&chat, id).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *gormChatRepository) GetUserChats(ctx context.Context, userID uint) ([]*models.Chat, error) {
	var chats []*models.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members cm ON cm.chat_id = chats.id").
		Where("cm.user_id = ?", userID).
		Order("chats.updated_at DESC").
		Preload("Members").
		Preload("LatestMessage").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *gormChatRepository) UpdateChat(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Omit("Members", "LatestMessage").Save(chat).Error
}

func (r *gormChatRepository) DeleteChat(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", id).Delete(&models.ChatMember{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Chat{}, id).Error
}

// FindPrivateChatByUsers finds a chat c with is_group = false that has a
// membership row for each of the two users. Private chats always hold exactly
// two members, so matching both is an exact member-set match.
func (r *gormChatRepository) FindPrivateChatByUsers(ctx context.Context, userID1, userID2 uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Table("chats AS c").
		Select("c.*").
		Joins("JOIN chat_members AS cm1 ON c.id = cm1.chat_id AND cm1.user_id = ?", userID1).
		Joins("JOIN chat_members AS cm2 ON c.id = cm2.chat_id AND cm2.user_id = ?", userID2).
		Where("c.is_group = ?", false).
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

func (r *gormChatRepository) AddMember(ctx context.Context, chatID, userID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		// Already a member; membership is a set.
		return nil
	}
	member := &models.ChatMember{ChatID: chatID, UserID: userID, JoinedAt: time.Now()}
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *gormChatRepository) RemoveMember(ctx context.Context, chatID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&models.ChatMember{}).Error
}

func (r *gormChatRepository) ReplaceMembers(ctx context.Context, chatID uint, memberIDs []uint) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.ChatMember{}).Error; err != nil {
		return err
	}
	now := time.Now()
	for _, userID := range memberIDs {
		member := &models.ChatMember{ChatID: chatID, UserID: userID, JoinedAt: now}
		if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *gormChatRepository) GetMemberIDs(ctx context.Context, chatID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ?", chatID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *gormChatRepository) IsMember(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormChatRepository) SetLatestMessage(ctx context.Context, chatID uint, messageID *uint) error {
	return r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("latest_message_id", messageID).Error
}

func (r *gormChatRepository) GetDB() *gorm.DB {
	return r.db
}
