package storage

import (
	"context"

	"gorm.io/gorm"

	"chat-go/internal/models"
)

// MessageRepository defines the interface for message data operations.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// GetByChatID retrieves the chat's messages newest-first with the given
	// pagination window, sender and reply references resolved.
	GetByChatID(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error)
	CountByChatID(ctx context.Context, chatID uint) (int64, error)
	// MarkDeleted soft-deletes a single message.
	MarkDeleted(ctx context.Context, id uint) error
	// MarkChatDeleted bulk soft-deletes every message of a chat, used by the
	// chat deletion cascade.
	MarkChatDeleted(ctx context.Context, chatID uint) error

	GetReaction(ctx context.Context, messageID, userID uint) (*models.MessageReaction, error)
	CreateReaction(ctx context.Context, reaction *models.MessageReaction) error
	UpdateReaction(ctx context.Context, reaction *models.MessageReaction) error
	DeleteReaction(ctx context.Context, messageID, userID uint) error
	GetReactions(ctx context.Context, messageID uint) ([]models.MessageReaction, error)
}

// gormMessageRepository implements MessageRepository using GORM.
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based MessageRepository.
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create inserts a new message record.
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID retrieves a message with its sender resolved.
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Preload("Sender").Preload("Reactions").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *gormMessageRepository) GetByChatID(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Preload("Sender").
		Preload("ReplyTo.Sender").
		Preload("Reactions")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *gormMessageRepository) CountByChatID(ctx context.Context, chatID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error
	return count, err
}

func (r *gormMessageRepository) MarkDeleted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}

func (r *gormMessageRepository) MarkChatDeleted(ctx context.Context, chatID uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chatID).
		Update("is_deleted", true).Error
}

func (r *gormMessageRepository) GetReaction(ctx context.Context, messageID, userID uint) (*models.MessageReaction, error) {
	var reaction models.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *gormMessageRepository) CreateReaction(ctx context.Context, reaction *models.MessageReaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *gormMessageRepository) UpdateReaction(ctx context.Context, reaction *models.MessageReaction) error {
	return r.db.WithContext(ctx).Save(reaction).Error
}

func (r *gormMessageRepository) DeleteReaction(ctx context.Context, messageID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&models.MessageReaction{}).Error
}

func (r *gormMessageRepository) GetReactions(ctx context.Context, messageID uint) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&reactions).Error
	return reactions, err
}
