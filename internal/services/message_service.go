package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/attach"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

const defaultMessagePageSize = 20

// SendMessageInput carries the parameters for sending a message. Text is
// required for text messages; Files are required for every other type.
// Image messages keep all uploaded files, the remaining types keep one.
type SendMessageInput struct {
	Type      models.MessageType
	Text      string
	ReplyToID *uint
	Files     []attach.Upload
}

// MessagePage is one page of a chat's history, newest first.
type MessagePage struct {
	Messages      []*models.Message `json:"messages"`
	Page          int               `json:"page"`
	Limit         int               `json:"limit"`
	TotalMessages int64             `json:"totalMessages"`
	TotalPages    int               `json:"totalPages"`
}

// MessageService defines the interface for message operations.
type MessageService interface {
	SendMessage(ctx context.Context, chatID, senderID uint, input SendMessageInput) (*models.Message, error)
	GetMessagesByChatID(ctx context.Context, chatID, requesterID uint, page, limit int) (*MessagePage, error)
	DeleteMessage(ctx context.Context, messageID, requesterID uint) error
	ReactToMessage(ctx context.Context, messageID, userID uint, reaction models.ReactionType) (*models.Message, error)
}

type messageService struct {
	db       *gorm.DB
	msgRepo  storage.MessageRepository
	chatRepo storage.ChatRepository
	store    attach.Store
	notifier *Notifier
}

// NewMessageService creates a new MessageService instance.
func NewMessageService(
	db *gorm.DB,
	msgRepo storage.MessageRepository,
	chatRepo storage.ChatRepository,
	store attach.Store,
	notifier *Notifier,
) MessageService {
	return &messageService{
		db:       db,
		msgRepo:  msgRepo,
		chatRepo: chatRepo,
		store:    store,
		notifier: notifier,
	}
}

// SendMessage validates and persists a message in the chat, uploading any
// attachments first, and advances the chat's latest-message pointer.
func (s *messageService) SendMessage(ctx context.Context, chatID, senderID uint, input SendMessageInput) (*models.Message, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Chat not found")
		}
		return nil, apperrors.Internal("Failed to fetch chat", err)
	}
	if !chat.HasMember(senderID) {
		return nil, apperrors.Forbidden("Unauthorized")
	}

	if !models.ValidMessageType(input.Type) {
		return nil, apperrors.Validation("Invalid message type")
	}
	if input.Type == models.TextMessageType && input.Text == "" {
		return nil, apperrors.Validation("Text is required for text messages")
	}
	if input.Type != models.TextMessageType && len(input.Files) == 0 {
		return nil, apperrors.Validation("File is required for file messages")
	}

	if input.ReplyToID != nil {
		replied, err := s.msgRepo.GetByID(ctx, *input.ReplyToID)
		if err != nil || replied.ChatID != chatID {
			return nil, apperrors.NotFound("Message not found")
		}
	}

	message := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      input.Type,
		Text:      input.Text,
		ReplyToID: input.ReplyToID,
	}

	if input.Type != models.TextMessageType {
		files := input.Files
		if input.Type != models.ImageMessageType {
			// Only image messages carry multiple attachments.
			files = files[:1]
		}
		uploaded, err := s.uploadAll(ctx, files)
		if err != nil {
			return nil, err
		}
		if err := message.SetAttachments(uploaded); err != nil {
			return nil, apperrors.Internal("Failed to encode attachments", err)
		}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMsgRepo := storage.NewGormMessageRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		if err := txMsgRepo.Create(ctx, message); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		if err := txChatRepo.SetLatestMessage(ctx, chatID, &message.ID); err != nil {
			return fmt.Errorf("failed to update latest message: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, apperrors.Internal("Failed to send message", txErr)
	}

	created, err := s.msgRepo.GetByID(ctx, message.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load created message", err)
	}

	targets := make([]uint, 0, len(chat.Members))
	for _, m := range chat.Members {
		if m.ID != senderID {
			targets = append(targets, m.ID)
		}
	}
	s.notifier.Publish("message.created", senderID, targets, map[string]uint{"chatId": chatID, "messageId": created.ID})
	return created, nil
}

// uploadAll stores every file concurrently, keeping results in input order.
func (s *messageService) uploadAll(ctx context.Context, files []attach.Upload) ([]attach.Attachment, error) {
	uploaded := make([]attach.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file // per-iteration copies; required while building with pre-1.22 loop semantics
		g.Go(func() error {
			att, err := s.store.Upload(gctx, file)
			if err != nil {
				return err
			}
			uploaded[i] = *att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("Failed to upload attachments", err)
	}
	return uploaded, nil
}

// GetMessagesByChatID returns one page of the chat's history, newest first.
// Soft-deleted messages keep their place in the sequence with their stored
// content; presentation of deleted messages is left to the client.
func (s *messageService) GetMessagesByChatID(ctx context.Context, chatID, requesterID uint, page, limit int) (*MessagePage, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Chat not found")
		}
		return nil, apperrors.Internal("Failed to fetch chat", err)
	}
	if !chat.HasMember(requesterID) {
		return nil, apperrors.Forbidden("Unauthorized")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultMessagePageSize
	}
	offset := (page - 1) * limit

	messages, err := s.msgRepo.GetByChatID(ctx, chatID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch messages", err)
	}
	total, err := s.msgRepo.CountByChatID(ctx, chatID)
	if err != nil {
		return nil, apperrors.Internal("Failed to count messages", err)
	}

	return &MessagePage{
		Messages:      messages,
		Page:          page,
		Limit:         limit,
		TotalMessages: total,
		TotalPages:    int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// DeleteMessage soft-deletes a message. Only the sender may delete it. The
// chat's latest-message pointer is cleared rather than rewound to the
// previous message, so list previews go blank until the next send.
func (s *messageService) DeleteMessage(ctx context.Context, messageID, requesterID uint) error {
	message, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Message not found")
		}
		return apperrors.Internal("Failed to fetch message", err)
	}
	if message.SenderID != requesterID {
		return apperrors.Forbidden("Unauthorized")
	}
	if message.IsDeleted {
		return apperrors.NotFound("Message not found")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMsgRepo := storage.NewGormMessageRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		if err := txMsgRepo.MarkDeleted(ctx, messageID); err != nil {
			return fmt.Errorf("failed to mark message deleted: %w", err)
		}
		if err := txChatRepo.SetLatestMessage(ctx, message.ChatID, nil); err != nil {
			return fmt.Errorf("failed to clear latest message: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return apperrors.Internal("Failed to delete message", txErr)
	}

	log.Printf("Message %d deleted by user %d", messageID, requesterID)
	return nil
}

// ReactToMessage toggles the user's reaction on a message: reacting with a
// new emotion adds or replaces the user's reaction, repeating the current
// emotion removes it. A user holds at most one reaction per message.
func (s *messageService) ReactToMessage(ctx context.Context, messageID, userID uint, reaction models.ReactionType) (*models.Message, error) {
	switch reaction {
	case models.LikeReaction, models.LoveReaction, models.HahaReaction,
		models.WowReaction, models.SadReaction, models.AngryReaction:
	default:
		return nil, apperrors.Validation("Invalid reaction type")
	}

	message, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Message not found")
		}
		return nil, apperrors.Internal("Failed to fetch message", err)
	}
	if message.IsDeleted {
		return nil, apperrors.NotFound("Message not found")
	}

	isMember, err := s.chatRepo.IsMember(ctx, message.ChatID, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check membership", err)
	}
	if !isMember {
		return nil, apperrors.Forbidden("Unauthorized")
	}

	existing, err := s.msgRepo.GetReaction(ctx, messageID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("Failed to fetch reaction", err)
	}

	switch {
	case existing == nil:
		err = s.msgRepo.CreateReaction(ctx, &models.MessageReaction{
			MessageID: messageID,
			UserID:    userID,
			Type:      reaction,
		})
	case existing.Type == reaction:
		err = s.msgRepo.DeleteReaction(ctx, messageID, userID)
	default:
		existing.Type = reaction
		err = s.msgRepo.UpdateReaction(ctx, existing)
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to update reaction", err)
	}

	return s.msgRepo.GetByID(ctx, messageID)
}

