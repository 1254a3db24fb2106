package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/attach"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

type messageTestEnv struct {
	svc     MessageService
	chats   ChatService
	db      *gorm.DB
	store   *fakeAttachStore
	alice   *models.User
	bob     *models.User
	mallory *models.User
	chat    *models.Chat
}

func newMessageTestEnv(t *testing.T) *messageTestEnv {
	t.Helper()
	db := newTestDB(t)
	store := &fakeAttachStore{}
	chatRepo := storage.NewGormChatRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	userRepo := storage.NewGormUserRepository(db)

	chats := NewChatService(db, chatRepo, userRepo, msgRepo, store, nil)
	svc := NewMessageService(db, msgRepo, chatRepo, store, nil)

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	mallory := createTestUser(t, db, "Mallory Moore", "mallory@example.com")

	chat, err := chats.CreateChat(context.Background(), alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)

	return &messageTestEnv{
		svc: svc, chats: chats, db: db, store: store,
		alice: alice, bob: bob, mallory: mallory, chat: chat,
	}
}

func (e *messageTestEnv) latestMessageID(t *testing.T) *uint {
	t.Helper()
	var chat models.Chat
	require.NoError(t, e.db.First(&chat, e.chat.ID).Error)
	return chat.LatestMessageID
}

func TestSendTextMessage(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, env.alice.ID, msg.Sender.ID)

	latest := env.latestMessageID(t)
	require.NotNil(t, latest)
	assert.Equal(t, msg.ID, *latest)
}

func TestSendMessageValidation(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{Type: "carrier-pigeon"})
	assert.Equal(t, "Invalid message type", apperrors.UserMessage(err))

	_, err = env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{Type: models.TextMessageType})
	assert.Equal(t, "Text is required for text messages", apperrors.UserMessage(err))

	_, err = env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{Type: models.FileMessageType})
	assert.Equal(t, "File is required for file messages", apperrors.UserMessage(err))

	_, err = env.svc.SendMessage(ctx, env.chat.ID, env.mallory.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "let me in",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = env.svc.SendMessage(ctx, 9999, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "hi",
	})
	assert.Equal(t, "Chat not found", apperrors.UserMessage(err))
}

func TestSendImageMessageKeepsAllFiles(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type:  models.ImageMessageType,
		Files: []attach.Upload{testUpload("a.png"), testUpload("b.png"), testUpload("c.png")},
	})
	require.NoError(t, err)

	files, err := msg.GetAttachments()
	require.NoError(t, err)
	require.Len(t, files, 3)
	// Attachment order follows upload order despite concurrent uploads.
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, "b.png", files[1].Name)
	assert.Equal(t, "c.png", files[2].Name)
	assert.Equal(t, 3, env.store.uploads)
}

func TestSendFileMessageKeepsSingleFile(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type:  models.FileMessageType,
		Files: []attach.Upload{testUpload("doc.pdf"), testUpload("ignored.pdf")},
	})
	require.NoError(t, err)

	files, err := msg.GetAttachments()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "doc.pdf", files[0].Name)
}

func TestSendMessageReply(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	original, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "original",
	})
	require.NoError(t, err)

	reply, err := env.svc.SendMessage(ctx, env.chat.ID, env.bob.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "a reply", ReplyToID: &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, original.ID, *reply.ReplyToID)

	bogus := uint(9999)
	_, err = env.svc.SendMessage(ctx, env.chat.ID, env.bob.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "bad reply", ReplyToID: &bogus,
	})
	assert.Equal(t, "Message not found", apperrors.UserMessage(err))
}

func TestGetMessagesPagination(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
			Type: models.TextMessageType, Text: "message",
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	page, err := env.svc.GetMessagesByChatID(ctx, env.chat.ID, env.bob.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 10)
	assert.Equal(t, int64(25), page.TotalMessages)
	assert.Equal(t, 3, page.TotalPages)

	// Newest first: the first page starts with the latest message.
	latest := env.latestMessageID(t)
	require.NotNil(t, latest)
	assert.Equal(t, *latest, page.Messages[0].ID)

	last, err := env.svc.GetMessagesByChatID(ctx, env.chat.ID, env.bob.ID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Messages, 5)

	// Defaults are applied for out-of-range parameters.
	page, err = env.svc.GetMessagesByChatID(ctx, env.chat.ID, env.bob.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultMessagePageSize, page.Limit)

	_, err = env.svc.GetMessagesByChatID(ctx, env.chat.ID, env.mallory.ID, 1, 10)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestDeleteMessage(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "first",
	})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "second",
	})
	require.NoError(t, err)

	// Only the sender may delete.
	err = env.svc.DeleteMessage(ctx, first.ID, env.bob.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// Deleting any message clears the chat's latest pointer, it is not
	// rewound to the remaining newest message.
	require.NoError(t, env.svc.DeleteMessage(ctx, first.ID, env.alice.ID))
	assert.Nil(t, env.latestMessageID(t))

	// The row survives in listings, flagged deleted with its content
	// retained. Clients decide how to render it.
	page, err := env.svc.GetMessagesByChatID(ctx, env.chat.ID, env.alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, second.ID, page.Messages[0].ID)
	deleted := page.Messages[1]
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, "first", deleted.Text)

	// A deleted message cannot be deleted again.
	err = env.svc.DeleteMessage(ctx, first.ID, env.alice.ID)
	assert.Equal(t, "Message not found", apperrors.UserMessage(err))
}

func TestReactionToggle(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, env.chat.ID, env.alice.ID, SendMessageInput{
		Type: models.TextMessageType, Text: "react to me",
	})
	require.NoError(t, err)

	_, err = env.svc.ReactToMessage(ctx, msg.ID, env.bob.ID, "meh")
	assert.Equal(t, "Invalid reaction type", apperrors.UserMessage(err))

	_, err = env.svc.ReactToMessage(ctx, msg.ID, env.mallory.ID, models.LikeReaction)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// First reaction adds.
	updated, err := env.svc.ReactToMessage(ctx, msg.ID, env.bob.ID, models.LikeReaction)
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, models.LikeReaction, updated.Reactions[0].Type)

	// A different emotion replaces in place, never a second row.
	updated, err = env.svc.ReactToMessage(ctx, msg.ID, env.bob.ID, models.LoveReaction)
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, models.LoveReaction, updated.Reactions[0].Type)

	// Both users may react independently.
	updated, err = env.svc.ReactToMessage(ctx, msg.ID, env.alice.ID, models.HahaReaction)
	require.NoError(t, err)
	assert.Len(t, updated.Reactions, 2)

	// Repeating the current emotion removes the reaction.
	updated, err = env.svc.ReactToMessage(ctx, msg.ID, env.bob.ID, models.LoveReaction)
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, env.alice.ID, updated.Reactions[0].UserID)
}
