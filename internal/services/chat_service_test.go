package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-go/internal/apperrors"
	"chat-go/internal/models"
	"chat-go/internal/storage"
)

func newChatService(t *testing.T) (ChatService, *gorm.DB, *fakeAttachStore) {
	t.Helper()
	db := newTestDB(t)
	store := &fakeAttachStore{}
	svc := NewChatService(
		db,
		storage.NewGormChatRepository(db),
		storage.NewGormUserRepository(db),
		storage.NewGormMessageRepository(db),
		store,
		nil,
	)
	return svc, db, store
}

func TestCreatePrivateChat(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")

	chat, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)
	assert.False(t, chat.IsGroup)
	assert.Nil(t, chat.GroupAdminID)
	assert.Len(t, chat.Members, 2)

	// A second private chat for the same pair is rejected, in either order.
	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	assert.Equal(t, "Chat already exists", apperrors.UserMessage(err))

	_, err = svc.CreateChat(ctx, bob.ID, CreateChatInput{MemberIDs: []uint{alice.ID}})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestCreateChatValidation(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	_, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{})
	assert.Equal(t, "Members are required", apperrors.UserMessage(err))

	// Listing only the creator leaves no other members.
	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{alice.ID}})
	assert.Equal(t, "Members are required", apperrors.UserMessage(err))

	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID, carol.ID}})
	assert.Equal(t, "Private chat must have exactly 2 members", apperrors.UserMessage(err))

	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{IsGroup: true, MemberIDs: []uint{bob.ID}})
	assert.Equal(t, "Group chat must have at least 3 members", apperrors.UserMessage(err))

	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{9999}})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.Equal(t, "User not found", apperrors.UserMessage(err))
}

func TestCreateGroupChat(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	chat, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup:   true,
		GroupName: "Weekend Plans",
		MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)
	assert.True(t, chat.IsGroup)
	assert.Equal(t, "Weekend Plans", chat.GroupName)
	require.NotNil(t, chat.GroupAdminID)
	assert.Equal(t, alice.ID, *chat.GroupAdminID)
	assert.Len(t, chat.Members, 3)
}

func TestCreateGroupChatDerivesName(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	chat, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup:   true,
		MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)
	// Derived from every member's last name, the creator appended last.
	assert.Equal(t, "Brown, Clark, Anderson", chat.GroupName)
}

func TestCreateGroupChatDerivedNameBudget(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "Admin User", "admin@example.com")
	memberIDs := make([]uint, 0, 6)
	longNames := []string{
		"Aaron Montgomery", "Beth Fitzgerald", "Carl Richardson",
		"Dana Worthington", "Evan Blankenship", "Faye Castellanos",
	}
	for i, name := range longNames {
		u := createTestUser(t, db, name, "member"+string(rune('a'+i))+"@example.com")
		memberIDs = append(memberIDs, u.ID)
	}

	chat, err := svc.CreateChat(ctx, admin.ID, CreateChatInput{IsGroup: true, MemberIDs: memberIDs})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chat.GroupName), 40)
	assert.Contains(t, chat.GroupName, "more")
	assert.Contains(t, chat.GroupName, "Montgomery")
}

func TestGetChatRequiresMembership(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	mallory := createTestUser(t, db, "Mallory Moore", "mallory@example.com")

	chat, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)

	_, err = svc.GetChatByID(ctx, chat.ID, mallory.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.GetChatByID(ctx, 9999, alice.ID)
	assert.Equal(t, "Chat not found", apperrors.UserMessage(err))
}

func TestUpdateChat(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	private, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)
	_, err = svc.UpdateChat(ctx, private.ID, alice.ID, ChatUpdate{GroupName: "New"})
	assert.Equal(t, "Private chat cannot be updated", apperrors.UserMessage(err))

	group, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	mallory := createTestUser(t, db, "Mallory Moore", "mallory@example.com")
	_, err = svc.UpdateChat(ctx, group.ID, mallory.ID, ChatUpdate{GroupName: "Hijacked"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// Any member may rename the group.
	updated, err := svc.UpdateChat(ctx, group.ID, bob.ID, ChatUpdate{GroupName: "Team v2"})
	require.NoError(t, err)
	assert.Equal(t, "Team v2", updated.GroupName)

	// Admin transfer is reserved for the current admin.
	_, err = svc.UpdateChat(ctx, group.ID, bob.ID, ChatUpdate{GroupAdminID: &bob.ID})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Equal(t, "Only group admin can update", apperrors.UserMessage(err))

	_, err = svc.UpdateChat(ctx, group.ID, alice.ID, ChatUpdate{GroupAdminID: &mallory.ID})
	assert.Equal(t, "New admin must be a member of the group", apperrors.UserMessage(err))

	updated, err = svc.UpdateChat(ctx, group.ID, alice.ID, ChatUpdate{GroupAdminID: &bob.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.GroupAdminID)
	assert.Equal(t, bob.ID, *updated.GroupAdminID)
}

func TestUpdateChatReplacesAvatar(t *testing.T) {
	svc, db, store := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	group, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	first := testUpload("first.png")
	updated, err := svc.UpdateChat(ctx, group.ID, alice.ID, ChatUpdate{Avatar: &first})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/first.png", updated.GroupAvatarURL)
	assert.Empty(t, store.destroyed)

	second := testUpload("second.png")
	updated, err = svc.UpdateChat(ctx, group.ID, alice.ID, ChatUpdate{Avatar: &second})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/second.png", updated.GroupAvatarURL)
	assert.Equal(t, []string{"pub-first.png"}, store.destroyed)
}

func TestDeleteChat(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	private, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)
	err = svc.DeleteChat(ctx, private.ID, alice.ID)
	assert.Equal(t, "Cannot delete private chat", apperrors.UserMessage(err))

	group, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	err = svc.DeleteChat(ctx, group.ID, bob.ID)
	assert.Equal(t, "Only admin can delete group", apperrors.UserMessage(err))

	// Seed some messages, then delete as the admin.
	msgRepo := storage.NewGormMessageRepository(db)
	for i := 0; i < 3; i++ {
		require.NoError(t, msgRepo.Create(ctx, &models.Message{
			ChatID: group.ID, SenderID: alice.ID, Type: models.TextMessageType, Text: "hello",
		}))
	}

	require.NoError(t, svc.DeleteChat(ctx, group.ID, alice.ID))

	_, err = svc.GetChatByID(ctx, group.ID, alice.ID)
	assert.Equal(t, "Chat not found", apperrors.UserMessage(err))

	// The chat row is gone but its messages survive, soft-deleted.
	var remaining []models.Message
	require.NoError(t, db.Where("chat_id = ?", group.ID).Find(&remaining).Error)
	require.Len(t, remaining, 3)
	for _, m := range remaining {
		assert.True(t, m.IsDeleted)
	}

	var memberCount int64
	require.NoError(t, db.Model(&models.ChatMember{}).Where("chat_id = ?", group.ID).Count(&memberCount).Error)
	assert.Zero(t, memberCount)
}

func TestLeaveChat(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")
	mallory := createTestUser(t, db, "Mallory Moore", "mallory@example.com")

	group, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	err = svc.LeaveChat(ctx, group.ID, mallory.ID, nil)
	assert.Equal(t, "You are not a member of this group", apperrors.UserMessage(err))

	// The admin cannot leave without a successor.
	err = svc.LeaveChat(ctx, group.ID, alice.ID, nil)
	assert.Equal(t, "Please appoint a new admin before leaving", apperrors.UserMessage(err))

	err = svc.LeaveChat(ctx, group.ID, alice.ID, &mallory.ID)
	assert.Equal(t, "New admin must be a member of the group", apperrors.UserMessage(err))

	err = svc.LeaveChat(ctx, group.ID, alice.ID, &alice.ID)
	assert.Equal(t, "New admin must be a member of the group", apperrors.UserMessage(err))

	require.NoError(t, svc.LeaveChat(ctx, group.ID, alice.ID, &bob.ID))

	chat, err := svc.GetChatByID(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, chat.GroupAdminID)
	assert.Equal(t, bob.ID, *chat.GroupAdminID)
	assert.False(t, chat.HasMember(alice.ID))

	// A regular member leaves without any appointment.
	require.NoError(t, svc.LeaveChat(ctx, group.ID, carol.ID, nil))
	chat, err = svc.GetChatByID(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	assert.Len(t, chat.Members, 1)
}

func TestLeaveChatLastMemberDeletes(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	group, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	msg := models.Message{ChatID: group.ID, SenderID: bob.ID, Type: models.TextMessageType, Text: "hi"}
	require.NoError(t, db.Create(&msg).Error)

	require.NoError(t, svc.LeaveChat(ctx, group.ID, carol.ID, nil))
	require.NoError(t, svc.LeaveChat(ctx, group.ID, alice.ID, &bob.ID))

	// The sole remaining member may leave without naming a successor. The
	// empty chat is removed and its messages are soft-deleted.
	require.NoError(t, svc.LeaveChat(ctx, group.ID, bob.ID, nil))

	_, err = svc.GetChatByID(ctx, group.ID, bob.ID)
	assert.Equal(t, "Chat not found", apperrors.UserMessage(err))

	var stored models.Message
	require.NoError(t, db.First(&stored, msg.ID).Error)
	assert.True(t, stored.IsDeleted)

	var memberCount int64
	require.NoError(t, db.Model(&models.ChatMember{}).Where("chat_id = ?", group.ID).Count(&memberCount).Error)
	assert.Zero(t, memberCount)
}

func TestLeaveChatPrivate(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")

	chat, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)

	err = svc.LeaveChat(ctx, chat.ID, alice.ID, nil)
	assert.Equal(t, "Cannot leave private chat", apperrors.UserMessage(err))
}

func TestGetUserChats(t *testing.T) {
	svc, db, _ := newChatService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice Anderson", "alice@example.com")
	bob := createTestUser(t, db, "Bob Brown", "bob@example.com")
	carol := createTestUser(t, db, "Carol Clark", "carol@example.com")

	_, err := svc.CreateChat(ctx, alice.ID, CreateChatInput{MemberIDs: []uint{bob.ID}})
	require.NoError(t, err)
	_, err = svc.CreateChat(ctx, alice.ID, CreateChatInput{
		IsGroup: true, GroupName: "Team", MemberIDs: []uint{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	chats, err := svc.GetUserChats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = svc.GetUserChats(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}
