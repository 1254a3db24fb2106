package models

import "time"

// Chat represents a conversation between users, either private (exactly two
// fixed members, no name or admin) or group (three or more members at
// creation, with a name, one admin and an optional avatar). IsGroup is
// immutable after creation.
type Chat struct {
	BaseModel
	IsGroup   bool   `gorm:"not null;index" json:"isGroup"`
	GroupName string `gorm:"type:varchar(100)" json:"groupName,omitempty"`

	// GroupAdminID is set only for group chats.
	GroupAdminID *uint `json:"groupAdmin,omitempty"`

	GroupAvatarURL string `gorm:"type:varchar(255)" json:"groupAvatarUrl,omitempty"`
	// GroupAvatarPublicID identifies the stored avatar object so replacement
	// and chat deletion can destroy it.
	GroupAvatarPublicID string `gorm:"type:varchar(255)" json:"-"`

	// LatestMessageID is a denormalized pointer to the most recent message,
	// used for list previews. Nullable: new chats have no messages, and
	// deleting a message clears it.
	LatestMessageID *uint `gorm:"index" json:"latestMessageId,omitempty"`

	Members       []*User  `gorm:"many2many:chat_members;" json:"members,omitempty"`
	Messages      []Message `gorm:"foreignKey:ChatID" json:"-"`
	LatestMessage *Message  `gorm:"foreignKey:LatestMessageID" json:"latestMessage,omitempty"`
}

// TableName specifies the table name for the Chat model.
func (Chat) TableName() string {
	return "chats"
}

// ChatMember links a user to a chat. Membership is a set: the composite
// primary key makes a user appear in a chat at most once.
type ChatMember struct {
	ChatID   uint      `gorm:"primaryKey;autoIncrement:false" json:"chatId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Chat Chat `gorm:"foreignKey:ChatID" json:"-"`
}

// TableName specifies the table name for the ChatMember model.
func (ChatMember) TableName() string {
	return "chat_members"
}

// HasMember reports whether the preloaded member list contains userID.
func (c *Chat) HasMember(userID uint) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID is the chat's group admin.
func (c *Chat) IsAdmin(userID uint) bool {
	return c.GroupAdminID != nil && *c.GroupAdminID == userID
}
