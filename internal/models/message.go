package models

import (
	"encoding/json"

	"chat-go/internal/attach"
)

// MessageType discriminates which content field of a message is populated.
type MessageType string

const (
	TextMessageType  MessageType = "text"
	ImageMessageType MessageType = "image"
	VideoMessageType MessageType = "video"
	AudioMessageType MessageType = "audio"
	FileMessageType  MessageType = "file"
)

// ValidMessageType reports whether t is one of the recognized message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case TextMessageType, ImageMessageType, VideoMessageType, AudioMessageType, FileMessageType:
		return true
	}
	return false
}

// ReactionType is the emotion attached to a message reaction.
type ReactionType string

const (
	LikeReaction  ReactionType = "like"
	LoveReaction  ReactionType = "love"
	HahaReaction  ReactionType = "haha"
	WowReaction   ReactionType = "wow"
	SadReaction   ReactionType = "sad"
	AngryReaction ReactionType = "angry"
)

// Message represents a chat message. Exactly one content field is populated,
// keyed on Type: Text for text messages, AttachmentsRaw for everything else
// (image messages store an array of attachments, video/audio/file store a
// single one). Messages are soft-deleted: IsDeleted is set, the row stays.
type Message struct {
	BaseModel
	ChatID   uint        `gorm:"index;not null" json:"chatId"`
	SenderID uint        `gorm:"index;not null" json:"senderId"`
	Type     MessageType `gorm:"type:varchar(20);not null" json:"messageType"`
	Text     string      `gorm:"type:text" json:"text,omitempty"`

	// AttachmentsRaw stores the uploaded attachment descriptors as JSON.
	AttachmentsRaw json.RawMessage `gorm:"type:jsonb" json:"attachments,omitempty"`

	// ReplyToID optionally references the message this one replies to.
	ReplyToID *uint    `gorm:"index" json:"replyTo,omitempty"`
	ReplyTo   *Message `gorm:"foreignKey:ReplyToID" json:"repliedMessage,omitempty"`

	IsDeleted bool `gorm:"not null;default:false" json:"isDeleted"`

	Sender    User              `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Chat      Chat              `gorm:"foreignKey:ChatID" json:"-"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

// SetAttachments marshals the attachment descriptors into AttachmentsRaw.
func (m *Message) SetAttachments(files []attach.Attachment) error {
	data, err := json.Marshal(files)
	if err != nil {
		return err
	}
	m.AttachmentsRaw = data
	return nil
}

// GetAttachments unmarshals the stored attachment descriptors.
// Returns nil for text messages or messages without attachments.
func (m *Message) GetAttachments() ([]attach.Attachment, error) {
	if m.Type == TextMessageType || m.AttachmentsRaw == nil {
		return nil, nil
	}
	var files []attach.Attachment
	if err := json.Unmarshal(m.AttachmentsRaw, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// MessageReaction is a single user's reaction to a message. The unique index
// enforces at most one reaction per user per message; changing the emotion
// overwrites the row, reacting again with the same emotion removes it.
type MessageReaction struct {
	BaseModel
	MessageID uint         `gorm:"not null;uniqueIndex:idx_message_reaction_user" json:"messageId"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_message_reaction_user" json:"userId"`
	Type      ReactionType `gorm:"type:varchar(20);not null" json:"type"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for the MessageReaction model.
func (MessageReaction) TableName() string {
	return "message_reactions"
}
