package models

import "time"

// User represents an account in the system.
type User struct {
	BaseModel
	FullName     string     `gorm:"type:varchar(100);not null" json:"fullName"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	AvatarURL    string     `gorm:"type:varchar(255)" json:"avatarUrl,omitempty"`
	// AvatarPublicID identifies the stored avatar object so a replacement can
	// destroy the previous one.
	AvatarPublicID string     `gorm:"type:varchar(255)" json:"-"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`

	Messages []Message `gorm:"foreignKey:SenderID" json:"messages,omitempty"`
	Chats    []*Chat   `gorm:"many2many:chat_members;" json:"chats,omitempty"`
}

// UserBasicInfo holds minimal public information about a user.
// Used for display enrichment: message senders, friend lists, pending requests.
type UserBasicInfo struct {
	ID        uint   `json:"id"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// BasicInfo projects the public fields of a user.
func (u *User) BasicInfo() *UserBasicInfo {
	return &UserBasicInfo{ID: u.ID, FullName: u.FullName, AvatarURL: u.AvatarURL}
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
