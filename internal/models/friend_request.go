package models

// FriendRequestStatus defines the state of a friend request.
// A request starts pending; accepted and declined are terminal.
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusDeclined FriendRequestStatus = "declined"
)

// FriendRequest represents a directed friend request from sender to receiver.
type FriendRequest struct {
	BaseModel
	SenderID       uint                `gorm:"not null;index:idx_friend_request_users" json:"senderId"`
	ReceiverID     uint                `gorm:"not null;index:idx_friend_request_users" json:"receiverId"`
	Status         FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RequestMessage string              `gorm:"type:text" json:"requestMessage,omitempty"`
}

// TableName specifies the table name for the FriendRequest model.
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// FriendRequestWithSender is a DTO that includes friend request details
// along with basic information about the user who sent the request.
// Useful for API responses listing pending requests.
type FriendRequestWithSender struct {
	FriendRequest
	Sender *UserBasicInfo `json:"sender"`
}
