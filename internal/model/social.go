package model

import "time"

// Follow is a follower relation between two users.
type Follow struct {
	ID         string    `json:"id"`
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"created_at"`

	// Set on change events so a people list can render the new entry
	// without a lookup.
	Follower *Profile `json:"follower,omitempty"`
	Followee *Profile `json:"followee,omitempty"`
}

// People is a user's follower and following lists.
type People struct {
	Followers []Profile `json:"followers"`
	Following []Profile `json:"following"`
}

// NotificationType says what a notification is about.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Notification tells a user that someone acted on them or their post.
type Notification struct {
	ID         string           `json:"id"`
	ReceiverID string           `json:"receiverId"`
	SenderID   string           `json:"senderId"`
	Type       NotificationType `json:"type"`
	PostID     string           `json:"postId,omitempty"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`

	Sender *Profile `json:"sender,omitempty"`
}

// ListNotificationsResponse is a page of notifications with the receiver's
// unread total.
type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
	HasMore       bool           `json:"has_more"`
}
