package model

import "time"

// Post is a feed entry.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	File      string    `json:"file,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Joined on read.
	User     *Profile  `json:"user,omitempty"`
	Likes    []Like    `json:"postLikes"`
	Comments []Comment `json:"comments"`
}

// Comment is a reply to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Like marks a user's like of a post.
type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePostRequest is the request to publish a post.
type CreatePostRequest struct {
	Body string  `json:"body"`
	File *Upload `json:"file,omitempty"`
}

// CreateCommentRequest is the request to comment on a post.
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// ListPostsResponse is a page of posts.
type ListPostsResponse struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"has_more"`
}
