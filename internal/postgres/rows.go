package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/workhub-social/chatsync/internal/model"
)

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID            string    `bun:"id,pk"`
	UserAID       string    `bun:"user_a_id,notnull"`
	UserBID       string    `bun:"user_b_id,notnull"`
	LastMessage   string    `bun:"last_message,notnull,default:''"`
	LastSenderID  string    `bun:"last_sender_id,nullzero"`
	LastMessageAt time.Time `bun:"last_message_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *conversationRow) toModel() *model.Conversation {
	return &model.Conversation{
		ID:            r.ID,
		UserAID:       r.UserAID,
		UserBID:       r.UserBID,
		LastMessage:   r.LastMessage,
		LastSenderID:  r.LastSenderID,
		LastMessageAt: r.LastMessageAt.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func conversationFromModel(c *model.Conversation) *conversationRow {
	return &conversationRow{
		ID:            c.ID,
		UserAID:       c.UserAID,
		UserBID:       c.UserBID,
		LastMessage:   c.LastMessage,
		LastSenderID:  c.LastSenderID,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string    `bun:"id,pk"`
	ClientID       string    `bun:"client_id,nullzero"`
	ConversationID string    `bun:"conversation_id,notnull"`
	SenderID       string    `bun:"sender_id,notnull"`
	ReceiverID     string    `bun:"receiver_id,notnull"`
	Body           string    `bun:"message_text,notnull,default:''"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Read           bool      `bun:"isread,notnull,default:false"`
}

func (r *messageRow) toModel() model.Message {
	return model.Message{
		ID:             r.ID,
		ClientID:       r.ClientID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		Body:           r.Body,
		CreatedAt:      r.CreatedAt.UTC(),
		Read:           r.Read,
	}
}

type attachmentRow struct {
	bun.BaseModel `bun:"table:attachments,alias:a"`

	ID        string `bun:"id,pk"`
	MessageID string `bun:"message_id,notnull"`
	Type      string `bun:"file_type,notnull"`
	URL       string `bun:"file_url,notnull"`
	Name      string `bun:"file_name,notnull"`
	Size      int64  `bun:"file_size,notnull"`
}

func (r *attachmentRow) toModel() model.Attachment {
	return model.Attachment{
		ID:        r.ID,
		MessageID: r.MessageID,
		Type:      model.AttachmentType(r.Type),
		URL:       r.URL,
		Name:      r.Name,
		Size:      r.Size,
	}
}

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID    string `bun:"id,pk"`
	Name  string `bun:"name,notnull"`
	Image string `bun:"image,nullzero"`
	Bio   string `bun:"bio,nullzero"`
}

func (r *profileRow) toModel() *model.Profile {
	return &model.Profile{ID: r.ID, Name: r.Name, Image: r.Image, Bio: r.Bio}
}

type postRow struct {
	bun.BaseModel `bun:"table:posts,alias:po"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Body      string    `bun:"body,notnull,default:''"`
	File      string    `bun:"file,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *postRow) toModel() *model.Post {
	return &model.Post{
		ID:        r.ID,
		UserID:    r.UserID,
		Body:      r.Body,
		File:      r.File,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type likeRow struct {
	bun.BaseModel `bun:"table:likes,alias:l"`

	ID        string    `bun:"id,pk"`
	PostID    string    `bun:"post_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *likeRow) toModel() *model.Like {
	return &model.Like{ID: r.ID, PostID: r.PostID, UserID: r.UserID, CreatedAt: r.CreatedAt.UTC()}
}

type commentRow struct {
	bun.BaseModel `bun:"table:comments,alias:co"`

	ID        string    `bun:"id,pk"`
	PostID    string    `bun:"post_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Text      string    `bun:"text,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *commentRow) toModel() *model.Comment {
	return &model.Comment{ID: r.ID, PostID: r.PostID, UserID: r.UserID, Text: r.Text, CreatedAt: r.CreatedAt.UTC()}
}

type followRow struct {
	bun.BaseModel `bun:"table:follows,alias:f"`

	ID         string    `bun:"id,pk"`
	FollowerID string    `bun:"follower_id,notnull"`
	FolloweeID string    `bun:"followee_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *followRow) toModel() *model.Follow {
	return &model.Follow{ID: r.ID, FollowerID: r.FollowerID, FolloweeID: r.FolloweeID, CreatedAt: r.CreatedAt.UTC()}
}

type notificationRow struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID         string    `bun:"id,pk"`
	ReceiverID string    `bun:"receiver_id,notnull"`
	SenderID   string    `bun:"sender_id,notnull"`
	Type       string    `bun:"type,notnull"`
	PostID     string    `bun:"post_id,nullzero"`
	Message    string    `bun:"message,notnull,default:''"`
	Read       bool      `bun:"read,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:         r.ID,
		ReceiverID: r.ReceiverID,
		SenderID:   r.SenderID,
		Type:       model.NotificationType(r.Type),
		PostID:     r.PostID,
		Message:    r.Message,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type jobRow struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID               string    `bun:"id,pk"`
	UserID           string    `bun:"user_id,notnull"`
	Title            string    `bun:"title,notnull"`
	CompanyName      string    `bun:"company_name,notnull"`
	Category         string    `bun:"category,notnull"`
	Industry         string    `bun:"industry,nullzero"`
	EmploymentType   string    `bun:"employment_type,nullzero"`
	Salary           string    `bun:"salary,nullzero"`
	Skills           string    `bun:"skills,nullzero"`
	ShortDescription string    `bun:"short_description,nullzero"`
	Description      string    `bun:"job_description,nullzero"`
	File             string    `bun:"file,nullzero"`
	LinkForApply     string    `bun:"link_for_apply,nullzero"`
	Email            string    `bun:"email,nullzero"`
	Status           string    `bun:"status,notnull,default:'open'"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *jobRow) toModel() *model.Job {
	return &model.Job{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		CompanyName:      r.CompanyName,
		Category:         r.Category,
		Industry:         r.Industry,
		EmploymentType:   r.EmploymentType,
		Salary:           r.Salary,
		Skills:           r.Skills,
		ShortDescription: r.ShortDescription,
		Description:      r.Description,
		File:             r.File,
		LinkForApply:     r.LinkForApply,
		Email:            r.Email,
		Status:           model.JobStatus(r.Status),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func jobFromModel(j *model.Job) *jobRow {
	return &jobRow{
		ID:               j.ID,
		UserID:           j.UserID,
		Title:            j.Title,
		CompanyName:      j.CompanyName,
		Category:         j.Category,
		Industry:         j.Industry,
		EmploymentType:   j.EmploymentType,
		Salary:           j.Salary,
		Skills:           j.Skills,
		ShortDescription: j.ShortDescription,
		Description:      j.Description,
		File:             j.File,
		LinkForApply:     j.LinkForApply,
		Email:            j.Email,
		Status:           string(j.Status),
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

type jobLikeRow struct {
	bun.BaseModel `bun:"table:job_likes,alias:jl"`

	ID        string    `bun:"id,pk"`
	JobID     string    `bun:"job_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *jobLikeRow) toModel() *model.JobLike {
	return &model.JobLike{ID: r.ID, JobID: r.JobID, UserID: r.UserID, CreatedAt: r.CreatedAt.UTC()}
}

// summaryRow is one row of the conversation list query.
type summaryRow struct {
	ID           string    `bun:"id"`
	OtherID      string    `bun:"other_id"`
	OtherName    string    `bun:"other_name"`
	OtherImage   string    `bun:"other_image"`
	LastMessage  string    `bun:"last_message"`
	LastSenderID string    `bun:"last_sender_id"`
	UpdatedAt    time.Time `bun:"updated_at"`
}
