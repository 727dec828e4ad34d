package middleware

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/workhub-social/chatsync/internal/model"
	apperrors "github.com/workhub-social/chatsync/pkg/errors"
)

const (
	maxMessageLength  = 10000
	maxAttachmentSize = 25 << 20
	maxAttachments    = 10
	maxUserIDLength   = 128
	maxPostLength     = 5000
)

// ValidateMessage validates a message body and its attachments. A message
// may have an empty body when it carries attachments.
func ValidateMessage(text string, attachments []model.Upload) error {
	if len(text) > maxMessageLength {
		return apperrors.Validation("message exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return apperrors.Validation("message must be valid UTF-8")
	}
	if len(attachments) > maxAttachments {
		return apperrors.Validation("too many attachments")
	}
	for _, a := range attachments {
		if err := ValidateUpload(a); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUpload validates one uploaded file.
func ValidateUpload(up model.Upload) error {
	if up.Type != model.AttachmentImage && up.Type != model.AttachmentVideo {
		return apperrors.Validation("attachment type must be image or video")
	}
	if up.Name == "" {
		return apperrors.Validation("attachment name is required")
	}
	if len(up.Data) == 0 {
		return apperrors.Validation("attachment is empty")
	}
	if len(up.Data) > maxAttachmentSize {
		return apperrors.Validation("attachment exceeds maximum size")
	}
	return nil
}

// ValidatePost validates a post body.
func ValidatePost(body string) error {
	if len(body) > maxPostLength {
		return apperrors.Validation("post exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return apperrors.Validation("post must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validation("invalid conversation ID format")
	}
	return nil
}

// ValidateID validates a row ID such as a post or comment id.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validation("invalid ID format")
	}
	return nil
}

// ValidateUserID validates a user ID.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return apperrors.ErrMissingUserID
	}
	if len(id) > maxUserIDLength {
		return apperrors.Validation("user ID exceeds maximum length")
	}
	return nil
}
