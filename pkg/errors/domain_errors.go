package errors

var (
	ErrSelfConversation     = Validation("cannot create a conversation with yourself")
	ErrEmptyMessage         = Validation("message needs a body or at least one attachment")
	ErrMissingUserID        = Validation("user id is required")
	ErrMissingConversation  = Validation("conversation id is required")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrPostNotFound         = NotFound("post not found")
	ErrJobNotFound          = NotFound("job not found")
	ErrSelfFollow           = Validation("cannot follow yourself")
	ErrNotFollowing         = NotFound("not following this user")
	ErrNotParticipant       = Validation("sender is not a participant of the conversation")
	ErrSessionClosed        = Internal("session is closed")
)

func ErrSendFailed(cause error) error {
	return Backend("could not send message", cause)
}

func ErrLoadFailed(cause error) error {
	return Backend("could not load messages", cause)
}
