package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Is(t *testing.T) {
	err := fmt.Errorf("send: %w", ErrConversationNotFound)

	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, err, &AppError{Code: CodeNotFound}, "code-only target matches any message")
	assert.NotErrorIs(t, err, ErrPostNotFound, "same code, different message")
	assert.NotErrorIs(t, err, ErrEmptyMessage)
}

func TestCodeOf(t *testing.T) {
	cause := stderrors.New("connection reset")

	assert.Equal(t, CodeUnavailable, CodeOf(Backend("list failed", cause)))
	assert.Equal(t, CodeSubscription, CodeOf(fmt.Errorf("open: %w", Subscription("inbox", cause))))
	assert.Equal(t, CodeUnknown, CodeOf(cause))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
	assert.False(t, HasCode(nil, CodeUnknown))
	assert.True(t, HasCode(ErrSendFailed(cause), CodeUnavailable))
}

func TestAppError_Error(t *testing.T) {
	cause := stderrors.New("timeout")
	err := Backend("could not load conversation", cause)

	assert.Equal(t, "could not load conversation: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "user not found", ErrUserNotFound.Error())
}
