package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/workhub-social/chatsync/pkg/errors"
	"github.com/workhub-social/chatsync/pkg/logger"
)

// response is the envelope of every JSON response.
type response struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *apperrors.AppError `json:"error,omitempty"`
}

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Success: true, Data: v})
}

// writeError writes a JSON error response with the status matching err's
// code. Details of unexpected errors are logged, not returned.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = &apperrors.AppError{Code: apperrors.CodeInternal, Message: "internal error"}
	}
	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", string(appErr.Code)), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{
		Success: false,
		Error:   &apperrors.AppError{Code: appErr.Code, Message: appErr.Message},
	})
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeUnavailable, apperrors.CodeSubscription:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return nil
}

// paging reads limit and offset query parameters.
func paging(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit, offset := defaultLimit, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

var (
	errStreamingUnsupported = apperrors.Internal("streaming not supported")
	errSessionNotFound      = apperrors.NotFound("session not found")
	errFileNotFound         = apperrors.NotFound("file not found")
)
