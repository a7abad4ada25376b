package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/response"
)

// Exam session errors.
var (
	ErrNoSession          = errors.New("no exam loaded")
	ErrAlreadySubmitted   = errors.New("exam already submitted")
	ErrSubmitInProgress   = errors.New("submission in progress")
	ErrNotSubmitted       = errors.New("exam not submitted yet")
	ErrQuestionOutOfRange = errors.New("question number out of range")
	ErrInvalidOption      = errors.New("option must be one of A, B, C, D")
	ErrSessionClosed      = errors.New("exam session closed")
	ErrExamNotListed      = errors.New("no exam with that code")
)

// ValidationError carries per-field messages for a rejected form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// Describe maps err to the status, code and message shown to the user.
func Describe(err error) (int, response.ErrCode, string) {
	var apiErr *client.APIError
	var valErr *ValidationError

	switch {
	case errors.Is(err, client.ErrSessionExpired):
		return http.StatusUnauthorized, response.ErrSessionExpired, ""
	case errors.Is(err, client.ErrUserNotFound):
		return http.StatusNotFound, response.ErrUserNotFound, ""
	case errors.Is(err, client.ErrUnusableExam):
		return http.StatusUnprocessableEntity, response.ErrExamUnavailable, ""
	case errors.Is(err, client.ErrUnreachable):
		return http.StatusBadGateway, response.ErrBackendUnavailable, ""
	case errors.Is(err, ErrExamNotListed):
		return http.StatusNotFound, response.ErrNotFound, "No exam with that code"
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionClosed):
		return http.StatusNotFound, response.ErrNoActiveSession, ""
	case errors.Is(err, ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted, ""
	case errors.Is(err, ErrSubmitInProgress):
		return http.StatusConflict, response.ErrSubmitInProgress, ""
	case errors.Is(err, ErrNotSubmitted):
		return http.StatusConflict, response.ErrNotSubmitted, ""
	case errors.Is(err, ErrQuestionOutOfRange):
		return http.StatusBadRequest, response.ErrQuestionOutOfRange, ""
	case errors.Is(err, ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption, ""
	case errors.As(err, &valErr):
		return http.StatusBadRequest, response.ErrValidation, ""
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status >= 500 {
			status = http.StatusBadGateway
		}
		return status, apiErr.Code, apiErr.Message
	default:
		return http.StatusInternalServerError, response.ErrInternal, ""
	}
}

// UserMessage is the human-readable form of err.
func UserMessage(err error) string {
	_, code, msg := Describe(err)
	if msg == "" {
		msg = response.GetMessage(code)
	}
	return msg
}
