package shared

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindPermission        ErrorKind = "PERMISSION"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindRateLimited       ErrorKind = "RATE_LIMITED"
	KindChallengeRequired ErrorKind = "CHALLENGE_REQUIRED"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindPersistence       ErrorKind = "PERSISTENCE_FAILURE"
	KindUnavailable       ErrorKind = "UNAVAILABLE"
)

const ContactSupportMessage = "Your account is restricted. Contact support."

// AppError is the error type surfaced to HTTP callers.
type AppError struct {
	Kind              ErrorKind
	StatusCode        int
	Message           string
	Data              interface{}
	RetryAfter        int
	ChallengeRequired bool
	Err               error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Body is the payload rendered in the response envelope.
func (e *AppError) Body() map[string]interface{} {
	body := map[string]interface{}{
		"error": e.Message,
	}
	if e.ChallengeRequired {
		body["challenge_required"] = true
	}
	if e.RetryAfter > 0 {
		body["retry_after"] = e.RetryAfter
	}
	if e.Data != nil {
		body["details"] = e.Data
	}
	return body
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Kind == kind
}

func NewValidationError(message string, data interface{}) *AppError {
	return &AppError{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message, Data: data}
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message, Err: err}
}

func NewPermissionError(message string) *AppError {
	return &AppError{Kind: KindPermission, StatusCode: http.StatusForbidden, Message: message}
}

// NewSuspendedError reads like any other permission denial apart from the support guidance.
func NewSuspendedError() *AppError {
	return NewPermissionError(ContactSupportMessage)
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Message: message}
}

func NewRateLimitedError(message string, retryAfter int) *AppError {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &AppError{Kind: KindRateLimited, StatusCode: http.StatusTooManyRequests, Message: message, RetryAfter: retryAfter}
}

func NewChallengeRequiredError(message string, retryAfter int) *AppError {
	return &AppError{
		Kind:              KindChallengeRequired,
		StatusCode:        http.StatusTooManyRequests,
		Message:           message,
		RetryAfter:        retryAfter,
		ChallengeRequired: true,
	}
}

// NewChallengeFailedError is returned when a supplied token did not verify.
func NewChallengeFailedError() *AppError {
	return &AppError{
		Kind:              KindChallengeRequired,
		StatusCode:        http.StatusForbidden,
		Message:           "Challenge verification failed.",
		ChallengeRequired: true,
	}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

func NewPersistenceError(err error) *AppError {
	return &AppError{Kind: KindPersistence, StatusCode: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
}

func NewUnavailableError(message string) *AppError {
	return &AppError{Kind: KindUnavailable, StatusCode: http.StatusServiceUnavailable, Message: message}
}
