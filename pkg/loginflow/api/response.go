package api

import (
	"errors"
	"net/http"

	"github.com/financialhub/login-core/pkg/directory"
	"github.com/financialhub/login-core/pkg/idp"
	"github.com/financialhub/login-core/pkg/notification"
	"github.com/financialhub/login-core/pkg/totp"
)

// LoginRequest is the primary login form submission.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
}

// VerifyRequest submits the six-digit code for an attempt.
type VerifyRequest struct {
	AttemptID string `json:"attempt_id"`
	Code      string `json:"code"`
}

// BackRequest abandons the in-flight challenge.
type BackRequest struct {
	AttemptID string `json:"attempt_id"`
}

// RegisterBrowserRequest enrolls a trusted device.
type RegisterBrowserRequest struct {
	Username string `json:"username"`
	Language string `json:"language,omitempty"`
}

// ChallengeResponse describes an issued challenge.
type ChallengeResponse struct {
	AttemptID string `json:"attempt_id"`
	State     string `json:"state"`
	QR        string `json:"qr,omitempty"`
	Method    string `json:"method"`
}

// ErrorResponse is the generic error body. Provider internals are never
// leaked beyond a generic description.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusForError maps the error taxonomy onto the gateway response codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, idp.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, idp.ErrIdentityNotFound), errors.Is(err, directory.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, totp.ErrChallengeMalformed):
		return http.StatusBadRequest
	case errors.Is(err, totp.ErrChallengeExpired):
		return http.StatusUnauthorized
	case errors.Is(err, notification.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, idp.ErrProviderUnreachable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// messageForError returns the user-facing description for an error.
func messageForError(err error) string {
	switch {
	case errors.Is(err, idp.ErrInvalidCredentials):
		return "Authentication failed"
	case errors.Is(err, idp.ErrIdentityNotFound):
		return "User email not found in Cloud Directory"
	case errors.Is(err, directory.ErrAccountNotFound):
		return "User not found"
	case errors.Is(err, totp.ErrChallengeMalformed), errors.Is(err, totp.ErrChallengeExpired):
		return "Verification failed"
	case errors.Is(err, idp.ErrProviderUnreachable):
		return "System Authentication Failed"
	case errors.Is(err, notification.ErrConfiguration):
		return "Server configuration error"
	default:
		return "Internal Server Error"
	}
}
