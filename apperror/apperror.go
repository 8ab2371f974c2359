// Package apperror defines the closed set of error kinds the identity core can
// return. Every service operation returns one of these instead of a raw
// infrastructure error; the HTTP boundary alone decides status codes and the
// response shape. Infrastructure failures (database, signing, hashing, SMTP)
// are converted at the boundary where they occur and never propagate raw.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an application error.
type Kind int

const (
	// UnknownError is for unspecified errors.
	UnknownError Kind = iota
	// ValidationError represents malformed input.
	ValidationError
	// AuthenticationError represents bad credentials, a bad token, or an
	// unverified account.
	AuthenticationError
	// AuthorizationError represents an authenticated caller with an
	// insufficient role.
	AuthorizationError
	// NotFoundError represents a missing resource.
	NotFoundError
	// ConflictError represents a uniqueness violation, e.g. a taken email.
	ConflictError
	// OAuthError represents a provider exchange or profile failure.
	OAuthError
	// DatabaseError represents an error originating from the database.
	DatabaseError
	// EmailError represents an outbound mail delivery failure.
	EmailError
	// ConfigError represents an error in application configuration.
	ConfigError
	// InternalError represents an unexpected infrastructure failure.
	InternalError
)

// AppError is the application error type. Message is safe to return to
// clients; Err carries the underlying cause for logging only.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error so errors.Is/errors.As can walk the
// chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for the error kind.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case ValidationError, OAuthError:
		return http.StatusBadRequest
	case AuthenticationError:
		return http.StatusUnauthorized
	case AuthorizationError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New creates an AppError of an arbitrary kind.
func New(kind Kind, message string, underlying error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: underlying}
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string, underlying error) *AppError {
	return New(ValidationError, message, underlying)
}

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(message string, underlying error) *AppError {
	return New(AuthenticationError, message, underlying)
}

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(message string, underlying error) *AppError {
	return New(AuthorizationError, message, underlying)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(message string, underlying error) *AppError {
	return New(NotFoundError, message, underlying)
}

// NewConflictError creates a ConflictError.
func NewConflictError(message string, underlying error) *AppError {
	return New(ConflictError, message, underlying)
}

// NewOAuthError creates an OAuthError.
func NewOAuthError(message string, underlying error) *AppError {
	return New(OAuthError, message, underlying)
}

// NewDatabaseError creates a DatabaseError.
func NewDatabaseError(message string, underlying error) *AppError {
	return New(DatabaseError, message, underlying)
}

// NewEmailError creates an EmailError.
func NewEmailError(message string, underlying error) *AppError {
	return New(EmailError, message, underlying)
}

// NewConfigError creates a ConfigError.
func NewConfigError(message string, underlying error) *AppError {
	return New(ConfigError, message, underlying)
}

// NewInternalError creates an InternalError.
func NewInternalError(message string, underlying error) *AppError {
	return New(InternalError, message, underlying)
}

// ErrorResponse is the uniform JSON envelope for API error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ToResponse converts an AppError into the client-facing envelope. Only the
// Message is exposed; the underlying cause stays server-side.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Status: e.StatusCode()}
}

// FromError attempts to interpret err as an *AppError.
func FromError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the Kind of err, or UnknownError if err is not an AppError.
func KindOf(err error) Kind {
	if appErr, ok := FromError(err); ok {
		return appErr.Kind
	}
	return UnknownError
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool { return IsKind(err, NotFoundError) }

// IsAuthentication checks if an error is an AuthenticationError.
func IsAuthentication(err error) bool { return IsKind(err, AuthenticationError) }

// IsValidation checks if an error is a ValidationError.
func IsValidation(err error) bool { return IsKind(err, ValidationError) }

// IsConflict checks if an error is a ConflictError.
func IsConflict(err error) bool { return IsKind(err, ConflictError) }

// IsOAuth checks if an error is an OAuthError.
func IsOAuth(err error) bool { return IsKind(err, OAuthError) }
