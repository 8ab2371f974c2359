// This file defines the request and response payloads for the identity
// operations. Validation rules mirror the registration constraints: email
// format, username 3-50 characters, password at least 8 characters.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/users"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Username    string  `json:"username" validate:"required,min=3,max=50"`
	Password    string  `json:"password" validate:"required,min=8"`
	DisplayName *string `json:"display_name"`
	Locale      *string `json:"locale"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest carries a verification token for consumption.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest asks for a fresh verification email.
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset token. The password length rule is
// enforced in the service so the failure carries a localized message.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UpdateLocaleRequest changes the session user's preferred locale.
type UpdateLocaleRequest struct {
	Locale string `json:"locale" validate:"required"`
}

// AuthResponse pairs a bearer token with the public view of its user.
type AuthResponse struct {
	User  users.Response `json:"user"`
	Token string         `json:"token"`
}

// MessageResponse is the body for operations that return only an outcome
// message.
type MessageResponse struct {
	Message string `json:"message"`
}

// validateRequest runs struct validation and folds field errors into one
// Validation error, "field: rule" per failure.
func validateRequest(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperror.NewValidationError("invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), describeRule(fe)))
	}
	return apperror.NewValidationError(strings.Join(messages, ", "), nil)
}

// describeRule renders a human-readable message for a failed rule.
func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
