// This file is the HTTP boundary for the identity operations. Handlers
// decode the payload, resolve the request locale, call the service, and map
// the typed error onto a status code and the uniform error envelope.
package auth

import (
	"encoding/json"
	"net/http"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/i18n"
)

// Handlers wraps the identity Service with HTTP handlers.
type Handlers struct {
	service *Service
}

// NewHandlers creates a Handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// requestLocale resolves the response language from the Accept-Language
// header.
func requestLocale(r *http.Request) string {
	return i18n.ResolveLocale(r.Header.Get("Accept-Language"))
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.NewValidationError("invalid request body", err)
	}
	return nil
}

// HandleRegister creates a local account and returns 201 with the public
// user view.
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		user, err := h.service.Register(r.Context(), req, requestLocale(r))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	}
}

// HandleLogin authenticates credentials and returns a token with the user.
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		resp, err := h.service.Login(r.Context(), req, requestLocale(r))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleVerifyEmail consumes a verification token.
func (h *Handlers) HandleVerifyEmail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyEmailRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		locale := requestLocale(r)
		if err := h.service.VerifyEmail(r.Context(), req.Token, locale); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.translator.Translate(locale, "email-verified")})
	}
}

// HandleResendVerification rotates and resends the verification token.
func (h *Handlers) HandleResendVerification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResendVerificationRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		locale := requestLocale(r)
		if err := h.service.ResendVerification(r.Context(), req.Email, locale); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.translator.Translate(locale, "verification-email-resent")})
	}
}

// HandleForgotPassword starts the reset flow. The response is the same
// whether or not the email exists.
func (h *Handlers) HandleForgotPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		locale := requestLocale(r)
		if err := h.service.ForgotPassword(r.Context(), req.Email, locale); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.translator.Translate(locale, "reset-email-sent")})
	}
}

// HandleResetPassword consumes a reset token with a new password.
func (h *Handlers) HandleResetPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		locale := requestLocale(r)
		if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, locale); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.translator.Translate(locale, "password-reset-success")})
	}
}

// HandleMe returns the public view of the session user. Runs behind
// RequireAuth.
func (h *Handlers) HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperror.NewAuthenticationError("no authentication context", nil))
			return
		}
		writeJSON(w, http.StatusOK, user.ToResponse())
	}
}

// HandleUpdateLocale changes the session user's preferred locale.
func (h *Handlers) HandleUpdateLocale() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperror.NewAuthenticationError("no authentication context", nil))
			return
		}

		var req UpdateLocaleRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		resp, err := h.service.UpdateLocale(r.Context(), user.ID, req.Locale)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleLogout acknowledges a logout. Sessions are stateless bearer tokens,
// so there is nothing to revoke server-side; the client drops the token.
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := requestLocale(r)
		writeJSON(w, http.StatusOK, MessageResponse{Message: h.service.translator.Translate(locale, "logged-out")})
	}
}

// writeJSON serializes data with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response","status":500}`, http.StatusInternalServerError)
		}
	}
}

// WriteError converts any error into the uniform error envelope. Errors
// outside the apperror taxonomy become opaque Internal errors.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}
	writeJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
