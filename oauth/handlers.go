package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/auth"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 5 * time.Minute
)

// Handlers exposes the browser-facing endpoints of the OAuth flow: the
// redirect to the provider's consent page and the callback that lands the
// user back on the frontend with a session token.
type Handlers struct {
	service     *Service
	frontendURL string
}

func NewHandlers(service *Service, frontendURL string) *Handlers {
	return &Handlers{service: service, frontendURL: frontendURL}
}

// HandleAuthorize sends the browser to the provider's consent page. The
// generated state is pinned in a short-lived cookie for the callback check.
func (h *Handlers) HandleAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		authURL, state, err := h.service.AuthorizationURL(provider)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     "/",
			MaxAge:   int(stateCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}
}

// HandleCallback completes the login and redirects to the frontend callback
// page with the token and the public user document in the query string.
func (h *Handlers) HandleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		code := r.URL.Query().Get("code")
		if code == "" {
			auth.WriteError(w, r, apperror.NewValidationError("missing authorization code", nil))
			return
		}

		if err := h.verifyState(r); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		h.clearStateCookie(w, r)

		result, err := h.service.HandleCallback(r.Context(), provider, code)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		userJSON, err := json.Marshal(result.User)
		if err != nil {
			auth.WriteError(w, r, apperror.NewInternalError("failed to encode user document", err))
			return
		}

		redirectURL := fmt.Sprintf("%s/auth/callback?token=%s&user=%s",
			h.frontendURL,
			url.QueryEscape(result.Token),
			url.QueryEscape(string(userJSON)))

		http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
	}
}

// verifyState compares the state parameter against the cookie set during the
// authorize step. A missing cookie is tolerated so logins started on another
// device or with cookies disabled still complete.
func (h *Handlers) verifyState(r *http.Request) error {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return nil
	}
	if state := r.URL.Query().Get("state"); state != cookie.Value {
		return apperror.NewOAuthError("oauth state mismatch", nil)
	}
	return nil
}

func (h *Handlers) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
