// Package oauth implements third-party login for Google and Discord: the
// authorization-code exchange, profile fetching, and the reconciliation of
// provider identities against the user store. Both provider schemas are
// normalized into one identity record before any shared logic runs.
package oauth

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/config"
	"github.com/user/formanga-auth/users"
)

// Provider bundles the oauth2 client configuration with the provider's
// userinfo endpoint and the function that maps its profile schema onto the
// shared identity record.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	Normalize   func(body []byte) (users.OAuthIdentity, error)
}

// Provider names double as the stored provider discriminator.
const (
	ProviderGoogle  = "google"
	ProviderDiscord = "discord"
)

const discordCDNBase = "https://cdn.discordapp.com"

// NewGoogleProvider builds the Google provider. Scopes request email and
// profile; Google always supplies a verified email in the userinfo payload.
func NewGoogleProvider(cfg config.OAuthProviderConfig, backendURL string) *Provider {
	return &Provider{
		Name: ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/google/callback", backendURL),
			Scopes:       []string{"email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://www.googleapis.com/oauth2/v4/token",
			},
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Normalize:   normalizeGoogle,
	}
}

// NewDiscordProvider builds the Discord provider. Scopes request identify
// and email; the email can still be absent when the Discord account has no
// verified address.
func NewDiscordProvider(cfg config.OAuthProviderConfig, backendURL string) *Provider {
	return &Provider{
		Name: ProviderDiscord,
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/discord/callback", backendURL),
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
		UserInfoURL: "https://discord.com/api/users/@me",
		Normalize:   normalizeDiscord,
	}
}

// DefaultProviders wires both providers from configuration, keyed by name.
func DefaultProviders(cfg *config.OAuthConfig, backendURL string) map[string]*Provider {
	return map[string]*Provider{
		ProviderGoogle:  NewGoogleProvider(cfg.Google, backendURL),
		ProviderDiscord: NewDiscordProvider(cfg.Discord, backendURL),
	}
}

// fallbackUsername derives a display username from the provider subject id
// when the profile carries no usable name.
func fallbackUsername(providerID string) string {
	prefix := providerID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "user_" + prefix
}

// optional converts an empty string into a nil pointer.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type googleUserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture"`
	GivenName string `json:"given_name"`
}

func normalizeGoogle(body []byte) (users.OAuthIdentity, error) {
	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return users.OAuthIdentity{}, apperror.NewOAuthError("failed to decode google profile", err)
	}
	if info.Email == "" {
		return users.OAuthIdentity{}, apperror.NewOAuthError("google profile has no email", nil)
	}

	username := info.GivenName
	if username == "" {
		username = info.Name
	}
	if username == "" {
		username = fallbackUsername(info.ID)
	}

	return users.OAuthIdentity{
		Provider:    ProviderGoogle,
		ProviderID:  info.ID,
		Email:       info.Email,
		Username:    username,
		DisplayName: optional(info.Name),
		AvatarURL:   optional(info.Picture),
	}, nil
}

type discordUserInfo struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      *string `json:"email"`
	Avatar     *string `json:"avatar"`
	GlobalName *string `json:"global_name"`
}

func normalizeDiscord(body []byte) (users.OAuthIdentity, error) {
	var info discordUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return users.OAuthIdentity{}, apperror.NewOAuthError("failed to decode discord profile", err)
	}
	if info.Email == nil || *info.Email == "" {
		return users.OAuthIdentity{}, apperror.NewOAuthError("discord account must have a verified email", nil)
	}

	username := ""
	if info.GlobalName != nil {
		username = *info.GlobalName
	}
	if username == "" {
		username = info.Username
	}
	if username == "" {
		username = fallbackUsername(info.ID)
	}

	var avatarURL *string
	if info.Avatar != nil && *info.Avatar != "" {
		url := fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, info.ID, *info.Avatar)
		avatarURL = &url
	}

	displayName := info.GlobalName
	if displayName == nil || *displayName == "" {
		displayName = optional(info.Username)
	}

	return users.OAuthIdentity{
		Provider:    ProviderDiscord,
		ProviderID:  info.ID,
		Email:       *info.Email,
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	}, nil
}
