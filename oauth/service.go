package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/auth"
	"github.com/user/formanga-auth/users"
)

const (
	userInfoTimeout = 10 * time.Second
	maxProfileBytes = 1 << 20
)

// Service drives a full OAuth login: authorization URL generation, code
// exchange, profile fetch, and reconciliation against the user store. The
// HTTP client is injectable so tests can point providers at local servers.
type Service struct {
	repo       users.Repository
	tokens     *auth.TokenService
	providers  map[string]*Provider
	httpClient *http.Client
	logger     *zap.Logger
}

func NewService(repo users.Repository, tokens *auth.TokenService, providers map[string]*Provider, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		providers:  providers,
		httpClient: &http.Client{Timeout: userInfoTimeout},
		logger:     logger,
	}
}

func (s *Service) provider(name string) (*Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperror.NewOAuthError(fmt.Sprintf("unsupported oauth provider: %s", name), nil)
	}
	return p, nil
}

// AuthorizationURL returns the provider consent URL along with the random
// state the caller must persist for the callback round trip.
func (s *Service) AuthorizationURL(providerName string) (string, string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", "", err
	}

	state, err := auth.GenerateSecret()
	if err != nil {
		return "", "", apperror.NewInternalError("failed to generate oauth state", err)
	}

	return p.Config.AuthCodeURL(state), state, nil
}

// HandleCallback finishes the login once the provider redirects back with an
// authorization code. It exchanges the code, fetches the profile, reconciles
// the identity against the user store, and issues a session token.
func (s *Service) HandleCallback(ctx context.Context, providerName, code string) (*auth.AuthResponse, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.NewOAuthError(fmt.Sprintf("failed to exchange %s authorization code", p.Name), err)
	}

	identity, err := s.fetchIdentity(ctx, p, token.AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpsertOAuthUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	sessionToken, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue session token", err)
	}

	s.logger.Info("oauth login completed",
		zap.String("provider", p.Name),
		zap.String("user_id", user.ID.String()))

	return &auth.AuthResponse{User: user.ToResponse(), Token: sessionToken}, nil
}

func (s *Service) fetchIdentity(ctx context.Context, p *Provider, accessToken string) (users.OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return users.OAuthIdentity{}, apperror.NewInternalError("failed to build userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return users.OAuthIdentity{}, apperror.NewOAuthError(fmt.Sprintf("failed to fetch %s profile", p.Name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return users.OAuthIdentity{}, apperror.NewOAuthError(
			fmt.Sprintf("%s userinfo request returned status %d", p.Name, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return users.OAuthIdentity{}, apperror.NewOAuthError(fmt.Sprintf("failed to read %s profile", p.Name), err)
	}

	return p.Normalize(body)
}
