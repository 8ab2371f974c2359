package auth

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/i18n"
	"github.com/user/formanga-auth/mail"
	"github.com/user/formanga-auth/users"
)

// Service is the identity service. It owns the business rules for the
// account lifecycle: registration, login, email verification, password
// reset, and session resolution. Persistence, hashing, signing, mail, and
// translation are all injected.
type Service struct {
	repo       users.Repository
	tokens     *TokenService
	mailer     *mail.Service
	translator *i18n.Translator
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewService creates the identity service.
func NewService(repo users.Repository, tokens *TokenService, mailer *mail.Service, translator *i18n.Translator, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		mailer:     mailer,
		translator: translator,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Register creates a local account in the unverified state and mails the
// verification link. If the mail send fails after the row was created the
// error is Internal and the account stays; the caller recovers through
// resend-verification. There is no compensating rollback.
func (s *Service) Register(ctx context.Context, req RegisterRequest, locale string) (*users.Response, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	accountLocale := i18n.DefaultLocale
	if req.Locale != nil {
		if !i18n.IsSupported(*req.Locale) {
			return nil, apperror.NewValidationError("unsupported locale", nil)
		}
		accountLocale = *req.Locale
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	verificationToken, err := GenerateSecret()
	if err != nil {
		return nil, apperror.NewInternalError("failed to generate verification token", err)
	}

	user, err := s.repo.Insert(ctx, users.NewUser{
		Email:             req.Email,
		Username:          req.Username,
		PasswordHash:      passwordHash,
		DisplayName:       req.DisplayName,
		Locale:            accountLocale,
		VerificationToken: verificationToken,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, verificationToken); err != nil {
		s.logger.Error("failed to send verification email", zap.Error(err))
		return nil, apperror.NewInternalError("failed to send verification email", err)
	}

	resp := user.ToResponse()
	return &resp, nil
}

// Login authenticates local credentials and issues a bearer token. Every
// credential failure returns the same generic message: user not found, an
// OAuth-only account, a missing hash, and a wrong password are
// indistinguishable to the caller. An unverified account fails with its own
// message once the credentials matched.
func (s *Service) Login(ctx context.Context, req LoginRequest, locale string) (*AuthResponse, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	invalidCredentials := func() error {
		return apperror.NewAuthenticationError(s.translator.Translate(locale, "invalid-credentials"), nil)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsLocal() || user.PasswordHash == nil {
		return nil, invalidCredentials()
	}

	ok, err := VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil || !ok {
		return nil, invalidCredentials()
	}

	if !user.IsVerified {
		return nil, apperror.NewAuthenticationError(s.translator.Translate(locale, "account-not-verified"), nil)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue token", err)
	}

	return &AuthResponse{User: user.ToResponse(), Token: token}, nil
}

// VerifyEmail consumes a live verification token and transitions the
// account to Verified. Consumption is a single conditional update in the
// repository, so a second attempt with the same token fails even when the
// attempts run concurrently.
func (s *Service) VerifyEmail(ctx context.Context, token, locale string) error {
	ok, err := s.repo.ConsumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewAuthenticationError(s.translator.Translate(locale, "invalid-token"), nil)
	}
	return nil
}

// ResendVerification rotates the verification token and mails it again.
func (s *Service) ResendVerification(ctx context.Context, email, locale string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NewNotFoundError(s.translator.Translate(locale, "user-not-found"), nil)
	}
	if user.IsVerified {
		return apperror.NewValidationError(s.translator.Translate(locale, "email-already-verified"), nil)
	}

	verificationToken, err := GenerateSecret()
	if err != nil {
		return apperror.NewInternalError("failed to generate verification token", err)
	}
	if err := s.repo.RotateVerificationToken(ctx, user.ID, verificationToken); err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, verificationToken); err != nil {
		return apperror.NewEmailError("failed to send verification email", err)
	}
	return nil
}

// ForgotPassword creates a reset token and mails it. A missing account is a
// silent success so the endpoint does not leak which emails exist; an
// OAuth-provisioned account fails Validation instead, an intentional
// asymmetry versus the not-found case.
func (s *Service) ForgotPassword(ctx context.Context, email, locale string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user != nil && !user.IsLocal() {
		return apperror.NewValidationError(s.translator.Translate(locale, "oauth-password-reset-not-allowed"), nil)
	}

	resetToken, err := GenerateSecret()
	if err != nil {
		return apperror.NewInternalError("failed to generate reset token", err)
	}

	created, err := s.repo.CreateResetToken(ctx, email, resetToken)
	if err != nil {
		return err
	}
	if !created || user == nil {
		// No matching account. Report success with no effect.
		return nil
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Username, resetToken); err != nil {
		return apperror.NewEmailError("failed to send password reset email", err)
	}
	return nil
}

// ResetPassword consumes a live reset token and installs the new password.
// Consumption is a single conditional update, so concurrent attempts with
// the same token succeed at most once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, locale string) error {
	if len(newPassword) < 8 {
		return apperror.NewValidationError(s.translator.Translate(locale, "password-too-short"), nil)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	ok, err := s.repo.ConsumeResetToken(ctx, token, passwordHash)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewAuthenticationError(s.translator.Translate(locale, "invalid-token"), nil)
	}
	return nil
}

// ResolveSession verifies a bearer token and loads its user. This backs the
// authenticated-request middleware.
func (s *Service) ResolveSession(ctx context.Context, token string) (*users.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperror.NewAuthenticationError("invalid token", err)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NewAuthenticationError("user not found", nil)
	}
	return user, nil
}

// UpdateLocale persists a new preferred locale for the user.
func (s *Service) UpdateLocale(ctx context.Context, userID uuid.UUID, locale string) (*users.Response, error) {
	if !i18n.IsSupported(locale) {
		return nil, apperror.NewValidationError("unsupported locale", nil)
	}
	updated, err := s.repo.UpdateLocale(ctx, userID, locale)
	if err != nil {
		return nil, err
	}
	resp := updated.ToResponse()
	return &resp, nil
}
