package users

import (
	"context"

	"github.com/google/uuid"
)

// NewUser carries the fields persisted when a local account registers. The
// verification token is generated by the caller so the service layer can put
// the same token into the verification email; the repository owns the expiry
// window.
type NewUser struct {
	Email             string
	Username          string
	PasswordHash      string
	DisplayName       *string
	Locale            string
	VerificationToken string
}

// OAuthIdentity is the normalized external identity fed into reconciliation.
// Both provider schemas (Google, Discord) are reduced to this shape before
// they reach the repository.
type OAuthIdentity struct {
	Provider    string
	ProviderID  string
	Email       string
	Username    string
	DisplayName *string
	AvatarURL   *string
}

// Repository is the persistence contract for identity records. Find methods
// return (nil, nil) when no row matches; errors are reserved for transport
// and storage failures, surfaced as apperror.DatabaseError, except Insert and
// UpsertOAuthUser which also surface apperror.ConflictError on uniqueness
// violations.
type Repository interface {
	// FindByEmail returns the user with the given email, exact match.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns the user with the given id.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByVerificationToken returns the user holding the token, only when
	// the token has not expired.
	FindByVerificationToken(ctx context.Context, token string) (*User, error)
	// Insert persists a new local account in the unverified state.
	Insert(ctx context.Context, n NewUser) (*User, error)
	// ConsumeVerificationToken atomically marks the holder of a live
	// verification token verified and clears the pair, only where the token
	// matches and is unexpired. It reports whether a row was affected, so
	// concurrent attempts with the same token succeed at most once.
	ConsumeVerificationToken(ctx context.Context, token string) (bool, error)
	// RotateVerificationToken replaces the verification token pair with the
	// given token and a 24h expiry.
	RotateVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	// CreateResetToken attaches the given reset token with a 1h expiry to
	// the account with the given email. It reports false when no account
	// matched, which callers treat as success-with-no-effect.
	CreateResetToken(ctx context.Context, email, token string) (bool, error)
	// ConsumeResetToken atomically sets the password hash and clears the
	// reset pair where the token matches and is unexpired. It reports
	// whether a row was affected.
	ConsumeResetToken(ctx context.Context, token, newPasswordHash string) (bool, error)
	// UpsertOAuthUser applies the reconciliation policy: create a new
	// verified account, return an existing (provider, provider_id) match
	// unchanged, or link onto an existing local account.
	UpsertOAuthUser(ctx context.Context, identity OAuthIdentity) (*User, error)
	// UpdateLocale sets the preferred locale and returns the updated user.
	UpdateLocale(ctx context.Context, id uuid.UUID, locale string) (*User, error)
}
