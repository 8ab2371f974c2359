package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/user/formanga-auth/apperror"
)

const (
	// pgUniqueViolation is the PostgreSQL error code for unique constraint
	// violations.
	pgUniqueViolation = "23505"

	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// userColumns is the canonical select list; every scan goes through scanUser
// with this ordering.
const userColumns = `id, email, username, password_hash, display_name, avatar_url, role,
	is_verified, verification_token, verification_expires_at, reset_token, reset_expires_at,
	provider, provider_id, locale, created_at, updated_at`

// PostgresRepository implements Repository against a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
	// strictLinking rejects OAuth callbacks whose email belongs to a
	// different provider identity instead of creating a second account.
	strictLinking bool
	logger        *zap.Logger
}

// NewPostgresRepository creates a repository over the shared pool.
func NewPostgresRepository(db *pgxpool.Pool, strictLinking bool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, strictLinking: strictLinking, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads one row in userColumns order.
func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.DisplayName,
		&u.AvatarURL,
		&u.Role,
		&u.IsVerified,
		&u.VerificationToken,
		&u.VerificationExpiresAt,
		&u.ResetToken,
		&u.ResetExpiresAt,
		&u.Provider,
		&u.ProviderID,
		&u.Locale,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// findOne runs a single-row query and maps the no-rows case to (nil, nil).
func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.NewDatabaseError("failed to query user", err)
	}
	return user, nil
}

// FindByEmail returns the user with the given email, exact match as stored.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

// FindByID returns the user with the given id.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByVerificationToken returns the holder of a live verification token.
// Expired tokens behave as if they do not exist.
func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE verification_token = $1 AND verification_expires_at > NOW()`
	return r.findOne(ctx, query, token)
}

// Insert persists a new local account in the unverified state. Uniqueness
// violations surface as Conflict errors naming the taken field.
func (r *PostgresRepository) Insert(ctx context.Context, n NewUser) (*User, error) {
	query := `
		INSERT INTO users (email, username, password_hash, display_name,
			verification_token, verification_expires_at, locale)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	expiresAt := time.Now().Add(verificationTokenTTL)
	user, err := scanUser(r.db.QueryRow(ctx, query,
		n.Email, n.Username, n.PasswordHash, n.DisplayName,
		n.VerificationToken, expiresAt, n.Locale,
	))
	if err != nil {
		return nil, r.mapInsertError(err)
	}
	return user, nil
}

// mapInsertError distinguishes email-taken from username-taken on 23505.
func (r *PostgresRepository) mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return apperror.NewConflictError("email already exists", nil)
		}
		if strings.Contains(pgErr.ConstraintName, "username") {
			return apperror.NewConflictError("username already exists", nil)
		}
	}
	return apperror.NewDatabaseError("failed to create user", err)
}

// ConsumeVerificationToken is a single conditional update: transition the
// holder of a live token to Verified and clear the pair only where the token
// matches and is unexpired. Concurrent attempts with the same token race on
// rows-affected, so exactly one wins.
func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE users
		SET is_verified = true, verification_token = NULL, verification_expires_at = NULL,
			updated_at = NOW()
		WHERE verification_token = $1 AND verification_expires_at > NOW()`
	tag, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return false, apperror.NewDatabaseError("failed to consume verification token", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RotateVerificationToken replaces the verification pair with a fresh 24h
// window. Any previous token stops matching immediately.
func (r *PostgresRepository) RotateVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `
		UPDATE users
		SET verification_token = $1, verification_expires_at = $2, updated_at = NOW()
		WHERE id = $3`
	expiresAt := time.Now().Add(verificationTokenTTL)
	if _, err := r.db.Exec(ctx, query, token, expiresAt, id); err != nil {
		return apperror.NewDatabaseError("failed to rotate verification token", err)
	}
	return nil
}

// CreateResetToken attaches a reset token with a 1h expiry to the matching
// account. The rows-affected count tells the caller whether an account
// exists without a separate lookup.
func (r *PostgresRepository) CreateResetToken(ctx context.Context, email, token string) (bool, error) {
	query := `
		UPDATE users
		SET reset_token = $1, reset_expires_at = $2, updated_at = NOW()
		WHERE email = $3`
	expiresAt := time.Now().Add(resetTokenTTL)
	tag, err := r.db.Exec(ctx, query, token, expiresAt, email)
	if err != nil {
		return false, apperror.NewDatabaseError("failed to create reset token", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ConsumeResetToken is a single conditional update: set the new hash and
// clear the pair only where the token matches and is unexpired. Concurrent
// attempts with the same token race on rows-affected, so exactly one wins.
func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token, newPasswordHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE reset_token = $2 AND reset_expires_at > NOW()`
	tag, err := r.db.Exec(ctx, query, newPasswordHash, token)
	if err != nil {
		return false, apperror.NewDatabaseError("failed to consume reset token", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertOAuthUser reconciles a normalized external identity against the
// store, keyed by email:
//
//   - no user: create one, verified immediately, the provider attested the
//     email
//   - same (provider, provider_id): return as-is, idempotent re-login
//   - local account: link provider onto it, force verified, fill display
//     name and avatar only where currently null
//   - different non-local provider: Conflict under strict linking;
//     otherwise the insert is attempted and the email unique constraint
//     decides, which also surfaces as Conflict
func (r *PostgresRepository) UpsertOAuthUser(ctx context.Context, identity OAuthIdentity) (*User, error) {
	existing, err := r.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	switch reconcileOAuth(existing, identity, r.strictLinking) {
	case reconcileReturnExisting:
		return existing, nil
	case reconcileLink:
		return r.linkOAuthUser(ctx, existing, identity)
	case reconcileConflict:
		return nil, apperror.NewConflictError("email already linked to another provider", nil)
	default:
		if existing != nil {
			r.logger.Warn("oauth email already belongs to another provider identity",
				zap.String("provider", identity.Provider))
		}
		return r.insertOAuthUser(ctx, identity)
	}
}

// linkOAuthUser attaches a provider identity to an existing local account.
// The merged profile keeps any display name or avatar the user already set.
func (r *PostgresRepository) linkOAuthUser(ctx context.Context, existing *User, identity OAuthIdentity) (*User, error) {
	displayName, avatarURL := linkProfile(existing, identity)
	query := `
		UPDATE users
		SET provider = $1, provider_id = $2, is_verified = true,
			display_name = $3, avatar_url = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		identity.Provider, identity.ProviderID, displayName, avatarURL, existing.ID,
	))
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to link oauth user", err)
	}
	return user, nil
}

func (r *PostgresRepository) insertOAuthUser(ctx context.Context, identity OAuthIdentity) (*User, error) {
	query := `
		INSERT INTO users (email, username, display_name, avatar_url,
			is_verified, provider, provider_id)
		VALUES ($1, $2, $3, $4, true, $5, $6)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		identity.Email, identity.Username, identity.DisplayName, identity.AvatarURL,
		identity.Provider, identity.ProviderID,
	))
	if err != nil {
		return nil, r.mapInsertError(err)
	}
	return user, nil
}

// UpdateLocale sets the preferred locale and returns the updated record.
func (r *PostgresRepository) UpdateLocale(ctx context.Context, id uuid.UUID, locale string) (*User, error) {
	query := `
		UPDATE users
		SET locale = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, locale, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("user not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to update locale", err)
	}
	return user, nil
}
