// Package users owns the persisted identity record and the repository that
// mutates it. All writes against the users table go through this package;
// business rules live in the auth and oauth services on top of it.
package users

import (
	"time"

	"github.com/google/uuid"
)

// ProviderLocal marks accounts created with local credentials. Any other
// provider value names the OAuth provider that attested the account.
const ProviderLocal = "local"

// Role is the permission level of a user. The ladder is ordered: Admin
// satisfies any requirement, Moderator satisfies Moderator and User, User
// satisfies only User.
type Role string

const (
	// RoleUser is the default role for new accounts.
	RoleUser Role = "user"
	// RoleModerator can act on content but not on other accounts.
	RoleModerator Role = "moderator"
	// RoleAdmin satisfies every role requirement.
	RoleAdmin Role = "admin"
)

// rank maps roles onto the ordering used for permission checks.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether r meets a requirement of at least required.
// Unknown roles satisfy nothing.
func (r Role) Satisfies(required Role) bool {
	return r.rank() >= required.rank() && r.rank() > 0
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// User is the identity record as stored. PasswordHash is nil exactly when the
// account was never given local credentials; ProviderID is non-nil exactly
// when Provider != "local". The verification and reset token pairs are set
// and cleared together.
type User struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	Username              string     `json:"username"`
	PasswordHash          *string    `json:"-"`
	DisplayName           *string    `json:"display_name"`
	AvatarURL             *string    `json:"avatar_url"`
	Role                  Role       `json:"role"`
	IsVerified            bool       `json:"is_verified"`
	VerificationToken     *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetToken            *string    `json:"-"`
	ResetExpiresAt        *time.Time `json:"-"`
	Provider              string     `json:"provider"`
	ProviderID            *string    `json:"-"`
	Locale                string     `json:"locale"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsLocal reports whether the account holds local credentials.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}

// Response is the public view of a user, safe to return to clients. It
// excludes the password hash and both token pairs.
type Response struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	Role        Role      `json:"role"`
	IsVerified  bool      `json:"is_verified"`
	Provider    string    `json:"provider"`
	Locale      string    `json:"locale"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToResponse projects the public view of the user.
func (u *User) ToResponse() Response {
	return Response{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		Provider:    u.Provider,
		Locale:      u.Locale,
		CreatedAt:   u.CreatedAt,
	}
}
