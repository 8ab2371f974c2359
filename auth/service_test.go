package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/i18n"
	"github.com/user/formanga-auth/mail"
	"github.com/user/formanga-auth/users"
)

// fakeRepository is an in-memory users.Repository mirroring the interface
// contract: Find methods return (nil, nil) on no match, Insert rejects
// duplicate emails and usernames with a Conflict error.
type fakeRepository struct {
	byEmail map[string]*users.User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byEmail: make(map[string]*users.User)}
}

func (f *fakeRepository) add(u *users.User) *users.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.byEmail[u.Email] = u
	return u
}

func (f *fakeRepository) FindByEmail(_ context.Context, email string) (*users.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) FindByVerificationToken(_ context.Context, token string) (*users.User, error) {
	for _, u := range f.byEmail {
		if u.VerificationToken != nil && *u.VerificationToken == token &&
			u.VerificationExpiresAt != nil && u.VerificationExpiresAt.After(time.Now()) {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) Insert(_ context.Context, n users.NewUser) (*users.User, error) {
	if _, exists := f.byEmail[n.Email]; exists {
		return nil, apperror.NewConflictError("email already registered", nil)
	}
	for _, u := range f.byEmail {
		if u.Username == n.Username {
			return nil, apperror.NewConflictError("username already taken", nil)
		}
	}
	hash := n.PasswordHash
	token := n.VerificationToken
	expires := time.Now().Add(24 * time.Hour)
	return f.add(&users.User{
		Email:                 n.Email,
		Username:              n.Username,
		PasswordHash:          &hash,
		DisplayName:           n.DisplayName,
		Role:                  users.RoleUser,
		VerificationToken:     &token,
		VerificationExpiresAt: &expires,
		Provider:              users.ProviderLocal,
		Locale:                n.Locale,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}), nil
}

func (f *fakeRepository) ConsumeVerificationToken(_ context.Context, token string) (bool, error) {
	for _, u := range f.byEmail {
		if u.VerificationToken != nil && *u.VerificationToken == token &&
			u.VerificationExpiresAt != nil && u.VerificationExpiresAt.After(time.Now()) {
			u.IsVerified = true
			u.VerificationToken = nil
			u.VerificationExpiresAt = nil
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) RotateVerificationToken(_ context.Context, id uuid.UUID, token string) error {
	for _, u := range f.byEmail {
		if u.ID == id {
			expires := time.Now().Add(24 * time.Hour)
			u.VerificationToken = &token
			u.VerificationExpiresAt = &expires
			return nil
		}
	}
	return apperror.NewNotFoundError("user not found", nil)
}

func (f *fakeRepository) CreateResetToken(_ context.Context, email, token string) (bool, error) {
	u, exists := f.byEmail[email]
	if !exists {
		return false, nil
	}
	expires := time.Now().Add(time.Hour)
	u.ResetToken = &token
	u.ResetExpiresAt = &expires
	return true, nil
}

func (f *fakeRepository) ConsumeResetToken(_ context.Context, token, newPasswordHash string) (bool, error) {
	for _, u := range f.byEmail {
		if u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetExpiresAt != nil && u.ResetExpiresAt.After(time.Now()) {
			hash := newPasswordHash
			u.PasswordHash = &hash
			u.ResetToken = nil
			u.ResetExpiresAt = nil
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) UpsertOAuthUser(_ context.Context, identity users.OAuthIdentity) (*users.User, error) {
	providerID := identity.ProviderID
	return f.add(&users.User{
		Email:       identity.Email,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Role:        users.RoleUser,
		IsVerified:  true,
		Provider:    identity.Provider,
		ProviderID:  &providerID,
		Locale:      i18n.DefaultLocale,
	}), nil
}

func (f *fakeRepository) UpdateLocale(_ context.Context, id uuid.UUID, locale string) (*users.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			u.Locale = locale
			return u, nil
		}
	}
	return nil, apperror.NewNotFoundError("user not found", nil)
}

// fakeSender records outbound emails and can be forced to fail.
type fakeSender struct {
	sent []sentEmail
	fail error
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

func (f *fakeSender) Send(_ context.Context, to, subject, htmlBody string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func newTestService(t *testing.T, repo users.Repository, sender *fakeSender) *Service {
	t.Helper()
	translator, err := i18n.New()
	if err != nil {
		t.Fatalf("i18n.New error: %v", err)
	}
	tokens := NewTokenService("test-secret", time.Hour)
	mailer := mail.NewService(sender, "http://localhost:3000")
	return NewService(repo, tokens, mailer, translator, zap.NewNop())
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		Email:    "reader@example.com",
		Username: "reader",
		Password: "password123",
	}
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)

	resp, err := svc.Register(context.Background(), registerRequest(), "en")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if resp.Email != "reader@example.com" {
		t.Fatalf("unexpected email: %q", resp.Email)
	}
	if resp.IsVerified {
		t.Fatal("new account must start unverified")
	}
	if resp.Provider != users.ProviderLocal {
		t.Fatalf("unexpected provider: %q", resp.Provider)
	}

	stored := repo.byEmail["reader@example.com"]
	if stored.PasswordHash == nil || *stored.PasswordHash == "password123" {
		t.Fatal("password must be stored hashed")
	}
	if stored.VerificationToken == nil || len(*stored.VerificationToken) != 32 {
		t.Fatal("expected a 32-character verification token")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, *stored.VerificationToken) {
		t.Fatal("verification email must carry the stored token")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})

	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}

	req := registerRequest()
	req.Username = "other"
	_, err := svc.Register(context.Background(), req, "en")
	if !apperror.IsConflict(err) {
		t.Fatalf("expected Conflict error, got %v", err)
	}
}

func TestRegister_InvalidShape(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeRepository(), &fakeSender{})

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Username: "reader", Password: "password123"}},
		{"short username", RegisterRequest{Email: "reader@example.com", Username: "ab", Password: "password123"}},
		{"short password", RegisterRequest{Email: "reader@example.com", Username: "reader", Password: "short"}},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.req, "en")
		if !apperror.IsValidation(err) {
			t.Fatalf("%s: expected Validation error, got %v", tc.name, err)
		}
	}
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	sender := &fakeSender{fail: errors.New("smtp down")}
	svc := newTestService(t, repo, sender)

	_, err := svc.Register(context.Background(), registerRequest(), "en")
	if err == nil {
		t.Fatal("expected error when the mail send fails")
	}
	if repo.byEmail["reader@example.com"] == nil {
		t.Fatal("account must survive a failed verification email")
	}
}

// registerVerified registers and verifies an account through the service.
func registerVerified(t *testing.T, svc *Service, repo *fakeRepository) {
	t.Helper()
	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token := *repo.byEmail["reader@example.com"].VerificationToken
	if err := svc.VerifyEmail(context.Background(), token, "en"); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "password123"}, "en")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a bearer token")
	}

	claims, err := svc.tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Email != "reader@example.com" {
		t.Fatalf("token email mismatch: %q", claims.Email)
	}
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	providerID := "g-123"
	repo.add(&users.User{
		Email:      "oauth@example.com",
		Username:   "oauthonly",
		Provider:   "google",
		ProviderID: &providerID,
		IsVerified: true,
		Role:       users.RoleUser,
	})

	// A wrong password, an unknown email, and an OAuth-only account must be
	// indistinguishable to the caller.
	cases := []LoginRequest{
		{Email: "reader@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password123"},
		{Email: "oauth@example.com", Password: "password123"},
	}

	var messages []string
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req, "en")
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected AppError, got %v", err)
		}
		if appErr.Kind != apperror.AuthenticationError {
			t.Fatalf("expected Authentication error, got %v", appErr.Kind)
		}
		messages = append(messages, appErr.Message)
	}
	if messages[0] != messages[1] || messages[1] != messages[2] {
		t.Fatalf("failure messages must not differ: %v", messages)
	}
}

func TestLogin_UnverifiedAccount(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "password123"}, "en")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Kind != apperror.AuthenticationError {
		t.Fatalf("expected Authentication error, got %v", err)
	}
	if appErr.Message == "" || strings.Contains(strings.ToLower(appErr.Message), "invalid") {
		t.Fatalf("unverified account must get its own message, got %q", appErr.Message)
	}
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	token := *repo.byEmail["reader@example.com"].VerificationToken

	if err := svc.VerifyEmail(context.Background(), token, "en"); err != nil {
		t.Fatalf("first VerifyEmail error: %v", err)
	}
	if !repo.byEmail["reader@example.com"].IsVerified {
		t.Fatal("account must be verified")
	}

	err := svc.VerifyEmail(context.Background(), token, "en")
	if !apperror.IsAuthentication(err) {
		t.Fatalf("second use must fail with Authentication, got %v", err)
	}
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	user := repo.byEmail["reader@example.com"]
	token := *user.VerificationToken
	past := time.Now().Add(-time.Minute)
	user.VerificationExpiresAt = &past

	err := svc.VerifyEmail(context.Background(), token, "en")
	if !apperror.IsAuthentication(err) {
		t.Fatalf("expired token must fail with Authentication, got %v", err)
	}
	if user.IsVerified {
		t.Fatal("account must stay unverified")
	}
}

func TestResendVerification(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)
	if _, err := svc.Register(context.Background(), registerRequest(), "en"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	first := *repo.byEmail["reader@example.com"].VerificationToken

	if err := svc.ResendVerification(context.Background(), "reader@example.com", "en"); err != nil {
		t.Fatalf("ResendVerification error: %v", err)
	}

	second := *repo.byEmail["reader@example.com"].VerificationToken
	if first == second {
		t.Fatal("resend must rotate the verification token")
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[1].Body, second) {
		t.Fatal("resent email must carry the rotated token")
	}
}

func TestResendVerification_UnknownAndVerified(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	if err := svc.ResendVerification(context.Background(), "nobody@example.com", "en"); !apperror.IsNotFound(err) {
		t.Fatalf("unknown email: expected NotFound, got %v", err)
	}
	if err := svc.ResendVerification(context.Background(), "reader@example.com", "en"); !apperror.IsValidation(err) {
		t.Fatalf("verified account: expected Validation, got %v", err)
	}
}

func TestForgotPassword_SilentOnUnknownEmail(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)

	if err := svc.ForgotPassword(context.Background(), "nobody@example.com", "en"); err != nil {
		t.Fatalf("unknown email must be silent success, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no email must be sent for an unknown address")
	}
}

func TestForgotPassword_OAuthAccountRejected(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})

	providerID := "d-456"
	repo.add(&users.User{
		Email:      "oauth@example.com",
		Username:   "oauthonly",
		Provider:   "discord",
		ProviderID: &providerID,
		IsVerified: true,
		Role:       users.RoleUser,
	})

	err := svc.ForgotPassword(context.Background(), "oauth@example.com", "en")
	if !apperror.IsValidation(err) {
		t.Fatalf("expected Validation error for OAuth account, got %v", err)
	}
}

func TestResetPassword_FullCycle(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)
	registerVerified(t, svc, repo)

	if err := svc.ForgotPassword(context.Background(), "reader@example.com", "en"); err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}

	token := *repo.byEmail["reader@example.com"].ResetToken
	if err := svc.ResetPassword(context.Background(), token, "new-password-1", "en"); err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}

	// Old password rejected, new password accepted.
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "password123"}, "en"); err == nil {
		t.Fatal("old password must no longer work")
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "new-password-1"}, "en"); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}

	// Token is consumed.
	if err := svc.ResetPassword(context.Background(), token, "another-pass-2", "en"); !apperror.IsAuthentication(err) {
		t.Fatalf("consumed token must fail with Authentication, got %v", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	if err := svc.ForgotPassword(context.Background(), "reader@example.com", "en"); err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}

	user := repo.byEmail["reader@example.com"]
	token := *user.ResetToken
	past := time.Now().Add(-time.Minute)
	user.ResetExpiresAt = &past

	err := svc.ResetPassword(context.Background(), token, "new-password-1", "en")
	if !apperror.IsAuthentication(err) {
		t.Fatalf("expired token must fail with Authentication, got %v", err)
	}

	// The old password still works.
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "password123"}, "en"); err != nil {
		t.Fatalf("password must be unchanged, got %v", err)
	}
}

func TestResetPassword_ShortPassword(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeRepository(), &fakeSender{})

	err := svc.ResetPassword(context.Background(), "whatever-token", "short", "en")
	if !apperror.IsValidation(err) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestResolveSession(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "reader@example.com", Password: "password123"}, "en")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	user, err := svc.ResolveSession(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("ResolveSession error: %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Fatalf("unexpected user: %q", user.Email)
	}

	if _, err := svc.ResolveSession(context.Background(), "garbage"); !apperror.IsAuthentication(err) {
		t.Fatalf("expected Authentication error for bad token, got %v", err)
	}
}

func TestUpdateLocale(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeSender{})
	registerVerified(t, svc, repo)

	id := repo.byEmail["reader@example.com"].ID

	resp, err := svc.UpdateLocale(context.Background(), id, "tr")
	if err != nil {
		t.Fatalf("UpdateLocale error: %v", err)
	}
	if resp.Locale != "tr" {
		t.Fatalf("locale not updated: %q", resp.Locale)
	}

	if _, err := svc.UpdateLocale(context.Background(), id, "xx"); !apperror.IsValidation(err) {
		t.Fatalf("expected Validation error for unsupported locale, got %v", err)
	}
}
