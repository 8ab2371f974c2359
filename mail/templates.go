package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

// Service renders the identity-flow messages and hands them to a Sender.
type Service struct {
	sender      Sender
	frontendURL string
}

// NewService creates a mail service. Links in the messages point at the
// frontend, which completes the flows by calling back into the API.
func NewService(sender Sender, frontendURL string) *Service {
	return &Service{sender: sender, frontendURL: frontendURL}
}

type emailData struct {
	Username string
	URL      string
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<html>
	<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<div style="background-color: #f8f9fa; padding: 20px; border-radius: 10px;">
			<h2 style="color: #333; text-align: center;">Email Verification</h2>
			<p>Hello <strong>{{.Username}}</strong>,</p>
			<p>Thank you for registering with ForMangaReaders! Please click the button below to verify your email address:</p>
			<div style="text-align: center; margin: 30px 0;">
				<a href="{{.URL}}" style="background-color: #007bff; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Verify Email</a>
			</div>
			<p>If the button doesn't work, you can copy and paste this link into your browser:</p>
			<p style="word-break: break-all; color: #666;">{{.URL}}</p>
			<p style="color: #666; font-size: 12px; margin-top: 30px;">This link will expire in 24 hours. If you didn't create an account, please ignore this email.</p>
		</div>
	</body>
</html>
`))

var passwordResetTemplate = template.Must(template.New("reset").Parse(`
<html>
	<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<div style="background-color: #f8f9fa; padding: 20px; border-radius: 10px;">
			<h2 style="color: #333; text-align: center;">Password Reset</h2>
			<p>Hello <strong>{{.Username}}</strong>,</p>
			<p>You requested to reset your password. Click the button below to set a new password:</p>
			<div style="text-align: center; margin: 30px 0;">
				<a href="{{.URL}}" style="background-color: #dc3545; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Reset Password</a>
			</div>
			<p>If the button doesn't work, you can copy and paste this link into your browser:</p>
			<p style="word-break: break-all; color: #666;">{{.URL}}</p>
			<p style="color: #666; font-size: 12px; margin-top: 30px;">This link will expire in 1 hour. If you didn't request a password reset, please ignore this email.</p>
		</div>
	</body>
</html>
`))

func render(tmpl *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

// SendVerificationEmail mails the verification link for a freshly generated
// token.
func (s *Service) SendVerificationEmail(ctx context.Context, to, username, token string) error {
	url := fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, token)
	body, err := render(verificationTemplate, emailData{Username: username, URL: url})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, to, "Verify your email address", body)
}

// SendPasswordResetEmail mails the reset link for a freshly generated token.
func (s *Service) SendPasswordResetEmail(ctx context.Context, to, username, token string) error {
	url := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	body, err := render(passwordResetTemplate, emailData{Username: username, URL: url})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, to, "Reset your password", body)
}
