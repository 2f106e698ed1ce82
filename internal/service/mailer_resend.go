package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendMailer delivers verification and password-reset emails through the
// Resend API.
type ResendMailer struct {
	Client     *resend.Client
	From       string
	AppBaseURL string
	VerifyPath string
	ResetPath  string
}

func NewResendMailer(apiKey string, from string, appBaseURL string) *ResendMailer {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendMailer{}
	}
	return &ResendMailer{
		Client:     resend.NewClient(apiKey),
		From:       from,
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}
}

func (m *ResendMailer) SendVerificationEmail(ctx context.Context, email string, token string) error {
	link := m.buildURL(m.VerifyPath, token)
	return m.send(ctx, email, "Verify your email",
		fmt.Sprintf("<p>Click to verify your email:</p><p><a href=\"%s\">Verify Email</a></p>", link),
		fmt.Sprintf("Verify your email: %s", link))
}

func (m *ResendMailer) SendPasswordResetEmail(ctx context.Context, email string, token string) error {
	link := m.buildURL(m.ResetPath, token)
	return m.send(ctx, email, "Reset your password",
		fmt.Sprintf("<p>Click to reset your password:</p><p><a href=\"%s\">Reset Password</a></p>", link),
		fmt.Sprintf("Reset your password: %s", link))
}

func (m *ResendMailer) buildURL(path string, token string) string {
	if m.AppBaseURL == "" {
		return token
	}
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s%s?token=%s", m.AppBaseURL, path, token)
}

func (m *ResendMailer) send(ctx context.Context, to string, subject string, html string, text string) error {
	// Delivery is disabled when no API key is configured; accounts still work,
	// they just never receive the links.
	if m.Client == nil {
		return nil
	}
	_, err := m.Client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	return err
}
