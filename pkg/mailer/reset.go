package mailer

import (
	"fmt"
	"log"
	"net/url"
	"time"
)

const resetSubject = "Password Reset Request"

// ResetMailer renders and sends password-reset mail.
type ResetMailer struct {
	sender   Sender
	resetURL string
	ttl      time.Duration
}

// NewResetMailer creates a ResetMailer linking to resetURL?token=<token>.
// ttl is the token lifetime quoted in the mail.
func NewResetMailer(sender Sender, resetURL string, ttl time.Duration) *ResetMailer {
	return &ResetMailer{sender: sender, resetURL: resetURL, ttl: ttl}
}

// Link returns the reset link for token.
func (m *ResetMailer) Link(token string) string {
	u, err := url.Parse(m.resetURL)
	if err != nil {
		return m.resetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Body renders the plain-text mail for token.
func (m *ResetMailer) Body(token string) string {
	return fmt.Sprintf("Click the link to reset your password: %s\n\n"+
		"The link expires in %d minutes. If you did not request a reset, ignore this email.\n",
		m.Link(token), int(m.ttl.Minutes()))
}

// Deliver sends the reset mail synchronously.
func (m *ResetMailer) Deliver(email, token string) error {
	return m.sender.Send(email, resetSubject, m.Body(token))
}

// NotifyPasswordReset sends the reset mail in the background.
func (m *ResetMailer) NotifyPasswordReset(email, token string) {
	go func() {
		if err := m.Deliver(email, token); err != nil {
			log.Printf("Failed to send password reset email: %v", err)
		}
	}()
}
