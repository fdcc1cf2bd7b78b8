// Package mailer delivers password-reset mail over SMTP, either directly in a
// background goroutine or through a RabbitMQ job queue.
package mailer

import (
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"storefront/internal/metrics"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the SMTP breaker rejects sends.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config holds outbound SMTP settings.
type Config struct {
	Host     string
	Port     int
	From     string
	Password string

	// Breaker tuning. Zero values use the defaults below.
	MaxFailures  uint32
	ResetTimeout time.Duration
}

// Sender sends a single plain-text message.
type Sender interface {
	Send(to, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through one SMTP relay guarded by a circuit breaker.
type SMTPSender struct {
	cfg      Config
	breaker  *gobreaker.CircuitBreaker[struct{}]
	sendMail sendFunc
}

// NewSMTPSender creates an SMTPSender. The breaker opens after MaxFailures
// consecutive failures and probes again after ResetTimeout.
func NewSMTPSender(cfg Config) *SMTPSender {
	return newSMTPSender(cfg, smtp.SendMail)
}

func newSMTPSender(cfg Config, send sendFunc) *SMTPSender {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}
	return &SMTPSender{
		cfg:      cfg,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](settings),
		sendMail: send,
	}
}

// State exposes the breaker state.
func (s *SMTPSender) State() gobreaker.State {
	return s.breaker.State()
}

// Send delivers one message to a single recipient.
func (s *SMTPSender) Send(to, subject, body string) error {
	if s.cfg.Host == "" {
		return errors.New("SMTP host is not configured")
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("invalid mail header value")
	}

	msg := buildMessage(s.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	}

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.sendMail(addr, auth, s.cfg.From, []string{to}, msg)
	})
	switch {
	case err == nil:
		metrics.MailDeliveries.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MailDeliveries.WithLabelValues("rejected").Inc()
	default:
		metrics.MailDeliveries.WithLabelValues("failed").Inc()
	}
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
