package services

import "context"

// PasswordResetNotifier delivers a raw reset token to its owner. Delivery
// happens off the request path; implementations log their own failures.
type PasswordResetNotifier interface {
	NotifyPasswordReset(email, token string)
}

// EventPublisher sends a message to a named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type noopNotifier struct{}

func (noopNotifier) NotifyPasswordReset(string, string) {}
