package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// ResetQueue carries password-reset mail jobs.
const ResetQueue = "password_reset_mail"

// Publisher sends a message to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// ResetJob is the queued form of one reset mail.
type ResetJob struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// QueueNotifier enqueues reset mail for a consumer to deliver. When the
// broker rejects the job it falls back to sending in the background.
type QueueNotifier struct {
	publisher Publisher
	fallback  *ResetMailer
	timeout   time.Duration
}

// NewQueueNotifier creates a QueueNotifier. fallback may be nil.
func NewQueueNotifier(publisher Publisher, fallback *ResetMailer) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, fallback: fallback, timeout: 5 * time.Second}
}

// NotifyPasswordReset publishes a ResetJob in the background.
func (n *QueueNotifier) NotifyPasswordReset(email, token string) {
	go n.enqueue(email, token)
}

func (n *QueueNotifier) enqueue(email, token string) {
	body, err := json.Marshal(ResetJob{Email: email, Token: token})
	if err != nil {
		log.Printf("Failed to marshal reset job: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.publisher.Publish(ctx, ResetQueue, body); err != nil {
		log.Printf("Failed to enqueue password reset email: %v", err)
		if n.fallback != nil {
			n.fallback.NotifyPasswordReset(email, token)
		}
	}
}

// HandleResetJob returns a queue handler that delivers ResetJobs with m.
// Malformed jobs are acknowledged and dropped.
func HandleResetJob(m *ResetMailer) func(body []byte) error {
	return func(body []byte) error {
		var job ResetJob
		if err := json.Unmarshal(body, &job); err != nil || job.Email == "" || job.Token == "" {
			log.Printf("Dropping malformed reset job: %s", body)
			return nil
		}
		if err := m.Deliver(job.Email, job.Token); err != nil {
			return fmt.Errorf("deliver reset mail: %w", err)
		}
		return nil
	}
}
