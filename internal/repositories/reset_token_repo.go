package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

// ResetTokenRepository persists password-reset grants.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// Redeem consumes the unused, unexpired token with the given digest and
	// sets its owner's password hash, atomically. It returns the owner's ID.
	Redeem(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (uint, error)
}
