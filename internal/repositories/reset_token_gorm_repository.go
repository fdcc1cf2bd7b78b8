package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMResetTokenRepository is a GORM implementation of ResetTokenRepository.
type GORMResetTokenRepository struct {
	db *gorm.DB
}

// NewGORMResetTokenRepository creates a new instance of GORMResetTokenRepository.
func NewGORMResetTokenRepository(db *gorm.DB) *GORMResetTokenRepository {
	return &GORMResetTokenRepository{db: db}
}

// Create stores a new unused token.
func (r *GORMResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	token.Used = false
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return apperrors.Storage("create reset token", err)
	}
	return nil
}

// Redeem marks the token used with a conditional update, so of two concurrent
// redemptions only one sees a row affected; the password change commits in
// the same transaction.
func (r *GORMResetTokenRepository) Redeem(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (uint, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		err := tx.Where("token_hash = ? AND used = ?", tokenHash, false).First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidOrExpiredToken
		}
		if err != nil {
			return apperrors.Storage("find reset token", err)
		}
		if token.Expired(now) {
			return apperrors.ErrInvalidOrExpiredToken
		}

		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used = ?", token.ID, false).
			Update("used", true)
		if res.Error != nil {
			return apperrors.Storage("mark reset token used", res.Error)
		}
		if res.RowsAffected != 1 {
			return apperrors.ErrInvalidOrExpiredToken
		}

		res = tx.Model(&models.User{}).
			Where("id = ?", token.UserID).
			Update("password_hash", newPasswordHash)
		if res.Error != nil {
			return apperrors.Storage("update password", res.Error)
		}
		if res.RowsAffected != 1 {
			return apperrors.ErrInvalidOrExpiredToken
		}
		userID = token.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
