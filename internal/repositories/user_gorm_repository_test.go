package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

func TestGORMUserRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := repositories.NewGORMUserRepository(db)

	user := &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "h", Role: models.RoleAdmin}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, models.RoleAdmin, byEmail.Role)

	_, err = repo.GetByID(ctx, user.ID+100)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	err = repo.Create(ctx, &models.User{Name: "Ada 2", Email: "ada@example.com", PasswordHash: "h", Role: models.RoleUser})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
