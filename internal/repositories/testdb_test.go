package repositories_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// newTestDB opens a private in-memory SQLite database. A single connection
// makes SQLite serialize transactions the way row locks do on PostgreSQL.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := repositories.GORMConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Name: "Test " + string(role), Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, repositories.NewGORMUserRepository(db).Create(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       10,
		Category:    "general",
		ImageURL:    "https://img.example.com/" + name,
	}
	require.NoError(t, repositories.NewGORMProductRepository(db).Create(context.Background(), product))
	return product
}
