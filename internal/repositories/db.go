package repositories

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// GORMConfig is the gorm configuration shared by every dialect. Error
// translation turns unique violations into gorm.ErrDuplicatedKey.
func GORMConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// OpenPostgres connects to PostgreSQL with the given DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GORMConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables of every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
