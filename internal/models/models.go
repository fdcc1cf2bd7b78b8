package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PasswordResetToken{},
		&Product{},
		&CartItem{},
		&Order{},
		&OrderItem{},
	}
}
