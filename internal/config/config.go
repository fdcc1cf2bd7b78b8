// Package config builds the immutable process configuration from the
// environment (and an optional .env file) at startup.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config is constructed once in main and passed by value to constructors.
type Config struct {
	AppPort     string
	DatabaseDSN string

	JWT      JWTConfig
	SMTP     SMTPConfig
	RabbitMQ string
	Redis    string

	BcryptCost            int
	ResetTokenTTL         time.Duration
	ResetPasswordURL      string
	UniformForgotPassword bool

	RateLimitRequests int
	RateLimitWindow   time.Duration

	SeedCatalog bool
}

// JWTConfig holds the signing secret and token lifetimes.
type JWTConfig struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Enabled reports whether mail can be sent at all.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Load reads .env (if present) and the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_HOSTNAME", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USERNAME", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "storefront")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("RESET_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("RESET_PASSWORD_URL", "http://localhost:3000/reset-password")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("RATE_LIMIT_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("UNIFORM_FORGOT_PASSWORD", false)
	v.SetDefault("SEED_CATALOG", false)
}

// FromViper builds and validates a Config from an already populated viper
// instance. Tests use it with explicit Set calls.
func FromViper(v *viper.Viper) (Config, error) {
	dsn := v.GetString("DATABASE_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			v.GetString("DB_HOSTNAME"), v.GetString("DB_USERNAME"), v.GetString("DB_PASSWORD"),
			v.GetString("DB_NAME"), v.GetString("DB_PORT"))
	}

	cfg := Config{
		AppPort:     v.GetString("APP_PORT"),
		DatabaseDSN: dsn,
		JWT: JWTConfig{
			Secret:     v.GetString("SECRET_KEY"),
			Algorithm:  v.GetString("ALGORITHM"),
			AccessTTL:  time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
			RefreshTTL: time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			From:     v.GetString("SMTP_EMAIL"),
			Password: v.GetString("SMTP_PASSWORD"),
		},
		RabbitMQ:              v.GetString("RABBITMQ_URL"),
		Redis:                 v.GetString("REDIS_URL"),
		BcryptCost:            v.GetInt("BCRYPT_COST"),
		ResetTokenTTL:         time.Duration(v.GetInt("RESET_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		ResetPasswordURL:      v.GetString("RESET_PASSWORD_URL"),
		UniformForgotPassword: v.GetBool("UNIFORM_FORGOT_PASSWORD"),
		RateLimitRequests:     v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:       v.GetDuration("RATE_LIMIT_WINDOW"),
		SeedCatalog:           v.GetBool("SEED_CATALOG"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("SECRET_KEY is required")
	}
	if !supportedAlgorithms[c.JWT.Algorithm] {
		return fmt.Errorf("unsupported ALGORITHM %q (want HS256, HS384 or HS512)", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("RESET_TOKEN_EXPIRE_MINUTES must be positive")
	}
	return nil
}
