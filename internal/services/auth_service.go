package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
)

// SignUpInput carries a validated registration request.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// TokenPair is returned on successful sign-in.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthOptions tunes the password-reset flow.
type AuthOptions struct {
	ResetTokenTTL         time.Duration
	UniformForgotPassword bool
	Clock                 func() time.Time
}

// AuthService handles business logic for authentication and password resets.
type AuthService struct {
	users    repositories.UserRepository
	resets   repositories.ResetTokenRepository
	hasher   PasswordHasher
	tokens   *TokenService
	notifier PasswordResetNotifier

	resetTTL      time.Duration
	uniformForgot bool
	now           func() time.Time
}

// NewAuthService creates a new AuthService. A nil notifier drops reset mail.
func NewAuthService(
	users repositories.UserRepository,
	resets repositories.ResetTokenRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	notifier PasswordResetNotifier,
	opts AuthOptions,
) *AuthService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 30 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AuthService{
		users:         users,
		resets:        resets,
		hasher:        hasher,
		tokens:        tokens,
		notifier:      notifier,
		resetTTL:      opts.ResetTokenTTL,
		uniformForgot: opts.UniformForgotPassword,
		now:           opts.Clock,
	}
}

// SignUp registers a new user with a hashed password.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid role %q", role))
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("User %d registered with role %s", user.ID, user.Role)
	return user, nil
}

// SignIn checks credentials and issues an access/refresh token pair.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Role, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// ForgotPassword issues a single-use reset token and hands it to the
// notifier. Unknown emails return apperrors.ErrUserNotFound unless the
// service was built with UniformForgotPassword.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			metrics.PasswordResets.WithLabelValues("request", "unknown_email").Inc()
			if s.uniformForgot {
				return nil
			}
		}
		return err
	}

	raw := uuid.NewString()
	token := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: HashResetToken(raw),
		ExpiresAt: s.now().UTC().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return err
	}
	metrics.PasswordResets.WithLabelValues("request", "issued").Inc()

	s.notifier.NotifyPasswordReset(user.Email, raw)
	return nil
}

// ResetPassword redeems a reset token and replaces the owner's password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.ErrInvalidOrExpiredToken
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.resets.Redeem(ctx, HashResetToken(token), s.now().UTC(), hashed)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidOrExpiredToken) {
			metrics.PasswordResets.WithLabelValues("redeem", "rejected").Inc()
		}
		return err
	}
	metrics.PasswordResets.WithLabelValues("redeem", "success").Inc()
	log.Printf("Password reset completed for user %d", userID)
	return nil
}

// HashResetToken is the digest under which a raw reset token is stored.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
