package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Authenticator turns a bearer token into the stored user.
type Authenticator struct {
	tokens *TokenService
	users  repositories.UserRepository
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(tokens *TokenService, users repositories.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Resolve verifies an access token and loads its subject.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != AccessToken {
		log.Printf("Rejected %s token used as access token for user %d", claims.Type, claims.UserID)
		return nil, apperrors.ErrInvalidToken
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			log.Printf("User with ID %d from token not found", claims.UserID)
		}
		return nil, err
	}
	return user, nil
}

// RequireRole returns user when it holds role, and a forbidden error
// otherwise. The role stored on the user record is authoritative.
func RequireRole(user *models.User, role models.Role) (*models.User, error) {
	if user == nil {
		return nil, apperrors.ErrInvalidToken
	}
	if user.Role != role {
		log.Printf("Access denied: user %d with role %q requires %q", user.ID, user.Role, role)
		metrics.AuthDecisions.WithLabelValues(string(role), "deny").Inc()
		return nil, apperrors.Forbidden(fmt.Sprintf("%s access required", roleTitle(role)))
	}
	metrics.AuthDecisions.WithLabelValues(string(role), "grant").Inc()
	return user, nil
}

func roleTitle(role models.Role) string {
	s := string(role)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
