package services

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/config"
	"storefront/internal/models"

	"github.com/dgrijalva/jwt-go"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type tokenClaims struct {
	Role models.Role `json:"role,omitempty"`
	Type TokenType   `json:"typ"`
	jwt.StandardClaims
}

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	UserID    uint
	Role      models.Role
	Type      TokenType
	ExpiresAt time.Time
}

// TokenService issues and verifies signed bearer tokens.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService builds a TokenService from validated JWT settings. A nil
// clock means time.Now.
func NewTokenService(cfg config.JWTConfig, clock func() time.Time) *TokenService {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        clock,
	}
}

// AccessTTL is the default lifetime of access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken signs an access token for the user. A non-positive ttl
// uses the configured default.
func (s *TokenService) IssueAccessToken(userID uint, role models.Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	return s.sign(userID, role, AccessToken, ttl)
}

// IssueRefreshToken signs a refresh token for the user.
func (s *TokenService) IssueRefreshToken(userID uint) (string, error) {
	return s.sign(userID, "", RefreshToken, s.refreshTTL)
}

func (s *TokenService) sign(userID uint, role models.Role, typ TokenType, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Role: role,
		Type: typ,
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure is reported as apperrors.ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	parser := &jwt.Parser{
		ValidMethods:         []string{s.method.Alg()},
		SkipClaimsValidation: true,
	}
	claims := &tokenClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		log.Printf("Token validation error: %v", err)
		return nil, apperrors.ErrInvalidToken
	}
	if claims.ExpiresAt == 0 || s.now().Unix() >= claims.ExpiresAt {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Type != AccessToken && claims.Type != RefreshToken {
		return nil, apperrors.ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, apperrors.ErrInvalidToken
	}
	return &TokenClaims{
		UserID:    uint(id),
		Role:      claims.Role,
		Type:      claims.Type,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
