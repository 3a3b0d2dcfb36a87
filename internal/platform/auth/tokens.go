package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrInvalidToken indicates the token failed signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken indicates the token is structurally valid but expired.
	ErrExpiredToken = errors.New("auth: token expired")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC signed access and refresh tokens.
// Access and refresh tokens use separate secrets so a leaked refresh secret
// cannot mint access tokens.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenManagerOption customises the manager.
type TokenManagerOption func(*TokenManager)

// WithClock overrides the time source, intended for tests.
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTokenManager validates the secrets and constructs a TokenManager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...TokenManagerOption) (*TokenManager, error) {
	if accessSecret == "" {
		return nil, errors.New("auth: access token secret is required")
	}
	if refreshSecret == "" {
		return nil, errors.New("auth: refresh token secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}

	manager := &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// IssueAccessToken mints a short-lived access token for the identity.
func (m *TokenManager) IssueAccessToken(identity Identity) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	now := m.now()
	claims := tokenClaims{
		Email:     identity.Email,
		Role:      string(identity.Role),
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

// IssueRefreshToken mints a long-lived refresh token bound to the user.
func (m *TokenManager) IssueRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	now := m.now()
	claims := tokenClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique jti so two tokens minted in the same second for the
			// same user never collide in the active-token list.
			ID:        ulid.Make().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
}

// VerifyAccessToken validates an access token and returns the caller identity.
func (m *TokenManager) VerifyAccessToken(token string) (Identity, error) {
	claims, err := m.parse(token, m.accessSecret, tokenTypeAccess)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   Role(claims.Role),
	}, nil
}

// VerifyRefreshToken validates a refresh token and returns the user id it is
// bound to.
func (m *TokenManager) VerifyRefreshToken(token string) (string, error) {
	claims, err := m.parse(token, m.refreshSecret, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *TokenManager) parse(token string, secret []byte, wantType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// Time claims are checked against the manager clock, not the wall clock.
	now := m.now()
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	if now.After(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrInvalidToken)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
