package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"pdfqa/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// TokenManager issues and verifies the signed tokens of the service: access
// and refresh session tokens, and password reset tokens. Session tokens are
// stateless; nothing is revoked server side.
type TokenManager struct {
	secret     []byte
	resetKey   []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret     string
	ResetSalt  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}

	// reset tokens are signed with their own key so that a session token can
	// never be replayed as a reset token and vice versa
	resetKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(cfg.Secret), []byte(cfg.ResetSalt), []byte("password-reset"))
	if _, err := io.ReadFull(kdf, resetKey); err != nil {
		return nil, fmt.Errorf("failed to derive reset key: %w", err)
	}

	return &TokenManager{
		secret:     []byte(cfg.Secret),
		resetKey:   resetKey,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a session token of tokenType for user. The role claim comes
// from the stored user record.
func (m *TokenManager) Issue(user *models.User, tokenType string) (string, error) {
	var ttl time.Duration
	switch tokenType {
	case models.TokenTypeAccess:
		ttl = m.accessTTL
	case models.TokenTypeRefresh:
		ttl = m.refreshTTL
	default:
		return "", fmt.Errorf("unknown token type %q", tokenType)
	}

	now := m.now()
	claims := &models.Claims{
		Role: user.Role,
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a session token and checks that it is of tokenType. It
// returns ErrTokenMissing, ErrTokenExpired or ErrTokenInvalid.
func (m *TokenManager) Verify(tokenString, tokenType string) (*models.Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	claims := &models.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc(m.secret), m.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Type != tokenType || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// IssueReset signs a password reset token bound to email.
func (m *TokenManager) IssueReset(email string) (string, error) {
	now := m.now()
	claims := &models.ResetClaims{
		Email: email,
		Type:  models.TokenTypePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.resetTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.resetKey)
}

// VerifyReset returns the email bound to a reset token. A token older than
// the reset window is rejected even when its exp claim says otherwise.
func (m *TokenManager) VerifyReset(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenInvalid
	}

	claims := &models.ResetClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc(m.resetKey), m.parserOptions()...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Type != models.TokenTypePasswordReset || claims.Email == "" || claims.IssuedAt == nil {
		return "", ErrTokenInvalid
	}
	if m.now().Sub(claims.IssuedAt.Time) > m.resetTTL {
		return "", fmt.Errorf("%w: reset token older than %s", ErrTokenInvalid, m.resetTTL)
	}

	return claims.Email, nil
}

func (m *TokenManager) keyFunc(key []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		// Ensure the token's signing method is what we expect
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	}
}

func (m *TokenManager) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
}
