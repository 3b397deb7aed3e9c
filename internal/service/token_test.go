package service

import (
	"testing"
	"time"

	"pdfqa/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		Secret:     "super-secret",
		ResetSalt:  "salt",
		AccessTTL:  7 * 24 * time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
		ResetTTL:   time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := newTestTokens(t)
	user := &models.User{Username: "alice", Role: models.RoleUser}

	tok, err := m.Issue(user, models.TokenTypeAccess)
	require.NoError(t, err)

	claims, err := m.Verify(tok, models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestTokenManager_RoleComesFromRecord(t *testing.T) {
	m := newTestTokens(t)

	tok, err := m.Issue(&models.User{Username: "root", Role: models.RoleAdmin}, models.TokenTypeAccess)
	require.NoError(t, err)
	claims, err := m.Verify(tok, models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	// a user named like the admin is still a plain user
	tok, err = m.Issue(&models.User{Username: "admin", Role: models.RoleUser}, models.TokenTypeAccess)
	require.NoError(t, err)
	claims, err = m.Verify(tok, models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestTokenManager_VerifyErrors(t *testing.T) {
	m := newTestTokens(t)
	user := &models.User{Username: "alice", Role: models.RoleUser}

	_, err := m.Verify("", models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = m.Verify("not.a.jwt", models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	refresh, err := m.Issue(user, models.TokenTypeRefresh)
	require.NoError(t, err)
	_, err = m.Verify(refresh, models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other, err := NewTokenManager(TokenConfig{Secret: "other", AccessTTL: time.Hour})
	require.NoError(t, err)
	foreign, err := other.Issue(user, models.TokenTypeAccess)
	require.NoError(t, err)
	_, err = m.Verify(foreign, models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_Expired(t *testing.T) {
	m := newTestTokens(t)
	issuedAt := time.Now().Add(-8 * 24 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	tok, err := m.Issue(&models.User{Username: "alice", Role: models.RoleUser}, models.TokenTypeAccess)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok, models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RejectsUnsignedToken(t *testing.T) {
	m := newTestTokens(t)
	claims := &models.Claims{
		Role: models.RoleAdmin,
		Type: models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mallory",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(tok, models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_ResetToken(t *testing.T) {
	m := newTestTokens(t)

	tok, err := m.IssueReset("alice@example.com")
	require.NoError(t, err)

	email, err := m.VerifyReset(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	// a reset token is not a session token
	_, err = m.Verify(tok, models.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// and a session token is not a reset token
	access, err := m.Issue(&models.User{Username: "alice"}, models.TokenTypeAccess)
	require.NoError(t, err)
	_, err = m.VerifyReset(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_ResetTokenOlderThanWindow(t *testing.T) {
	m := newTestTokens(t)
	start := time.Now()
	m.now = func() time.Time { return start }

	tok, err := m.IssueReset("alice@example.com")
	require.NoError(t, err)

	m.now = func() time.Time { return start.Add(time.Hour + time.Second) }
	_, err = m.VerifyReset(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_ResetTokenAgeCheckedIndependentlyOfExp(t *testing.T) {
	m := newTestTokens(t)
	start := time.Now()

	// correctly signed, far-future exp, but issued two hours ago
	claims := &models.ResetClaims{
		Email: "alice@example.com",
		Type:  models.TokenTypePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(start.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(start.Add(-2 * time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.resetKey)
	require.NoError(t, err)

	_, err = m.VerifyReset(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
