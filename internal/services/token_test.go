package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenManager {
	t.Helper()
	tokens, err := NewTokenManager("test-secret", "palette", "palette-client", 0)
	require.NoError(t, err)
	return tokens
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tokens := newTestTokens(t)
	user := types.User{ID: uuid.New(), Email: "user@example.com"}

	token, err := tokens.Issue(user)
	require.NoError(t, err)

	identity, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, user.Email, identity.Email)
}

func TestTokenManager_SevenDayValidity(t *testing.T) {
	tokens := newTestTokens(t)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	token, err := tokens.Issue(types.User{ID: uuid.New(), Email: "a@example.com"})
	require.NoError(t, err)

	claims := Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(7*24*time.Hour), claims.ExpiresAt.Time.UTC())
	assert.Equal(t, "palette", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"palette-client"}, claims.Audience)

	tokens.now = func() time.Time { return issued.Add(7*24*time.Hour - time.Minute) }
	_, err = tokens.Verify(token)
	assert.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(7*24*time.Hour + time.Minute) }
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tokens := newTestTokens(t)
	other, err := NewTokenManager("other-secret", "palette", "palette-client", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(types.User{ID: uuid.New(), Email: "a@example.com"})
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsWrongAudience(t *testing.T) {
	tokens := newTestTokens(t)
	other, err := NewTokenManager("test-secret", "palette", "someone-else", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(types.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tokens := newTestTokens(t)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "palette",
		Audience:  jwt.ClaimStrings{"palette-client"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsBadSubject(t *testing.T) {
	tokens := newTestTokens(t)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "palette",
		Audience:  jwt.ClaimStrings{"palette-client"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tokens := newTestTokens(t)
	_, err := tokens.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(" ", "", "", time.Hour)
	assert.Error(t, err)
}
