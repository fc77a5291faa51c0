package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := NewJWTManager("secret")
	tok, err := m.Issue("ci-pipeline", time.Hour)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ci-pipeline", claims.Subject)
	assert.Equal(t, ScopeRun, claims.Scope)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret")

	noExpiry, err := m.Issue("old", -time.Hour)
	require.NoError(t, err)
	// ttl <= 0 永不过期
	_, err = m.VerifyToken(noExpiry)
	assert.NoError(t, err)

	other, err := NewJWTManager("other-secret").Issue("x", time.Hour)
	require.NoError(t, err)
	_, err = m.VerifyToken(other)
	assert.Error(t, err)

	past := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Scope: ScopeRun,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "docqa",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := past.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(signed)
	assert.Error(t, err)

	wrongScope := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Scope:            "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "docqa"},
	})
	signed, err = wrongScope.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(signed)
	assert.Error(t, err)

	_, err = NewJWTManager("").Issue("x", time.Hour)
	assert.Error(t, err)
}

func TestVerifier(t *testing.T) {
	hash, err := HashToken("hashed-token")
	require.NoError(t, err)
	jwtTok, err := NewJWTManager("jwt-secret").Issue("svc", time.Hour)
	require.NoError(t, err)

	v := NewVerifier("plain-token", hash, "jwt-secret")
	assert.True(t, v.Verify("plain-token"))
	assert.True(t, v.Verify("hashed-token"))
	assert.True(t, v.Verify(jwtTok))
	assert.False(t, v.Verify(""))
	assert.False(t, v.Verify("wrong"))

	plainOnly := NewVerifier("plain-token", "", "")
	assert.False(t, plainOnly.Verify(jwtTok))
	assert.False(t, plainOnly.Verify("hashed-token"))
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	require.NoError(t, err)
	b, err := GenerateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
