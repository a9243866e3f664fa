package identity

import (
	"context"
	"testing"
	"time"

	"delegated-pay-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *JWTResolver {
	t.Helper()
	r, err := NewJWTResolver(models.AuthConfig{JwtSecret: "s3cret", JwtIssuer: "delegated-pay", TokenTTL: time.Hour})
	require.NoError(t, err)
	return r
}

func TestIssueAndResolve(t *testing.T) {
	r := newTestResolver(t)

	token, err := r.IssueToken("biz-1")
	require.NoError(t, err)

	userId, ok := r.ResolveCaller(context.Background(), "Bearer "+token)
	assert.True(t, ok)
	assert.Equal(t, "biz-1", userId)

	userId, ok = r.ResolveCaller(context.Background(), token)
	assert.True(t, ok)
	assert.Equal(t, "biz-1", userId)
}

func TestResolveRejects(t *testing.T) {
	r := newTestResolver(t)
	valid, err := r.IssueToken("biz-1")
	require.NoError(t, err)

	other, err := NewJWTResolver(models.AuthConfig{JwtSecret: "different", JwtIssuer: "delegated-pay", TokenTTL: time.Hour})
	require.NoError(t, err)
	forged, err := other.IssueToken("biz-1")
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "biz-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", forged},
		{"wrong issuer", wrongIssuer},
		{"tampered", valid + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := r.ResolveCaller(context.Background(), tt.token)
			assert.False(t, ok)
		})
	}
}

func TestResolveRejectsExpired(t *testing.T) {
	r := newTestResolver(t)
	r.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := r.IssueToken("biz-1")
	require.NoError(t, err)

	r.now = time.Now
	_, ok := r.ResolveCaller(context.Background(), token)
	assert.False(t, ok)
}

func TestNewJWTResolverRequiresSecret(t *testing.T) {
	_, err := NewJWTResolver(models.AuthConfig{})
	assert.Error(t, err)
}
