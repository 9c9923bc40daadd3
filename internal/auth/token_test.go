package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestIssueAndValidate(t *testing.T) {
	token, err := IssueToken("user-1", "a@b.c", secret, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ValidateToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	expired, err := IssueToken("user-1", "", secret, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	wrongSecret, err := IssueToken("user-1", "", "other", 0, time.Now())
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"missing user", noUser},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, secret)
			assert.Error(t, err)
		})
	}
}

func TestNoSecret(t *testing.T) {
	_, err := IssueToken("user-1", "", "", time.Hour, time.Now())
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = ValidateToken("x", "")
	assert.ErrorIs(t, err, ErrNoSecret)
}
