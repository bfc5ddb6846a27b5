package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	require.NoError(t, err)
	return s
}

func testUser() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "dispatcher", Role: models.RoleOperator}
}

func TestNewService(t *testing.T) {
	s, err := NewService(config.JWTConfig{Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.tokenExp)

	_, err = NewService(config.JWTConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestService_Passwords(t *testing.T) {
	s := newTestService(t)

	hash, err := s.HashPassword("oil-change-42")
	require.NoError(t, err)
	assert.NotEqual(t, "oil-change-42", hash)
	assert.True(t, s.CheckPassword("oil-change-42", hash))
	assert.False(t, s.CheckPassword("wrong", hash))
}

func TestService_TokenRoundTrip(t *testing.T) {
	s := newTestService(t)
	user := testUser()

	token, err := s.GenerateToken(user)
	require.NoError(t, err)

	for _, raw := range []string{token, "Bearer " + token} {
		claims, err := s.ValidateToken(raw)
		require.NoError(t, err)
		assert.Equal(t, user.ID.Hex(), claims.UserID)
		assert.Equal(t, user.Username, claims.Username)
		assert.Equal(t, models.RoleOperator, claims.Role)

		now := time.Now().Unix()
		assert.Greater(t, claims.Exp, now)
		assert.LessOrEqual(t, claims.Exp, now+int64(time.Hour.Seconds())+1)
	}
}

func TestService_ValidateToken_Rejects(t *testing.T) {
	s := newTestService(t)
	other, err := NewService(config.JWTConfig{Secret: "other-secret"})
	require.NoError(t, err)
	foreign, err := other.GenerateToken(testUser())
	require.NoError(t, err)

	expired := &Service{jwtSecret: s.jwtSecret, tokenExp: -time.Minute}
	old, err := expired.GenerateToken(testUser())
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "x", "iss": issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "invalid-token", ErrInvalidToken},
		{"other secret", foreign, ErrInvalidToken},
		{"expired", old, ErrExpiredToken},
		{"alg none", unsigned, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateToken(tt.token)
			assert.Equal(t, tt.want, err)
		})
	}
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	s := newTestService(t)

	got, err := s.ExtractTokenFromHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	for _, h := range []string{"", "abc", "Bearer ", "Basic abc"} {
		_, err := s.ExtractTokenFromHeader(h)
		assert.Equal(t, ErrInvalidToken, err, h)
	}
}

func TestService_Validators(t *testing.T) {
	s := newTestService(t)

	assert.NoError(t, s.ValidatePassword("longenough"))
	assert.ErrorContains(t, s.ValidatePassword("short"), "at least 8 characters")

	assert.NoError(t, s.ValidateEmail("ops@fleet.example"))
	for _, bad := range []string{"opsfleet.example", "ops@", "ops", "@fleet.example"} {
		assert.ErrorContains(t, s.ValidateEmail(bad), "invalid email format", bad)
	}

	assert.NoError(t, s.ValidateUsername("dispatcher"))
	assert.ErrorContains(t, s.ValidateUsername("ab"), "at least 3 characters")
	assert.ErrorContains(t, s.ValidateUsername(strings.Repeat("a", 51)), "less than 50 characters")
}

func TestService_GenerateRefreshToken(t *testing.T) {
	s := newTestService(t)
	a, err := s.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := s.GenerateRefreshToken()
	require.NoError(t, err)
	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}
