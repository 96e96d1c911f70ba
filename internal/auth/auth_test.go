package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vehicle-service-log/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return service
}

func TestNewService(t *testing.T) {
	service := newTestService(t)
	assert.Equal(t, []byte("test-secret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)

	_, err := NewService("", time.Hour)
	assert.Error(t, err)

	_, err = NewService("secret", 0)
	assert.Error(t, err)
}

func TestService_Passwords(t *testing.T) {
	service := newTestService(t)

	hash, err := service.HashPassword("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword123", hash)

	assert.True(t, service.CheckPassword("testpassword123", hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_TokenRoundTrip(t *testing.T) {
	service := newTestService(t)
	user := &models.User{
		ID:       primitive.NewObjectID(),
		Username: "testuser",
		Role:     models.RoleOperator,
	}

	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	for _, input := range []string{token, "Bearer " + token} {
		claims, err := service.ValidateToken(input)
		require.NoError(t, err)
		assert.Equal(t, user.ID.Hex(), claims.UserID)
		assert.Equal(t, user.Username, claims.Username)
		assert.Equal(t, user.Role, claims.Role)
		assert.Greater(t, claims.Exp, time.Now().Unix())
	}
}

func TestService_ValidateToken_Rejections(t *testing.T) {
	service := newTestService(t)

	_, err := service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	other, _ := NewService("other-secret", time.Hour)
	foreign, err := other.GenerateToken(&models.User{ID: primitive.NewObjectID(), Username: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = service.ValidateToken(foreign)
	assert.Equal(t, ErrInvalidToken, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "id",
		"username": "testuser",
		"role":     "admin",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = service.ValidateToken(signed)
	assert.Equal(t, ErrExpiredToken, err)

	missingRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "id",
		"username": "testuser",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err = missingRole.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = service.ValidateToken(signed)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateRegistration(t *testing.T) {
	service := newTestService(t)
	valid := models.RegisterRequest{
		Username: "mechanic",
		Email:    "mechanic@example.com",
		Password: "password123",
		Role:     models.RoleOperator,
	}
	assert.NoError(t, service.ValidateRegistration(valid))

	tests := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
	}{
		{"short username", func(r *models.RegisterRequest) { r.Username = "ab" }},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *models.RegisterRequest) { r.Password = "short" }},
		{"unknown role", func(r *models.RegisterRequest) { r.Role = "owner" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.Error(t, service.ValidateRegistration(req))
		})
	}
}
