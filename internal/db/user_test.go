package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vehicle-service-log/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoUserCollection_Integration(t *testing.T) {
	database := testDatabase(t)
	ctx := context.Background()
	users := &MongoUserCollection{Collection: database.Collection(UsersCollection)}

	user, err := users.InsertUser(ctx, models.User{
		ID:           primitive.NewObjectID(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleOperator,
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotZero(t, user.CreatedAt)

	_, err = users.InsertUser(ctx, models.User{ID: primitive.NewObjectID(), Username: "testuser", Email: "other@example.com"})
	assert.Error(t, err, "duplicate username must be rejected")

	found, err := users.FindUserByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "testuser", found.Username)

	found, err = users.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", found.Email)

	found, err = users.FindUserByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, found.Role)

	_, err = users.FindUserByUsername(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = users.FindUserByID(ctx, "invalid-id")
	assert.ErrorIs(t, err, ErrInvalidID)

	require.NoError(t, users.UpdateLastLogin(ctx, user.ID.Hex()))
	found, err = users.FindUserByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, found.LastLogin)

	assert.ErrorIs(t, users.UpdateLastLogin(ctx, primitive.NewObjectID().Hex()), ErrNotFound)
}
