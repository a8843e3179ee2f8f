package services_test

import (
	"context"
	"testing"

	"task-manager/server/internal/models"
	"task-manager/server/internal/services"
	"task-manager/server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateUser(t *testing.T) {
	s := newMemStore()
	svc := services.NewUserService(s, nil)

	user, res, err := svc.CreateUser(context.Background(), models.User{
		ID:     "client-chosen",
		Email:  "alice@x.com",
		Fields: map[string]interface{}{"name": "Alice"},
	})
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.Equal(t, user.ID, res.InsertedID)
	assert.NotEqual(t, "client-chosen", user.ID)
	assert.Equal(t, "Alice", user.Fields["name"])
}

func TestUserService_CreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newMemStore()
	svc := services.NewUserService(s, nil)
	ctx := context.Background()

	_, _, err := svc.CreateUser(ctx, models.User{Email: "alice@x.com"})
	require.NoError(t, err)

	_, _, err = svc.CreateUser(ctx, models.User{Email: "alice@x.com"})
	assert.ErrorIs(t, err, services.ErrConflict)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_CreateUserRaceHitsUniqueIndex(t *testing.T) {
	s := newMemStore()
	s.insertUserFn = func(*models.User) error { return store.ErrDuplicate }
	svc := services.NewUserService(s, nil)

	_, _, err := svc.CreateUser(context.Background(), models.User{Email: "alice@x.com"})
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestUserService_CreateUserRequiresEmail(t *testing.T) {
	svc := services.NewUserService(newMemStore(), nil)

	_, _, err := svc.CreateUser(context.Background(), models.User{})
	assert.ErrorIs(t, err, services.ErrBadRequest)
}
