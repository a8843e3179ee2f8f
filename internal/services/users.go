package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
)

type UserService interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, store.InsertResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type UserServiceImpl struct {
	users  store.UserStore
	logger *slog.Logger
}

func NewUserService(users store.UserStore, logger *slog.Logger) *UserServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{users: users, logger: logger}
}

// CreateUser registers user unless its email is already taken. The lookup
// gives the common case a clean error; the store's unique index settles races.
func (s *UserServiceImpl) CreateUser(ctx context.Context, user models.User) (*models.User, store.InsertResult, error) {
	if user.Email == "" {
		return nil, store.InsertResult{}, fmt.Errorf("%w: email is required", ErrBadRequest)
	}

	_, err := s.users.FindUserByEmail(ctx, user.Email)
	switch {
	case err == nil:
		return nil, store.InsertResult{}, fmt.Errorf("%w: user with email %s already exists", ErrConflict, user.Email)
	case !errors.Is(err, store.ErrNotFound):
		return nil, store.InsertResult{}, fmt.Errorf("failed to look up user: %w", err)
	}

	user.ID = ""
	res, err := s.users.InsertUser(ctx, &user)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, store.InsertResult{}, fmt.Errorf("%w: user with email %s already exists", ErrConflict, user.Email)
	}
	if err != nil {
		return nil, store.InsertResult{}, fmt.Errorf("failed to insert user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	return &user, res, nil
}

func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
