package store

import (
	"context"
	"errors"

	"task-manager/server/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

type UserStore interface {
	// FindUserByEmail returns ErrNotFound when no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// InsertUser assigns user.ID. It returns ErrDuplicate when the email is taken.
	InsertUser(ctx context.Context, user *models.User) (InsertResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type TaskStore interface {
	// InsertTask assigns task.ID.
	InsertTask(ctx context.Context, task *models.Task) (InsertResult, error)
	FindTasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	// UpdateCategory overwrites the category of the task with the given id.
	UpdateCategory(ctx context.Context, id string, category models.Category) (UpdateResult, error)
	// SetCategoryIf overwrites the category only while it still equals
	// expected. An empty expected matches a missing category.
	SetCategoryIf(ctx context.Context, id string, expected, next models.Category) (UpdateResult, error)
	// DeleteTask reports a zero count, not an error, when nothing matched.
	DeleteTask(ctx context.Context, id string) (DeleteResult, error)
}

type ChangeFeed interface {
	// WatchTasks subscribes to task changes with the full document attached.
	// Events published after WatchTasks returns are delivered.
	WatchTasks(ctx context.Context) (Subscription, error)
}

type Subscription interface {
	// Changes is closed when the subscription ends; Err then reports why.
	Changes() <-chan ChangeEvent
	Err() error
	Close() error
}

type Store interface {
	UserStore
	TaskStore
	ChangeFeed
	Ping(ctx context.Context) error
}
