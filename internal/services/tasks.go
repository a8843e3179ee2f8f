package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"

	"golang.org/x/sync/errgroup"
)

const defaultWritebackConcurrency = 8

type TaskService interface {
	CreateTask(ctx context.Context, task models.Task) (*models.Task, error)
	ListTasks(ctx context.Context, email string) ([]models.Task, error)
	UpdateTaskCategory(ctx context.Context, id string, category models.Category) (store.UpdateResult, error)
	DeleteTask(ctx context.Context, id string) (store.DeleteResult, error)
}

type TaskServiceImpl struct {
	tasks  store.TaskStore
	users  store.UserStore
	now    func() time.Time
	limit  int
	logger *slog.Logger
}

type TaskOption func(*TaskServiceImpl)

func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskServiceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWritebackConcurrency caps the category write-backs a single listing
// runs at once.
func WithWritebackConcurrency(n int) TaskOption {
	return func(s *TaskServiceImpl) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithTaskLogger(logger *slog.Logger) TaskOption {
	return func(s *TaskServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewTaskService(tasks store.TaskStore, users store.UserStore, opts ...TaskOption) *TaskServiceImpl {
	s := &TaskServiceImpl{
		tasks:  tasks,
		users:  users,
		now:    time.Now,
		limit:  defaultWritebackConcurrency,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskServiceImpl) resolveUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// CreateTask stores the task for the user owning task.Email. The category is
// left as submitted; it is derived on the next listing.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	user, err := s.resolveUser(ctx, task.Email)
	if err != nil {
		return nil, err
	}

	task.ID = ""
	task.UserID = user.ID
	if _, err := s.tasks.InsertTask(ctx, &task); err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	return &task, nil
}

// ListTasks returns the user's tasks with categories recomputed against the
// clock. Changed categories are written back with compare-and-set so a
// concurrent manual update is not overwritten; write-back failures are only
// logged. The call returns once every write-back has settled.
func (s *TaskServiceImpl) ListTasks(ctx context.Context, email string) ([]models.Task, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email query parameter is required", ErrBadRequest)
	}

	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.FindTasksByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}

	now := s.now()
	// Write-backs outlive a client disconnect.
	writeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.limit)

	for i := range tasks {
		next, changed := tasks[i].Recategorize(now)
		if !changed {
			continue
		}
		id, prev := tasks[i].ID, tasks[i].Category
		tasks[i].Category = next

		g.Go(func() error {
			res, err := s.tasks.SetCategoryIf(writeCtx, id, prev, next)
			if err != nil {
				s.logger.Error("failed to write back task category", "task_id", id, "category", next, "error", err)
				return nil
			}
			if res.MatchedCount == 0 {
				s.logger.Debug("task category changed concurrently, skipped write-back", "task_id", id)
			}
			return nil
		})
	}
	_ = g.Wait()

	return tasks, nil
}

func (s *TaskServiceImpl) UpdateTaskCategory(ctx context.Context, id string, category models.Category) (store.UpdateResult, error) {
	res, err := s.tasks.UpdateCategory(ctx, id, category)
	if err != nil {
		return res, fmt.Errorf("failed to update task category: %w", err)
	}
	// Matched, not modified: re-setting the current category still succeeds.
	if res.MatchedCount == 0 {
		return res, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return res, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id string) (store.DeleteResult, error) {
	res, err := s.tasks.DeleteTask(ctx, id)
	if err != nil {
		return res, fmt.Errorf("failed to delete task: %w", err)
	}
	return res, nil
}
