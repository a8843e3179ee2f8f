// Package sqlstore implements the store contracts on a gorm database
// (postgres or sqlite). Writes are announced on a Feed since SQL engines
// offer no portable change stream.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ErrNoFeed is returned by WatchTasks on a store built without a feed.
var ErrNoFeed = errors.New("no change feed configured")

// Feed publishes the changes this store makes and serves them back to
// subscribers.
type Feed interface {
	store.ChangeFeed
	Publish(ctx context.Context, ev store.ChangeEvent) error
}

type Store struct {
	db     *gorm.DB
	feed   Feed
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New does not take ownership of db. feed may be nil, in which case writes
// are not announced and WatchTasks fails.
func New(db *gorm.DB, feed Feed, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, feed: feed, logger: logger}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userRecord{}, &taskRecord{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) (store.InsertResult, error) {
	id, err := newID()
	if err != nil {
		return store.InsertResult{}, err
	}
	rec, err := newUserRecord(id, *user)
	if err != nil {
		return store.InsertResult{}, err
	}

	err = s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.InsertResult{}, store.ErrDuplicate
	}
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = id
	return store.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var recs []userRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		user, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) InsertTask(ctx context.Context, task *models.Task) (store.InsertResult, error) {
	id, err := newID()
	if err != nil {
		return store.InsertResult{}, err
	}
	rec, err := newTaskRecord(id, *task)
	if err != nil {
		return store.InsertResult{}, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert task: %w", err)
	}

	task.ID = id
	created, err := rec.toModel()
	if err == nil {
		s.publish(ctx, store.ChangeEvent{Operation: store.OperationInsert, DocumentID: id, Task: &created})
	}
	return store.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (s *Store) FindTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	var recs []taskRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(recs))
	for _, rec := range recs {
		task, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, category models.Category) (store.UpdateResult, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&taskRecord{}).
		Where("id = ? AND category <> ?", id, string(category)).
		Update("category", string(category))
	if res.Error != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to update task category: %w", res.Error)
	}

	result := store.UpdateResult{Acknowledged: true, MatchedCount: res.RowsAffected, ModifiedCount: res.RowsAffected}
	if res.RowsAffected == 0 {
		// Unchanged rows still count as matched.
		if err := db.Model(&taskRecord{}).Where("id = ?", id).Count(&result.MatchedCount).Error; err != nil {
			return store.UpdateResult{}, fmt.Errorf("failed to count tasks: %w", err)
		}
		return result, nil
	}

	s.publishUpdate(ctx, id)
	return result, nil
}

func (s *Store) SetCategoryIf(ctx context.Context, id string, expected, next models.Category) (store.UpdateResult, error) {
	res := s.db.WithContext(ctx).Model(&taskRecord{}).
		Where("id = ? AND category = ?", id, string(expected)).
		Update("category", string(next))
	if res.Error != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to update task category: %w", res.Error)
	}

	result := store.UpdateResult{Acknowledged: true, MatchedCount: res.RowsAffected}
	if expected != next {
		result.ModifiedCount = res.RowsAffected
	}
	if result.ModifiedCount > 0 {
		s.publishUpdate(ctx, id)
	}
	return result, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (store.DeleteResult, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRecord{})
	if res.Error != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(ctx, store.ChangeEvent{Operation: store.OperationDelete, DocumentID: id})
	}
	return store.DeleteResult{Acknowledged: true, DeletedCount: res.RowsAffected}, nil
}

func (s *Store) WatchTasks(ctx context.Context) (store.Subscription, error) {
	if s.feed == nil {
		return nil, ErrNoFeed
	}
	return s.feed.WatchTasks(ctx)
}

// publishUpdate reloads the task so subscribers see the full document, the
// way a change stream with update lookup would.
func (s *Store) publishUpdate(ctx context.Context, id string) {
	if s.feed == nil {
		return
	}
	var rec taskRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		s.logger.Warn("failed to reload task for change event", "task_id", id, "error", err)
		return
	}
	task, err := rec.toModel()
	if err != nil {
		s.logger.Warn("failed to decode task for change event", "task_id", id, "error", err)
		return
	}
	s.publish(ctx, store.ChangeEvent{Operation: store.OperationUpdate, DocumentID: id, Task: &task})
}

// publish is best effort: the write has already committed.
func (s *Store) publish(ctx context.Context, ev store.ChangeEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("failed to publish task change", "operation", ev.Operation, "task_id", ev.DocumentID, "error", err)
	}
}
