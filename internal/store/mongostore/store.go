// Package mongostore implements the store contracts on MongoDB, using change
// streams for the task feed.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection = "users"
	TasksCollection = "tasks"

	defaultBufferSize = 64
)

type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	tasks      *mongo.Collection
	bufferSize int
	logger     *slog.Logger
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithBufferSize bounds how many change events a slow subscriber may lag.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New does not take ownership of client; the caller disconnects it.
func New(client *mongo.Client, database string, opts ...Option) *Store {
	db := client.Database(database)
	s := &Store{
		client:     client,
		users:      db.Collection(UsersCollection),
		tasks:      db.Collection(TasksCollection),
		bufferSize: defaultBufferSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes creates the unique email index that backs the one-user-per-email
// rule and the userId index used by task listing.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create users.email index: %w", err)
	}

	_, err = s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("user_id"),
	})
	if err != nil {
		return fmt.Errorf("failed to create tasks.userId index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc bson.M
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user := userFromDoc(doc)
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) (store.InsertResult, error) {
	res, err := s.users.InsertOne(ctx, userToDoc(*user))
	if mongo.IsDuplicateKeyError(err) {
		return store.InsertResult{}, store.ErrDuplicate
	}
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert user: %w", err)
	}
	user.ID = idString(res.InsertedID)
	return store.InsertResult{Acknowledged: true, InsertedID: user.ID}, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, userFromDoc(doc))
	}
	return users, nil
}

func (s *Store) InsertTask(ctx context.Context, task *models.Task) (store.InsertResult, error) {
	res, err := s.tasks.InsertOne(ctx, taskToDoc(*task))
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert task: %w", err)
	}
	task.ID = idString(res.InsertedID)
	return store.InsertResult{Acknowledged: true, InsertedID: task.ID}, nil
}

func (s *Store) FindTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	cursor, err := s.tasks.Find(ctx, bson.M{"userId": refID(userID)})
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, taskFromDoc(doc))
	}
	return tasks, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, category models.Category) (store.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id cannot match any document.
		return store.UpdateResult{Acknowledged: true}, nil
	}
	return s.updateCategory(ctx, bson.M{"_id": oid}, category)
}

func (s *Store) SetCategoryIf(ctx context.Context, id string, expected, next models.Category) (store.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.UpdateResult{Acknowledged: true}, nil
	}

	return s.updateCategory(ctx, categoryFilter(oid, expected), next)
}

// categoryFilter matches the task only while it still holds expected. Tasks
// that were never categorized may lack the field entirely.
func categoryFilter(oid primitive.ObjectID, expected models.Category) bson.M {
	if expected == "" {
		return bson.M{"_id": oid, "category": bson.M{"$in": bson.A{nil, ""}}}
	}
	return bson.M{"_id": oid, "category": string(expected)}
}

func (s *Store) updateCategory(ctx context.Context, filter bson.M, category models.Category) (store.UpdateResult, error) {
	res, err := s.tasks.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"category": string(category)}})
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to update task category: %w", err)
	}
	return store.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (store.DeleteResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.DeleteResult{Acknowledged: true}, nil
	}
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to delete task: %w", err)
	}
	return store.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
