package mongostore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"task-manager/server/internal/database"
	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
	"task-manager/server/internal/store/mongostore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore needs a replica set (change streams) at MONGODB_TEST_URI.
func newTestStore(t *testing.T) *mongostore.Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set; skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := database.NewMongoClient(ctx, database.MongoConfig{URI: uri})
	require.NoError(t, err)

	dbName := fmt.Sprintf("task_manager_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := mongostore.New(client, dbName, mongostore.WithBufferSize(8))
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestStore_UserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &models.User{Email: "alice@x.com", Fields: map[string]interface{}{"name": "Alice"}}
	res, err := s.InsertUser(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.Equal(t, user.ID, res.InsertedID)

	_, err = s.InsertUser(ctx, &models.User{Email: "alice@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	found, err := s.FindUserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Fields["name"])

	_, err = s.FindUserByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestStore_TaskCategoryWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &models.User{Email: "bob@x.com"}
	_, err := s.InsertUser(ctx, user)
	require.NoError(t, err)

	due := time.Now().Add(48 * time.Hour)
	task := &models.Task{UserID: user.ID, Email: user.Email, DueDate: &due}
	_, err = s.InsertTask(ctx, task)
	require.NoError(t, err)

	res, err := s.SetCategoryIf(ctx, task.ID, "", models.CategoryTodo)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.MatchedCount)

	res, err = s.SetCategoryIf(ctx, task.ID, models.CategoryDone, models.CategoryInProgress)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.MatchedCount, "stale expectation must not overwrite")

	res, err = s.UpdateCategory(ctx, task.ID, models.CategoryDone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.ModifiedCount)

	tasks, err := s.FindTasksByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.CategoryDone, tasks[0].Category)

	del, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, del.DeletedCount)

	del, err = s.DeleteTask(ctx, "not-an-id")
	require.NoError(t, err)
	assert.EqualValues(t, 0, del.DeletedCount)
}

func TestStore_WatchTasksDeliversFullDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub, err := s.WatchTasks(ctx)
	require.NoError(t, err)
	defer sub.Close()

	task := &models.Task{UserID: "u1", Email: "carol@x.com", Fields: map[string]interface{}{"title": "Plan"}}
	_, err = s.InsertTask(ctx, task)
	require.NoError(t, err)
	_, err = s.UpdateCategory(ctx, task.ID, models.CategoryDone)
	require.NoError(t, err)

	expect := []store.OperationType{store.OperationInsert, store.OperationUpdate}
	for _, op := range expect {
		select {
		case ev := <-sub.Changes():
			assert.Equal(t, op, ev.Operation)
			require.NotNil(t, ev.Task)
			assert.Equal(t, task.ID, ev.Task.ID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s event", op)
		}
	}
}
