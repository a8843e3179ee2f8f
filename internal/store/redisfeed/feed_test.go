package redisfeed_test

import (
	"context"
	"testing"
	"time"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
	"task-manager/server/internal/store/redisfeed"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeed(t *testing.T, buffer int) (*redisfeed.Feed, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisfeed.New(client, "test-updates", buffer, nil), mr
}

func next(t *testing.T, sub store.Subscription) (store.ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Changes():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return store.ChangeEvent{}, false
	}
}

func TestFeed_PublishIsDeliveredToSubscriber(t *testing.T) {
	feed, _ := newFeed(t, 4)
	ctx := context.Background()

	sub, err := feed.WatchTasks(ctx)
	require.NoError(t, err)
	defer sub.Close()

	due := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	task := &models.Task{ID: "t1", UserID: "u1", Email: "a@x.com", DueDate: &due, Category: models.CategoryTodo}
	require.NoError(t, feed.Publish(ctx, store.ChangeEvent{Operation: store.OperationInsert, DocumentID: "t1", Task: task}))

	ev, ok := next(t, sub)
	require.True(t, ok)
	assert.Equal(t, store.OperationInsert, ev.Operation)
	require.NotNil(t, ev.Task)
	assert.Equal(t, "t1", ev.Task.ID)
	assert.Equal(t, models.CategoryTodo, ev.Task.Category)
	assert.True(t, due.Equal(*ev.Task.DueDate))
}

func TestFeed_EverySubscriberGetsEachEvent(t *testing.T) {
	feed, _ := newFeed(t, 4)
	ctx := context.Background()

	first, err := feed.WatchTasks(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := feed.WatchTasks(ctx)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, feed.Publish(ctx, store.ChangeEvent{Operation: store.OperationDelete, DocumentID: "t9"}))

	for _, sub := range []store.Subscription{first, second} {
		ev, ok := next(t, sub)
		require.True(t, ok)
		assert.Equal(t, store.OperationDelete, ev.Operation)
		assert.Equal(t, "t9", ev.DocumentID)
		assert.Nil(t, ev.Task)
	}
}

func TestFeed_CloseEndsSubscriptionCleanly(t *testing.T) {
	feed, _ := newFeed(t, 4)

	sub, err := feed.WatchTasks(context.Background())
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Changes()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestFeed_WatchFailsWhenRedisIsDown(t *testing.T) {
	feed, mr := newFeed(t, 4)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := feed.WatchTasks(ctx)
	assert.Error(t, err)
}
