package handlers_test

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"task-manager/server/internal/handlers"
	"task-manager/server/internal/models"
	"task-manager/server/internal/notifier"
	"task-manager/server/internal/store"
	"task-manager/server/internal/store/redisfeed"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct{ open atomic.Int32 }

func (o *countingObserver) StreamOpened() { o.open.Add(1) }
func (o *countingObserver) StreamClosed() { o.open.Add(-1) }

type failingFeed struct{}

func (failingFeed) WatchTasks(context.Context) (store.Subscription, error) {
	return nil, errors.New("change streams unavailable")
}

func newStreamServer(t *testing.T, feed store.ChangeFeed, heartbeat time.Duration, observer handlers.StreamObserver) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := handlers.NewStreamHandler(notifier.New(feed, heartbeat), observer, nil)
	router := gin.New()
	router.GET("/task-updates", handler.TaskUpdates)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/task-updates", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

// readFrame reads one "data: ...\n\n" frame and returns its payload.
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	blank, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\n", blank)
	require.True(t, strings.HasPrefix(line, "data: "), "unexpected frame %q", line)
	return strings.TrimSuffix(strings.TrimPrefix(line, "data: "), "\n")
}

func TestTaskUpdates_StreamsChangesAndHeartbeats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	feed := redisfeed.New(client, "", 8, nil)
	observer := &countingObserver{}

	srv := newStreamServer(t, feed, 200*time.Millisecond, observer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, body := openStream(t, ctx, srv.URL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.EqualValues(t, 1, observer.open.Load())

	publish := func(ev store.ChangeEvent) {
		require.NoError(t, feed.Publish(context.Background(), ev))
	}
	publish(store.ChangeEvent{Operation: store.OperationDelete, DocumentID: "gone"})
	publish(store.ChangeEvent{
		Operation:  store.OperationInsert,
		DocumentID: "t1",
		Task:       &models.Task{ID: "t1", Email: "alice@x.com", Category: models.CategoryTodo},
	})

	assert.JSONEq(t, `{"_id":"t1","email":"alice@x.com","category":"To-Do"}`, readFrame(t, body))
	assert.Equal(t, "{}", readFrame(t, body))

	cancel()
	assert.Eventually(t, func() bool { return observer.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTaskUpdates_SubscriptionFailure(t *testing.T) {
	srv := newStreamServer(t, failingFeed{}, time.Second, nil)

	resp, err := http.Get(srv.URL + "/task-updates")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
