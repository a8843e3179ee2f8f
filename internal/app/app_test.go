package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"task-manager/server/internal/app"
	"task-manager/server/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Store:  config.StoreConfig{Driver: config.StoreSQLite},
		Database: config.DatabaseConfig{
			SQLitePath: filepath.Join(t.TempDir(), "app.db"),
		},
		Redis: config.RedisConfig{
			Enabled:  true,
			Host:     host,
			Port:     port,
			PoolSize: 4,
			CacheTTL: time.Minute,
		},
		Stream: config.StreamConfig{HeartbeatInterval: time.Hour, BufferSize: 8, Channel: "app-test"},
		Tasks:  config.TasksConfig{WritebackConcurrency: 2},
		CORS:   config.CORSConfig{AllowOrigins: []string{"*"}},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestApp_SQLiteEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := app.New(context.Background(), sqliteConfig(t, mr), discardLogger())
	require.NoError(t, err)
	defer a.Close()
	h := a.Handler()

	w := send(t, h, http.MethodPost, "/users", `{"email":"alice@x.com","name":"Alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = send(t, h, http.MethodPost, "/users", `{"email":"alice@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	w = send(t, h, http.MethodPost, "/tasks", `{"email":"alice@x.com","title":"Report","dueDate":"`+due+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["_id"].(string)

	w = send(t, h, http.MethodGet, "/tasks?email=alice@x.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "To-Do", listed[0]["category"])

	w = send(t, h, http.MethodPut, "/tasks/"+id, `{"category":"Done"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(t, h, http.MethodPut, "/tasks/missing", `{"category":"Done"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(t, h, http.MethodDelete, "/tasks/"+id, "")
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":1}`, w.Body.String())

	w = send(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_FailsFastWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, mr)
	cfg.Redis.MaxRetries = -1
	mr.Close()

	_, err := app.New(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestApp_MongoStartupFailure(t *testing.T) {
	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.StoreMongo},
		Mongo: config.MongoConfig{URI: "mongodb://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond},
	}

	_, err := app.New(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestApp_HealthReportsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := app.New(context.Background(), sqliteConfig(t, mr), discardLogger())
	require.NoError(t, err)
	defer a.Close()
	h := a.Handler()

	w := send(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Checks))
	for _, c := range body.Checks {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"redis", "store"}, names)

	mr.Close()
	w = send(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"redis","status":"unhealthy"`)
}
