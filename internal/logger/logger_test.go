package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"task-manager/server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "task_id", "t1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "t1", entry["task_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "DEBUG", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "verbose"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
