package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"task-manager/server/internal/notifier"

	"github.com/gin-gonic/gin"
)

var heartbeatPayload = []byte("{}")

type Subscriber interface {
	Subscribe(ctx context.Context) (*notifier.Subscription, error)
}

// StreamObserver is told when event stream connections open and close.
type StreamObserver interface {
	StreamOpened()
	StreamClosed()
}

type StreamHandler struct {
	notifier Subscriber
	observer StreamObserver
	logger   *slog.Logger
}

func NewStreamHandler(n Subscriber, observer StreamObserver, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{notifier: n, observer: observer, logger: logger}
}

// TaskUpdates pushes every inserted or updated task as a server-sent event,
// with an empty object as heartbeat. It returns when the client disconnects
// or the change feed ends; clients are expected to reconnect.
func (h *StreamHandler) TaskUpdates(c *gin.Context) {
	ctx := c.Request.Context()

	sub, err := h.notifier.Subscribe(ctx)
	if err != nil {
		h.logger.Error("failed to open task change subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to subscribe to task updates"})
		return
	}
	defer sub.Close()

	if h.observer != nil {
		h.observer.StreamOpened()
		defer h.observer.StreamClosed()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, notifier.ErrClosed) {
				h.logger.Warn("task update stream ended", "error", err)
			}
			return
		}

		payload := heartbeatPayload
		if !ev.Heartbeat {
			if payload, err = json.Marshal(ev.Task); err != nil {
				h.logger.Error("failed to encode task update", "error", err)
				continue
			}
		}

		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
