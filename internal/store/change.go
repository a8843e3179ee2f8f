package store

import (
	"context"
	"errors"
	"sync"

	"task-manager/server/internal/models"
)

// ErrSlowConsumer ends a subscription whose buffer filled up.
var ErrSlowConsumer = errors.New("change subscriber fell behind")

type OperationType string

const (
	OperationInsert  OperationType = "insert"
	OperationUpdate  OperationType = "update"
	OperationReplace OperationType = "replace"
	OperationDelete  OperationType = "delete"
)

type ChangeEvent struct {
	Operation  OperationType `json:"operationType"`
	DocumentID string        `json:"documentKey"`
	// Task is the document after the change; nil for deletes.
	Task *models.Task `json:"fullDocument,omitempty"`
}

// Stream is the Subscription drivers hand out. A single producer goroutine
// feeds it with Send and calls Finish exactly once when it stops.
type Stream struct {
	events chan ChangeEvent
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewStream returns a stream buffering at most size events and the context
// the producer must watch; it is cancelled by Close or by parent.
func NewStream(parent context.Context, size int) (*Stream, context.Context) {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		events: make(chan ChangeEvent, size),
		done:   make(chan struct{}),
		cancel: cancel,
	}, ctx
}

// Send enqueues ev without blocking. It returns false when the buffer is full,
// after which the producer must stop.
func (s *Stream) Send(ev ChangeEvent) bool {
	select {
	case s.events <- ev:
		return true
	default:
		s.setErr(ErrSlowConsumer)
		return false
	}
}

// Finish records why the producer stopped and closes the event channel.
func (s *Stream) Finish(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.setErr(err)
	}
	close(s.events)
	close(s.done)
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) Changes() <-chan ChangeEvent {
	return s.events
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the producer and waits for it to release its resources.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
