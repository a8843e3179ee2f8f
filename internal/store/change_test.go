package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startProducer(s *store.Stream, ctx context.Context, in <-chan store.ChangeEvent) {
	go func() {
		var err error
		defer func() { s.Finish(err) }()
		for {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				return
			case ev, ok := <-in:
				if !ok {
					err = errors.New("source closed")
					return
				}
				if !s.Send(ev) {
					return
				}
			}
		}
	}()
}

func TestStream_DeliversAndCloses(t *testing.T) {
	stream, ctx := store.NewStream(context.Background(), 4)
	in := make(chan store.ChangeEvent)
	startProducer(stream, ctx, in)

	in <- store.ChangeEvent{Operation: store.OperationInsert, DocumentID: "t1", Task: &models.Task{ID: "t1"}}

	select {
	case ev := <-stream.Changes():
		assert.Equal(t, "t1", ev.DocumentID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, stream.Close())
	_, open := <-stream.Changes()
	assert.False(t, open, "channel should be closed after Close")
	assert.NoError(t, stream.Err(), "cancellation is not an error")
	assert.NoError(t, stream.Close(), "Close is idempotent")
}

func TestStream_SlowConsumerIsTerminated(t *testing.T) {
	stream, ctx := store.NewStream(context.Background(), 2)
	in := make(chan store.ChangeEvent)
	startProducer(stream, ctx, in)

	for i := 0; i < 3; i++ {
		in <- store.ChangeEvent{Operation: store.OperationUpdate}
	}

	received := 0
	for range stream.Changes() {
		received++
	}
	assert.Equal(t, 2, received)
	assert.ErrorIs(t, stream.Err(), store.ErrSlowConsumer)
	require.NoError(t, stream.Close())
}

func TestStream_ProducerFailureSurfaces(t *testing.T) {
	stream, ctx := store.NewStream(context.Background(), 2)
	in := make(chan store.ChangeEvent)
	startProducer(stream, ctx, in)
	close(in)

	_, open := <-stream.Changes()
	assert.False(t, open)
	assert.EqualError(t, stream.Err(), "source closed")
	require.NoError(t, stream.Close())
}

func TestStream_ParentCancellationStopsProducer(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	stream, ctx := store.NewStream(parent, 2)
	startProducer(stream, ctx, make(chan store.ChangeEvent))

	cancel()
	select {
	case _, open := <-stream.Changes():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("producer did not stop")
	}
	assert.NoError(t, stream.Err())
}
