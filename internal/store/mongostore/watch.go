package mongostore

import (
	"context"
	"fmt"

	"task-manager/server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type changeDocument struct {
	OperationType string `bson:"operationType"`
	DocumentKey   bson.M `bson:"documentKey"`
	FullDocument  bson.M `bson:"fullDocument"`
}

// WatchTasks opens a change stream on the tasks collection. Updates are
// delivered with the current full document looked up by the server.
func (s *Store) WatchTasks(ctx context.Context) (store.Subscription, error) {
	stream, streamCtx := store.NewStream(ctx, s.bufferSize)

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.tasks.Watch(streamCtx, mongo.Pipeline{}, opts)
	if err != nil {
		stream.Finish(nil)
		_ = stream.Close()
		return nil, fmt.Errorf("failed to open task change stream: %w", err)
	}

	go s.relay(streamCtx, cs, stream)
	return stream, nil
}

func (s *Store) relay(ctx context.Context, cs *mongo.ChangeStream, stream *store.Stream) {
	var err error
	defer func() { stream.Finish(err) }()
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var change changeDocument
		if decodeErr := cs.Decode(&change); decodeErr != nil {
			s.logger.Warn("skipping undecodable change event", "error", decodeErr)
			continue
		}

		ev := store.ChangeEvent{
			Operation:  store.OperationType(change.OperationType),
			DocumentID: idString(change.DocumentKey["_id"]),
		}
		if change.FullDocument != nil {
			task := taskFromDoc(change.FullDocument)
			ev.Task = &task
		}
		if !stream.Send(ev) {
			s.logger.Warn("task change subscriber fell behind, closing stream")
			return
		}
	}
	err = cs.Err()
}
