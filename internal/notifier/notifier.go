// Package notifier turns the store's task change feed into the event
// sequence pushed to streaming clients: full task documents for inserts and
// updates, interleaved with periodic heartbeats.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
)

const DefaultHeartbeatInterval = 30 * time.Second

// ErrClosed is returned by Next once the subscription has been closed.
var ErrClosed = errors.New("subscription closed")

type Event struct {
	Task      *models.Task
	Heartbeat bool
}

type Notifier struct {
	feed      store.ChangeFeed
	heartbeat time.Duration
}

func New(feed store.ChangeFeed, heartbeat time.Duration) *Notifier {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Notifier{feed: feed, heartbeat: heartbeat}
}

// Subscription owns a feed subscription and its heartbeat ticker. Close
// releases both.
type Subscription struct {
	changes store.Subscription
	ticker  *time.Ticker

	closed    chan struct{}
	closeOnce sync.Once
}

// Subscribe opens the change feed and starts the heartbeat. The caller must
// Close the subscription.
func (n *Notifier) Subscribe(ctx context.Context) (*Subscription, error) {
	changes, err := n.feed.WatchTasks(ctx)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		changes: changes,
		ticker:  time.NewTicker(n.heartbeat),
		closed:  make(chan struct{}),
	}, nil
}

// Next blocks until a task change or a heartbeat is due. Deletes carry no
// document and are skipped. When the feed ends, Next returns the feed's error
// or ErrClosed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.closed:
			return Event{}, ErrClosed
		case <-s.ticker.C:
			return Event{Heartbeat: true}, nil
		case ev, ok := <-s.changes.Changes():
			if !ok {
				if err := s.changes.Err(); err != nil {
					return Event{}, err
				}
				return Event{}, ErrClosed
			}
			if !relayed(ev) {
				continue
			}
			return Event{Task: ev.Task}, nil
		}
	}
}

func relayed(ev store.ChangeEvent) bool {
	switch ev.Operation {
	case store.OperationInsert, store.OperationUpdate, store.OperationReplace:
		return ev.Task != nil
	default:
		return false
	}
}

func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.ticker.Stop()
		err = s.changes.Close()
	})
	return err
}
