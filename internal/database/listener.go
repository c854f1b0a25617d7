package database

import (
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	messageEventsChannel = "message_events"
	orderEventsChannel   = "order_events"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// TableEvent is one change observed on the underlying storage, regardless
// of which write path produced it.
type TableEvent struct {
	Table string   `json:"table"`
	Op    ChangeOp `json:"op"`
	Id    int      `json:"id"`
}

// ChangeFeed is a subscription to storage-level inserts/updates. The relay
// consumes it to mirror writes that bypassed the socket path.
type ChangeFeed interface {
	Events() <-chan TableEvent
	Close() error
}

// PgChangeFeed implements ChangeFeed on top of Postgres LISTEN/NOTIFY.
// Row triggers publish {table, op, id} JSON on the message and order
// channels; payloads carry ids only, consumers re-read the row.
type PgChangeFeed struct {
	listener *pq.Listener
	log      *log.Logger
	events   chan TableEvent
	stop     chan struct{}
	done     chan struct{}
}

func NewPgChangeFeed(dsn string, logger *log.Logger) (*PgChangeFeed, error) {
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Println("change feed listener:", err)
			}
		})

	for _, channel := range []string{messageEventsChannel, orderEventsChannel} {
		if err := listener.Listen(channel); err != nil {
			listener.Close()
			return nil, err
		}
	}

	feed := &PgChangeFeed{
		listener: listener,
		log:      logger,
		events:   make(chan TableEvent, 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go feed.run()

	return feed, nil
}

func (f *PgChangeFeed) run() {
	defer func() {
		close(f.events)
		close(f.done)
	}()

	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// nil notification signals a reconnect; queued events may
				// have been missed while disconnected
				f.log.Println("change feed reconnected")
				continue
			}

			var ev TableEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				f.log.Printf("invalid change feed payload %q: %v", n.Extra, err)
				continue
			}

			select {
			case f.events <- ev:
			case <-f.stop:
				return
			}
		case <-time.After(listenerPingInterval):
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.log.Println("change feed ping:", err)
				}
			}()
		case <-f.stop:
			return
		}
	}
}

// Events returns the stream of observed changes. The channel is closed
// when the feed shuts down.
func (f *PgChangeFeed) Events() <-chan TableEvent {
	return f.events
}

func (f *PgChangeFeed) Close() error {
	close(f.stop)
	<-f.done
	return f.listener.Close()
}
