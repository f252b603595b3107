// Package broker is the in-memory publish/subscribe hub distributing
// admitted messages to live readers. It keeps a bounded backlog so a late
// subscriber can close the gap between "last seen" and "now" without a full
// history replay.
package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"whisperfeed/domain"
	"whisperfeed/domain/event"
)

type subscriber struct {
	id   string
	ch   chan domain.Message
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscription is a live reader's view: the backfill snapshot plus the live
// channel. The channel produces messages in non-decreasing id order and is
// closed when Cancel is called, the broker shuts down, or the reader falls
// too far behind.
type Subscription struct {
	ID       string
	Backfill []domain.Message
	Live     <-chan domain.Message
	Cancel   func()
}

// Broker fans admitted messages out to all current subscribers.
//
// Publish is non-blocking with respect to any single reader: each
// subscriber has a bounded buffer and overflowing it drops that subscriber
// rather than stalling publication. Publish must be called from a single
// goroutine (the admission committer); subscribers see the exact call order.
type Broker struct {
	log        *slog.Logger
	mu         sync.Mutex
	subs       map[string]*subscriber
	backlog    []domain.Message
	window     int
	bufferSize int
	telemetry  chan<- event.Event
	closed     bool
}

// New creates a broker with a backfill window of `window` messages and a
// per-subscriber delivery buffer of `bufferSize`. telemetry may be nil.
func New(log *slog.Logger, window, bufferSize int, telemetry chan<- event.Event) *Broker {
	return &Broker{
		log:        log,
		subs:       make(map[string]*subscriber),
		window:     window,
		bufferSize: bufferSize,
		telemetry:  telemetry,
	}
}

// Subscribe registers a live reader. The backlog snapshot and the
// registration happen under one lock so no message published concurrently
// is missed or duplicated between backfill and live stream.
func (b *Broker) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan domain.Message, b.bufferSize),
	}
	backfill := make([]domain.Message, len(b.backlog))
	copy(backfill, b.backlog)

	if b.closed {
		sub.close()
	} else {
		b.subs[sub.id] = sub
	}

	return &Subscription{
		ID:       sub.id,
		Backfill: backfill,
		Live:     sub.ch,
		Cancel:   func() { b.unsubscribe(sub.id) },
	}
}

func (b *Broker) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		sub.close()
	}
}

// Publish delivers the message to every registered subscriber and records
// it in the backlog. A subscriber whose buffer is full is dropped on the
// spot; the publisher never waits.
func (b *Broker) Publish(message domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.backlog = append(b.backlog, message)
	if len(b.backlog) > b.window {
		b.backlog = b.backlog[len(b.backlog)-b.window:]
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- message:
		default:
			delete(b.subs, id)
			sub.close()
			b.log.Warn("dropping slow subscriber", "subscriber_id", id, "message_id", message.ID)
			b.emitDropped(id, message.ID)
		}
	}
}

// SubscriberCount reports the number of live readers, for telemetry.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close terminates every live stream. Further publishes are ignored and
// further subscribers get a closed channel with the final backlog.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
}

func (b *Broker) emitDropped(subscriberID string, lastID uint64) {
	if b.telemetry == nil {
		return
	}
	evt := event.Event{
		Type:      event.SubscriberDroppedType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.SubscriberDropped{SubscriberID: subscriberID, LastID: lastID},
	}
	select {
	case b.telemetry <- evt:
	default:
		b.log.Debug("Observability telemetry event lost")
	}
}
