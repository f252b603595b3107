package broker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisperfeed/domain"
	"whisperfeed/domain/event"
)

func msg(id uint64) domain.Message {
	return domain.Message{ID: id, Author: "a@university.edu", Content: "m", CreatedAt: time.Now()}
}

func TestBroker_LiveDelivery(t *testing.T) {
	req := require.New(t)
	b := New(slog.Default(), 50, 8, nil)
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Cancel()
	req.Empty(sub.Backfill)

	b.Publish(msg(1))
	b.Publish(msg(2))

	req.Equal(uint64(1), (<-sub.Live).ID)
	req.Equal(uint64(2), (<-sub.Live).ID)
}

func TestBroker_BackfillWindow(t *testing.T) {
	req := require.New(t)
	b := New(slog.Default(), 3, 8, nil)
	defer b.Close()

	for id := uint64(1); id <= 5; id++ {
		b.Publish(msg(id))
	}

	sub := b.Subscribe()
	defer sub.Cancel()

	// Only the last 3 messages are replayed, in id order.
	req.Len(sub.Backfill, 3)
	req.Equal(uint64(3), sub.Backfill[0].ID)
	req.Equal(uint64(5), sub.Backfill[2].ID)

	// Live picks up exactly where the backfill stopped.
	b.Publish(msg(6))
	req.Equal(uint64(6), (<-sub.Live).ID)
}

func TestBroker_ExactlyOncePerSubscription(t *testing.T) {
	req := require.New(t)
	b := New(slog.Default(), 50, 8, nil)
	defer b.Close()

	early := b.Subscribe()
	defer early.Cancel()

	b.Publish(msg(1))

	late := b.Subscribe()
	defer late.Cancel()

	// The early subscriber sees message 1 live, exactly once.
	req.Equal(uint64(1), (<-early.Live).ID)
	select {
	case m := <-early.Live:
		t.Fatalf("unexpected duplicate delivery: %d", m.ID)
	default:
	}

	// The late subscriber sees it only via backfill.
	req.Len(late.Backfill, 1)
	req.Equal(uint64(1), late.Backfill[0].ID)
}

func TestBroker_SlowSubscriberIsDropped(t *testing.T) {
	req := require.New(t)
	telemetry := make(chan event.Event, 4)
	b := New(slog.Default(), 50, 2, telemetry)
	defer b.Close()

	slow := b.Subscribe()
	fast := b.Subscribe()
	defer fast.Cancel()

	// Fill the slow reader's buffer (capacity 2), keeping the fast reader
	// drained, then overflow the slow one.
	b.Publish(msg(1))
	b.Publish(msg(2))
	req.Equal(uint64(1), (<-fast.Live).ID)
	req.Equal(uint64(2), (<-fast.Live).ID)
	b.Publish(msg(3))

	// The fast reader is unaffected and publication never blocked.
	req.Equal(uint64(3), (<-fast.Live).ID)

	// The slow subscriber was evicted: its channel is closed after the
	// buffered messages drain.
	req.Equal(uint64(1), (<-slow.Live).ID)
	req.Equal(uint64(2), (<-slow.Live).ID)
	_, open := <-slow.Live
	req.False(open)
	req.Equal(1, b.SubscriberCount())

	evt := <-telemetry
	req.Equal(event.SubscriberDroppedType, evt.Type)
}

func TestBroker_CancelReleasesSubscription(t *testing.T) {
	req := require.New(t)
	b := New(slog.Default(), 50, 8, nil)
	defer b.Close()

	sub := b.Subscribe()
	req.Equal(1, b.SubscriberCount())

	sub.Cancel()
	req.Equal(0, b.SubscriberCount())
	_, open := <-sub.Live
	req.False(open)

	// Cancel is idempotent.
	sub.Cancel()
}

func TestBroker_Close(t *testing.T) {
	req := require.New(t)
	b := New(slog.Default(), 50, 8, nil)

	sub := b.Subscribe()
	b.Close()

	_, open := <-sub.Live
	req.False(open)

	// Subscribing after shutdown yields a closed stream with the backlog.
	post := b.Subscribe()
	_, open = <-post.Live
	req.False(open)
}
