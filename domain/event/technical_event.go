package event

import "time"

type Type string

const (
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	SubscriberDroppedType   Type = "SUBSCRIBER_DROPPED"
)

// Event is a telemetry envelope. Telemetry is sampled and lossy: producers
// use non-blocking sends and drop when the channel is full.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

// SubscriberDropped reports a live reader evicted because its delivery
// buffer overflowed.
type SubscriberDropped struct {
	SubscriberID string
	LastID       uint64
}
