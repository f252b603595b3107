package event

import (
	"log/slog"
	"sync"

	"whisperfeed/errors"
)

// SubscriberDroppedHandler counts live readers evicted for falling behind.
// A rising counter means subscriber buffers are undersized or clients are slow.
type SubscriberDroppedHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter uint64
}

func NewSubscriberDroppedHandler(log *slog.Logger) *SubscriberDroppedHandler {
	return &SubscriberDroppedHandler{log: log}
}

func (h *SubscriberDroppedHandler) Handle(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Type {
	case SubscriberDroppedType:
		payload, ok := event.Payload.(SubscriberDropped)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter++
		h.log.Warn("slow subscriber dropped",
			"subscriber_id", payload.SubscriberID,
			"last_id", payload.LastID,
			"total_dropped", h.counter)
	}
}

func (h *SubscriberDroppedHandler) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}
