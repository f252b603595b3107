// Package sink adapts read-model consumers to the admission pipeline.
// Sinks receive admitted messages after the broadcast and must never block
// or fail the post.
package sink

import (
	"context"
	"log/slog"

	"whisperfeed/domain/event"
	"whisperfeed/repositories"
)

// IndexSink feeds every admitted message into the full-text search index.
type IndexSink struct {
	index repositories.ISearchIndex
	log   *slog.Logger
}

func NewIndexSink(index repositories.ISearchIndex, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

// Consume implements the EventSink interface.
func (s *IndexSink) Consume(ctx context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageAdmitted)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.index.Index(evt.Message); err != nil {
		s.log.Error("Failed to index message", "message_id", evt.Message.ID, "error", err)
		return err
	}
	return nil
}
