package sink

import (
	"context"

	"whisperfeed/domain/event"
	"whisperfeed/projection"
)

// TrendsSink feeds admitted messages into the hashtag trends projection.
type TrendsSink struct {
	trends *projection.Trends
}

func NewTrendsSink(trends *projection.Trends) *TrendsSink {
	return &TrendsSink{trends: trends}
}

// Consume implements the EventSink interface. The projection is in-memory
// and never fails.
func (s *TrendsSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.trends.Consume(e)
	return nil
}
