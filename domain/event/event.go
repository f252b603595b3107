package event

import (
	"time"

	"whisperfeed/domain"
)

// DomainEvent is anything the admission committer can hand to sinks and
// live subscribers after a message became durable.
type DomainEvent interface {
	OccurredAt() time.Time
}

// MessageAdmitted is emitted exactly once per admitted message, after the
// store assigned its ID. Carries the full persisted message.
type MessageAdmitted struct {
	Message domain.Message
}

func (m MessageAdmitted) OccurredAt() time.Time {
	return m.Message.CreatedAt
}
