package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whisperfeed/broker"
	"whisperfeed/contract"
	"whisperfeed/domain"
	"whisperfeed/domain/event"
	"whisperfeed/errors"
	"whisperfeed/repositories"
)

const sinkTimeout = 2 * time.Second

// AdmissionRequest carries a validated message through the commit stage.
// Reply must be buffered (capacity 1) so the committer never blocks on a
// caller that gave up waiting.
type AdmissionRequest struct {
	Message domain.Message
	Reply   chan AdmissionResult
}

// AdmissionResult is the stored message with its assigned id, or the error
// that prevented persistence.
type AdmissionResult struct {
	Message domain.Message
	Err     error
}

// AdmissionCommitter is the single goroutine that persists validated
// messages and publishes them. Funneling both steps through one loop keeps
// the broadcast order identical to the id order the store assigns, and
// guarantees a message is never announced before it is durable.
type AdmissionCommitter struct {
	log      *slog.Logger
	requests chan AdmissionRequest
	repo     repositories.IMessageRepository
	broker   *broker.Broker
	sinks    []contract.EventSink
}

func NewAdmissionCommitter(log *slog.Logger,
	requests chan AdmissionRequest,
	repo repositories.IMessageRepository,
	b *broker.Broker,
	sinks []contract.EventSink) *AdmissionCommitter {
	return &AdmissionCommitter{
		log:      log,
		requests: requests,
		repo:     repo,
		broker:   b,
		sinks:    sinks,
	}
}

func (w *AdmissionCommitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping admission commits")
			return nil
		case request := <-w.requests:
			w.commit(ctx, request)
		}
	}
}

func (w *AdmissionCommitter) commit(ctx context.Context, request AdmissionRequest) {
	stored, err := w.repo.Append(request.Message)
	if err != nil {
		w.log.Error("Failed to persist message", "author", request.Message.Author, "error", err)
		w.reply(request, AdmissionResult{Err: fmt.Errorf("%w: %v", errors.ErrPersistence, err)})
		return
	}

	// Broadcast strictly after the write is durable.
	w.broker.Publish(stored)

	// Sinks are best-effort: a failing projection never fails the post.
	admitted := event.MessageAdmitted{Message: stored}
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := sink.Consume(sinkCtx, admitted); err != nil {
			w.log.Warn("Sink rejected admitted message", "message_id", stored.ID, "error", err)
		}
		cancel()
	}

	w.reply(request, AdmissionResult{Message: stored})
}

func (w *AdmissionCommitter) reply(request AdmissionRequest, result AdmissionResult) {
	select {
	case request.Reply <- result:
	default:
		w.log.Warn("Admission caller abandoned its reply", "author", request.Message.Author)
	}
}
