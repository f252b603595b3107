package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whisperfeed/auth"
	"whisperfeed/broker"
	"whisperfeed/content"
	"whisperfeed/domain"
	"whisperfeed/errors"
	"whisperfeed/projection"
	"whisperfeed/ratelimit"
	"whisperfeed/repositories"
	"whisperfeed/runtime/workers"
)

type IFeedService interface {
	Post(ctx context.Context, token, rawContent string) (domain.Message, error)
	Subscribe() *broker.Subscription
	History(sinceID uint64, limit int) ([]domain.Message, error)
	Search(ctx context.Context, term string, limit int) ([]domain.Message, error)
	Hashtags(n int) []projection.HashtagCount
}

// FeedService runs the admission pipeline: token, cooldown, content rules,
// then hands the message to the committer for the persist and broadcast
// steps. The cheap stateless checks run first so a rejected post never
// touches the cooldown or the store.
type FeedService struct {
	tokens    auth.TokenService
	limiter   ratelimit.Limiter
	validator content.Validator
	requests  chan<- workers.AdmissionRequest
	broker    *broker.Broker
	messages  repositories.IMessageRepository
	index     repositories.ISearchIndex
	trends    *projection.Trends
	log       *slog.Logger
}

func NewFeedService(
	tokens auth.TokenService,
	limiter ratelimit.Limiter,
	validator content.Validator,
	requests chan<- workers.AdmissionRequest,
	b *broker.Broker,
	messages repositories.IMessageRepository,
	index repositories.ISearchIndex,
	trends *projection.Trends,
	log *slog.Logger,
) IFeedService {
	return &FeedService{
		tokens:    tokens,
		limiter:   limiter,
		validator: validator,
		requests:  requests,
		broker:    b,
		messages:  messages,
		index:     index,
		trends:    trends,
		log:       log,
	}
}

// Post admits one message. Check order is fixed: token, rate limit, content.
// The rate limit window is consumed only when the token already checked out,
// so an unauthenticated caller cannot burn an identity's window.
func (s *FeedService) Post(ctx context.Context, token, rawContent string) (domain.Message, error) {
	identity, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Message{}, err
	}

	admitted, remaining, err := s.limiter.TryAdmit(ctx, identity, time.Now())
	if err != nil {
		return domain.Message{}, fmt.Errorf("rate limit check: %w", err)
	}
	if !admitted {
		return domain.Message{}, errors.RateLimited{Remaining: remaining}
	}

	result, err := s.validator.Validate(rawContent)
	if err != nil {
		return domain.Message{}, err
	}

	request := workers.AdmissionRequest{
		Message: domain.Message{
			Author:    identity,
			Content:   result.Content,
			CreatedAt: time.Now().UTC(),
			Hashtags:  result.Hashtags,
			Links:     result.Links,
		},
		Reply: make(chan workers.AdmissionResult, 1),
	}

	select {
	case s.requests <- request:
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}

	select {
	case reply := <-request.Reply:
		return reply.Message, reply.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// Subscribe opens a live view: backlog snapshot plus live channel.
func (s *FeedService) Subscribe() *broker.Subscription {
	return s.broker.Subscribe()
}

// History returns up to limit messages with id greater than sinceID,
// ascending. sinceID 0 reads from the beginning.
func (s *FeedService) History(sinceID uint64, limit int) ([]domain.Message, error) {
	return s.messages.ReadSince(sinceID, limit)
}

// Search resolves a term or hashtag against the full-text index and loads
// the matching messages from the store.
func (s *FeedService) Search(ctx context.Context, term string, limit int) ([]domain.Message, error) {
	ids, err := s.index.Search(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		found, err := s.messages.ReadSince(id-1, 1)
		if err != nil {
			return nil, fmt.Errorf("load message %d: %w", id, err)
		}
		if len(found) == 1 && found[0].ID == id {
			messages = append(messages, found[0])
		}
	}
	return messages, nil
}

// Hashtags returns the n most used hashtags so far.
func (s *FeedService) Hashtags(n int) []projection.HashtagCount {
	return s.trends.Top(n)
}
