package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"whisperfeed/auth"
	"whisperfeed/broker"
	"whisperfeed/content"
	"whisperfeed/domain"
	domainevent "whisperfeed/domain/event"
	"whisperfeed/errors"
	"whisperfeed/mocks"
	"whisperfeed/projection"
	"whisperfeed/runtime/workers"
)

type feedFixture struct {
	svc      IFeedService
	tokens   auth.TokenService
	limiter  *mocks.MockLimiter
	messages *mocks.MockIMessageRepository
	index    *mocks.MockISearchIndex
	trends   *projection.Trends
	broker   *broker.Broker
}

// newFeedFixture wires a feed service against a stub committer that assigns
// sequential ids and publishes, standing in for the real worker.
func newFeedFixture(t *testing.T, ctrl *gomock.Controller) *feedFixture {
	t.Helper()

	tokens := auth.NewTokenService([]byte("test-signing-key"), 24*time.Hour)
	limiter := mocks.NewMockLimiter(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockISearchIndex(ctrl)
	trends := projection.NewTrends()
	b := broker.New(slog.Default(), 50, 8, nil)
	t.Cleanup(b.Close)

	requests := make(chan workers.AdmissionRequest, 4)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		var next uint64
		for {
			select {
			case <-done:
				return
			case request := <-requests:
				next++
				stored := request.Message
				stored.ID = next
				b.Publish(stored)
				request.Reply <- workers.AdmissionResult{Message: stored}
			}
		}
	}()

	svc := NewFeedService(tokens, limiter, content.NewValidator(140),
		requests, b, messages, index, trends, slog.Default())

	return &feedFixture{
		svc:      svc,
		tokens:   tokens,
		limiter:  limiter,
		messages: messages,
		index:    index,
		trends:   trends,
		broker:   b,
	}
}

func TestFeedService_Post(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newFeedFixture(t, ctrl)
	ctx := context.Background()

	token, err := fx.tokens.Issue("alice@university.edu")
	require.NoError(t, err)

	t.Run("admitted post gets an id and annotations", func(t *testing.T) {
		req := require.New(t)

		fx.limiter.EXPECT().
			TryAdmit(gomock.Any(), domain.Identity("alice@university.edu"), gomock.Any()).
			Return(true, time.Duration(0), nil).
			Times(1)

		message, err := fx.svc.Post(ctx, token, "Great talk on #Diffusion! https://arxiv.org/abs/1234.5678")
		req.NoError(err)
		req.Equal(uint64(1), message.ID)
		req.Equal(domain.Identity("alice@university.edu"), message.Author)
		req.Equal([]string{"Diffusion"}, message.Hashtags)
		req.Equal([]string{"https://arxiv.org/abs/1234.5678"}, message.Links)
	})

	t.Run("bad token stops before the rate limiter", func(t *testing.T) {
		req := require.New(t)

		fx.limiter.EXPECT().TryAdmit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := fx.svc.Post(ctx, "garbage", "hello")
		req.ErrorIs(err, errors.ErrTokenMalformed)
	})

	t.Run("rate limited post reports the remaining wait", func(t *testing.T) {
		req := require.New(t)

		fx.limiter.EXPECT().
			TryAdmit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false, 3*time.Second, nil).
			Times(1)

		_, err := fx.svc.Post(ctx, token, "hello")
		var limited errors.RateLimited
		req.ErrorAs(err, &limited)
		req.Equal(3*time.Second, limited.Remaining)
	})

	t.Run("invalid content consumes the rate limit window", func(t *testing.T) {
		req := require.New(t)

		// The cooldown is checked before content rules, so a rejected
		// message still burns the window.
		fx.limiter.EXPECT().
			TryAdmit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(true, time.Duration(0), nil).
			Times(1)

		_, err := fx.svc.Post(ctx, token, "   ")
		req.ErrorIs(err, errors.ErrEmptyMessage)
	})

	t.Run("disallowed link rejects the post", func(t *testing.T) {
		req := require.New(t)

		fx.limiter.EXPECT().
			TryAdmit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(true, time.Duration(0), nil).
			Times(1)

		_, err := fx.svc.Post(ctx, token, "check https://evil.example.com/malware")
		var disallowed errors.DisallowedLink
		req.ErrorAs(err, &disallowed)
		req.Equal("https://evil.example.com/malware", disallowed.URL)
	})
}

func TestFeedService_PostReachesSubscribers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newFeedFixture(t, ctrl)

	token, err := fx.tokens.Issue("alice@university.edu")
	req.NoError(err)

	sub := fx.svc.Subscribe()
	defer sub.Cancel()

	fx.limiter.EXPECT().
		TryAdmit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(true, time.Duration(0), nil).
		Times(1)

	message, err := fx.svc.Post(context.Background(), token, "hello everyone")
	req.NoError(err)

	live := <-sub.Live
	req.Equal(message.ID, live.ID)
	req.Equal("hello everyone", live.Content)
}

func TestFeedService_History(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newFeedFixture(t, ctrl)

	fx.messages.EXPECT().
		ReadSince(uint64(2), 10).
		Return([]domain.Message{{ID: 3}, {ID: 4}}, nil).
		Times(1)

	messages, err := fx.svc.History(2, 10)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(uint64(3), messages[0].ID)
}

func TestFeedService_Search(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newFeedFixture(t, ctrl)
	ctx := context.Background()

	fx.index.EXPECT().
		Search(gomock.Any(), "diffusion", 10).
		Return([]uint64{2, 5}, nil).
		Times(1)
	fx.messages.EXPECT().
		ReadSince(uint64(1), 1).
		Return([]domain.Message{{ID: 2, Content: "#Diffusion talk"}}, nil).
		Times(1)
	fx.messages.EXPECT().
		ReadSince(uint64(4), 1).
		Return([]domain.Message{{ID: 5, Content: "more diffusion"}}, nil).
		Times(1)

	messages, err := fx.svc.Search(ctx, "diffusion", 10)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(uint64(2), messages[0].ID)
	req.Equal(uint64(5), messages[1].ID)
}

func TestFeedService_Hashtags(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newFeedFixture(t, ctrl)

	fx.trends.Consume(domainevent.MessageAdmitted{Message: domain.Message{
		ID:       1,
		Author:   "alice@university.edu",
		Hashtags: []string{"LLM"},
	}})

	top := fx.svc.Hashtags(5)
	req.Len(top, 1)
	req.Equal("LLM", top[0].Tag)
}
