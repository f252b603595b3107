package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"whisperfeed/auth"
	"whisperfeed/domain"
	"whisperfeed/errors"
	"whisperfeed/mocks"
)

const testEventCode = "NEURIPS26"

func newAuthService(repo *mocks.MockIIdentityRepository, mailer *mocks.MockMailer) IAuthService {
	tokens := auth.NewTokenService([]byte("test-signing-key"), 24*time.Hour)
	return NewAuthService(repo, tokens, mailer, slog.Default(), testEventCode, "http://localhost:8080")
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIIdentityRepository(ctrl)
	mockMailer := mocks.NewMockMailer(ctrl)
	svc := newAuthService(mockRepo, mockMailer)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		sent := make(chan string, 1)
		mockRepo.EXPECT().
			CreateIfAbsent(domain.Identity("alice@university.edu")).
			Return(true, nil).
			Times(1)
		mockMailer.EXPECT().
			SendMagicLink(gomock.Any(), domain.Identity("alice@university.edu"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Identity, link string) error {
				sent <- link
				return nil
			}).
			Times(1)

		token, err := svc.Register(context.Background(), auth.LoginRequest{
			Email:      "Alice@University.edu",
			EventCode:  testEventCode,
			AgreeTerms: true,
		})

		req.NoError(err)
		req.NotEmpty(token)

		select {
		case link := <-sent:
			req.Contains(link, "/auth/verify?token=")
		case <-time.After(time.Second):
			req.Fail("magic link was never delivered")
		}
	})

	t.Run("should fail on wrong event code", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateIfAbsent(gomock.Any()).Times(0)

		token, err := svc.Register(context.Background(), auth.LoginRequest{
			Email:      "alice@university.edu",
			EventCode:  "WRONG",
			AgreeTerms: true,
		})

		req.ErrorIs(err, errors.ErrInvalidEventCode)
		req.Empty(token)
	})

	t.Run("should fail when terms are not accepted", func(t *testing.T) {
		req := require.New(t)

		token, err := svc.Register(context.Background(), auth.LoginRequest{
			Email:     "alice@university.edu",
			EventCode: testEventCode,
		})

		req.ErrorIs(err, errors.ErrTermsNotAccepted)
		req.Empty(token)
	})

	t.Run("should reject free mail providers", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateIfAbsent(gomock.Any()).Times(0)

		token, err := svc.Register(context.Background(), auth.LoginRequest{
			Email:      "bob@gmail.com",
			EventCode:  testEventCode,
			AgreeTerms: true,
		})

		req.ErrorIs(err, errors.ErrIneligibleDomain)
		req.Empty(token)
	})

	t.Run("re-registration issues a fresh link", func(t *testing.T) {
		req := require.New(t)

		sent := make(chan struct{}, 1)
		mockRepo.EXPECT().
			CreateIfAbsent(domain.Identity("alice@university.edu")).
			Return(false, nil).
			Times(1)
		mockMailer.EXPECT().
			SendMagicLink(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Identity, _ string) error {
				sent <- struct{}{}
				return nil
			}).
			Times(1)

		token, err := svc.Register(context.Background(), auth.LoginRequest{
			Email:      "alice@university.edu",
			EventCode:  testEventCode,
			AgreeTerms: true,
		})

		req.NoError(err)
		req.NotEmpty(token)

		select {
		case <-sent:
		case <-time.After(time.Second):
			req.Fail("magic link was never delivered")
		}
	})
}

func TestAuthService_Verify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIIdentityRepository(ctrl)
	mockMailer := mocks.NewMockMailer(ctrl)
	tokens := auth.NewTokenService([]byte("test-signing-key"), 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens, mockMailer, slog.Default(), testEventCode, "http://localhost:8080")

	t.Run("valid token for known identity", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.Issue("alice@university.edu")
		req.NoError(err)

		mockRepo.EXPECT().
			Exists(domain.Identity("alice@university.edu")).
			Return(true, nil).
			Times(1)

		identity, err := svc.Verify(token)
		req.NoError(err)
		req.Equal(domain.Identity("alice@university.edu"), identity)
	})

	t.Run("token is reusable until expiry", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.Issue("alice@university.edu")
		req.NoError(err)

		mockRepo.EXPECT().
			Exists(domain.Identity("alice@university.edu")).
			Return(true, nil).
			Times(2)

		_, err = svc.Verify(token)
		req.NoError(err)
		_, err = svc.Verify(token)
		req.NoError(err)
	})

	t.Run("valid signature for unknown identity is refused", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.Issue("ghost@university.edu")
		req.NoError(err)

		mockRepo.EXPECT().
			Exists(domain.Identity("ghost@university.edu")).
			Return(false, nil).
			Times(1)

		_, err = svc.Verify(token)
		req.ErrorIs(err, errors.ErrTokenMalformed)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := require.New(t)
		_, err := svc.Verify("not-a-jwt")
		req.ErrorIs(err, errors.ErrTokenMalformed)
	})
}
