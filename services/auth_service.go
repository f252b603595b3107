package services

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"whisperfeed/auth"
	"whisperfeed/domain"
	"whisperfeed/errors"
	"whisperfeed/mail"
	"whisperfeed/repositories"
)

const mailTimeout = 10 * time.Second

type IAuthService interface {
	Register(ctx context.Context, request auth.LoginRequest) (string, error)
	Verify(token string) (domain.Identity, error)
}

// AuthService runs the registration gate and issues magic-link tokens.
type AuthService struct {
	identityRepository repositories.IIdentityRepository
	tokens             auth.TokenService
	mailer             mail.Mailer
	log                *slog.Logger
	eventCode          string
	baseURL            string
}

func NewAuthService(
	identityRepository repositories.IIdentityRepository,
	tokens auth.TokenService,
	mailer mail.Mailer,
	log *slog.Logger,
	eventCode string,
	baseURL string,
) IAuthService {
	return &AuthService{
		identityRepository: identityRepository,
		tokens:             tokens,
		mailer:             mailer,
		log:                log,
		eventCode:          eventCode,
		baseURL:            baseURL,
	}
}

// Register validates the login request, records the identity and issues the
// magic-link token. The mail delivery runs in the background: a slow SMTP
// relay must not hold the HTTP response.
func (s *AuthService) Register(ctx context.Context, request auth.LoginRequest) (string, error) {
	// 1. Structural checks first: email shape and terms acceptance.
	if err := auth.ValidateLogin(request); err != nil {
		if stderrors.Is(err, errors.ErrTermsNotAccepted) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	// 2. The attendee must present the code printed on the event badge.
	if subtle.ConstantTimeCompare([]byte(request.EventCode), []byte(s.eventCode)) != 1 {
		return "", errors.ErrInvalidEventCode
	}

	// 3. Only institutional addresses may join the feed.
	identity := domain.NormalizeIdentity(request.Email)
	if !auth.IsEligibleDomain(identity) {
		return "", errors.ErrIneligibleDomain
	}

	// 4. Record the identity. Re-registration is allowed and simply issues
	// a fresh link.
	if _, err := s.identityRepository.CreateIfAbsent(identity); err != nil {
		return "", fmt.Errorf("record identity: %w", err)
	}

	// 5. Mint the token the magic link carries.
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	go s.deliverLink(identity, token)

	return token, nil
}

func (s *AuthService) deliverLink(identity domain.Identity, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	link := fmt.Sprintf("%s/auth/verify?token=%s", s.baseURL, url.QueryEscape(token))
	if err := s.mailer.SendMagicLink(ctx, identity, link); err != nil {
		s.log.Error("Failed to deliver magic link", "identity", identity, "error", err)
	}
}

// Verify checks the magic-link token and confirms the identity went through
// registration. A valid signature for an unknown identity is refused.
func (s *AuthService) Verify(token string) (domain.Identity, error) {
	identity, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	known, err := s.identityRepository.Exists(identity)
	if err != nil {
		return "", fmt.Errorf("lookup identity: %w", err)
	}
	if !known {
		return "", errors.ErrTokenMalformed
	}
	return identity, nil
}
