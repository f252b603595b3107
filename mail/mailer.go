//go:generate go run go.uber.org/mock/mockgen -source=mailer.go -destination=../mocks/mock_mailer.go -package=mocks

// Package mail delivers magic links to registered identities.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"whisperfeed/domain"
)

type Mailer interface {
	SendMagicLink(ctx context.Context, identity domain.Identity, link string) error
}

// SMTPMailer sends the magic link over SMTP.
type SMTPMailer struct {
	client *gomail.Client
	from   string
	log    *slog.Logger
}

func NewSMTPMailer(host string, port int, username, password, from string, log *slog.Logger) (*SMTPMailer, error) {
	client, err := gomail.NewClient(host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(username),
		gomail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: from, log: log}, nil
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, identity domain.Identity, link string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(string(identity)); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject("Your event feed sign-in link")
	msg.SetBodyString(gomail.TypeTextPlain,
		fmt.Sprintf("Open this link to join the live feed:\n\n%s\n\nThe link stays valid until it expires.", link))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	m.log.Info("Magic link sent", "identity", identity)
	return nil
}

// LogMailer writes the magic link to the log instead of sending it.
// Used in development when no SMTP relay is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendMagicLink(_ context.Context, identity domain.Identity, link string) error {
	m.log.Info("Magic link issued", "identity", identity, "link", link)
	return nil
}
