// AngelaMos | 2026
// notifier.go

package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
)

type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LinkNotifier renders account emails that point back at the frontend and
// hands them to a Sender.
type LinkNotifier struct {
	sender      Sender
	from        string
	frontendURL string
}

func NewNotifier(cfg config.EmailConfig, sender Sender) *LinkNotifier {
	return &LinkNotifier{
		sender:      sender,
		from:        cfg.From,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

func (n *LinkNotifier) SendVerificationEmail(
	ctx context.Context,
	to, token string,
) error {
	link := n.link("/verify-email", token)

	return n.send(ctx, Message{
		To:      to,
		Subject: "Verify your email address",
		Text: "Please verify your email address by visiting the link below:\n\n" +
			link + "\n\nThis link will expire in 24 hours.\n",
	})
}

func (n *LinkNotifier) SendPasswordResetEmail(
	ctx context.Context,
	to, token string,
) error {
	link := n.link("/reset-password", token)

	return n.send(ctx, Message{
		To:      to,
		Subject: "Reset your password",
		Text: "You requested a password reset. Visit the link below to reset your password:\n\n" +
			link + "\n\nThis link will expire in 1 hour.\n\n" +
			"If you didn't request this, please ignore this email.\n",
	})
}

func (n *LinkNotifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (n *LinkNotifier) send(ctx context.Context, msg Message) error {
	msg.From = n.from
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}
