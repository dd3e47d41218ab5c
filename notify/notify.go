package notify

import (
	"context"
	"fmt"

	"github.com/ptgott/reviewhub-mail/html"
	"github.com/rs/zerolog/log"
)

// Deliverer sends a single message and reports whether it went out.
// *email.Mailer satisfies it.
type Deliverer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) bool
}

// Notifier formats account emails and passes them to a Deliverer.
type Notifier struct {
	mailer  Deliverer
	links   Links
	appName string
}

// New returns a Notifier. appName is used in subjects and copy.
func New(d Deliverer, l Links, appName string) *Notifier {
	return &Notifier{
		mailer:  d,
		links:   l,
		appName: appName,
	}
}

// SendVerificationEmail asks username to confirm the address to by following
// a link that carries token.
func (n *Notifier) SendVerificationEmail(ctx context.Context, to, username, token string) bool {
	b, err := html.Verification(html.Content{
		AppName:  n.appName,
		Username: username,
		Link:     n.links.Verification(token),
	})
	if err != nil {
		return n.renderFailed("verification", to, err)
	}
	subject := fmt.Sprintf("Verify Your %v Account", n.appName)
	return n.mailer.Send(ctx, to, subject, b.HTML, b.Text)
}

// SendPasswordResetEmail sends username a link, carrying token, for choosing
// a new password.
func (n *Notifier) SendPasswordResetEmail(ctx context.Context, to, username, token string) bool {
	b, err := html.PasswordReset(html.Content{
		AppName:  n.appName,
		Username: username,
		Link:     n.links.PasswordReset(token),
	})
	if err != nil {
		return n.renderFailed("password reset", to, err)
	}
	subject := fmt.Sprintf("Reset Your %v Password", n.appName)
	return n.mailer.Send(ctx, to, subject, b.HTML, b.Text)
}

// SendWelcomeEmail greets username once their address is verified.
func (n *Notifier) SendWelcomeEmail(ctx context.Context, to, username string) bool {
	b, err := html.Welcome(html.Content{
		AppName:  n.appName,
		Username: username,
		Link:     n.links.FrontendURL,
	})
	if err != nil {
		return n.renderFailed("welcome", to, err)
	}
	subject := fmt.Sprintf("Welcome to %v 🎉", n.appName)
	return n.mailer.Send(ctx, to, subject, b.HTML, b.Text)
}

func (n *Notifier) renderFailed(kind, to string, err error) bool {
	log.Error().
		Err(err).
		Str("kind", kind).
		Str("to", to).
		Msg("could not render the email body")
	return false
}
