package email

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Backend selects how a Mailer delivers messages. It's chosen once, when the
// Mailer is built.
type Backend int

const (
	// BackendSMTP hands messages to an SMTP relay.
	BackendSMTP Backend = iota
	// BackendConsole writes messages to the process output instead of
	// sending them. Meant for development.
	BackendConsole
)

// ParseBackend maps a configuration value to a Backend. Matching is
// case-insensitive.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smtp":
		return BackendSMTP, nil
	case "console":
		return BackendConsole, nil
	}
	return BackendSMTP, fmt.Errorf("unknown email backend %q: must be \"smtp\" or \"console\"", s)
}

func (b Backend) String() string {
	switch b {
	case BackendSMTP:
		return "smtp"
	case BackendConsole:
		return "console"
	}
	return "unknown"
}

// Config holds everything a Mailer needs. Treat it as read-only once it has
// been loaded.
type Config struct {
	Backend Backend
	SMTP    SMTPConfig
}

// Sender delivers one message. A nil error means the message was accepted
// by whatever sits behind the Sender.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Mailer is the entry point for sending email. It never returns an error to
// its callers: every failure is logged and reported as false. Callers that
// need to retry or alert have to do so themselves.
type Mailer struct {
	sender  Sender
	backend Backend
	// Metrics is optional. When set, every Send is counted.
	Metrics *Metrics
}

// New builds a Mailer for the configured backend. Console output goes to
// stdout.
func New(c Config) *Mailer {
	return NewWithOutput(c, os.Stdout)
}

// NewWithOutput is New with the console backend writing to out.
func NewWithOutput(c Config, out io.Writer) *Mailer {
	var s Sender
	switch c.Backend {
	case BackendConsole:
		s = &ConsoleSender{Out: out}
	default:
		s = NewSMTPSender(c.SMTP)
	}
	return &Mailer{
		sender:  s,
		backend: c.Backend,
	}
}

// NewMailer wraps an arbitrary Sender, e.g., one used in tests.
func NewMailer(s Sender, b Backend) *Mailer {
	return &Mailer{
		sender:  s,
		backend: b,
	}
}

// Send delivers htmlBody, with textBody as its plain text alternative, to a
// single recipient. textBody may be empty, in which case FallbackText is used.
// Returns true if the message was delivered (or printed, for the console
// backend).
func (ml *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) bool {
	m := Message{
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	}

	err := ml.sender.Send(ctx, m)
	ml.Metrics.observe(ml.backend, err)

	if err != nil {
		log.Error().
			Err(err).
			Str("backend", ml.backend.String()).
			Str("to", to).
			Str("subject", subject).
			Msg("could not send the email")
		return false
	}

	log.Debug().
		Str("backend", ml.backend.String()).
		Str("to", to).
		Str("subject", subject).
		Msg("sent the email")
	return true
}
