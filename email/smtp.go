package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a whole SMTP session, from dialing to QUIT.
const DefaultTimeout = 30 * time.Second

var (
	// ErrMissingHost is returned without attempting a connection when no
	// SMTP host has been configured.
	ErrMissingHost = errors.New("SMTP host not set (use the console backend to log emails instead)")
	// ErrMessageTooLarge is returned before dialing when the encoded message
	// exceeds SMTPConfig.MaxMessageSize.
	ErrMessageTooLarge = errors.New("message exceeds the configured maximum size")
	// ErrHasCRLF is returned when a header value would smuggle in extra
	// header lines.
	ErrHasCRLF = errors.New("header value must not contain CR or LF")
)

// SMTPConfig contains the settings for talking to an SMTP relay. Validation
// tags are checked by the userconfig package.
type SMTPConfig struct {
	Host     string
	Port     int `validate:"min=1,max=65535"`
	Username string
	Password string
	// StartTLS upgrades a plaintext connection after the first EHLO. Ignored
	// when SSL is set.
	StartTLS bool
	// SSL wraps the connection in TLS from the start.
	SSL         bool
	FromName    string
	FromAddress string `validate:"required,email"`
	// HelloName is the host name we announce with EHLO.
	HelloName string        `validate:"required"`
	Timeout   time.Duration `validate:"gt=0"`
	// InsecureSkipVerify disables certificate verification. Only for local
	// relays with self-signed certificates.
	InsecureSkipVerify bool
	// MaxMessageSize is the largest encoded message, in bytes, that we'll
	// try to send. Zero means no limit.
	MaxMessageSize int64 `validate:"gte=0"`
}

// Address returns host:port.
func (c SMTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// transport is the subset of *smtp.Client that SMTPSender drives. It exists
// so that tests can stand in for a relay.
type transport interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a sasl.Client) error
	Mail(from string, opts *smtp.MailOptions) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, c SMTPConfig, tc *tls.Config) (transport, error)

// SMTPSender sends each message over its own connection. There's no pooling:
// a connection is opened, used once and torn down.
type SMTPSender struct {
	config SMTPConfig
	dial   dialFunc
}

// NewSMTPSender returns an SMTPSender for c. A non-positive timeout is
// replaced with DefaultTimeout.
func NewSMTPSender(c SMTPConfig) *SMTPSender {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HelloName == "" {
		c.HelloName = "localhost"
	}
	return &SMTPSender{
		config: c,
		dial:   dialSMTP,
	}
}

// Send delivers m to the configured relay. The error says which stage of the
// session failed, but callers normally only care whether it's nil.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	c := s.config

	if c.Host == "" {
		return ErrMissingHost
	}

	body, err := compose(c, m)
	if err != nil {
		return fmt.Errorf("can't build the message: %w", err)
	}

	if c.MaxMessageSize > 0 && int64(body.Len()) > c.MaxMessageSize {
		return fmt.Errorf(
			"%w: message is %v bytes, limit is %v",
			ErrMessageTooLarge,
			body.Len(),
			c.MaxMessageSize,
		)
	}

	tc := &tls.Config{
		ServerName:         c.Host,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}

	t, err := s.dial(ctx, c, tc)
	if err != nil {
		return fmt.Errorf("can't connect to %v: %w", c.Address(), err)
	}
	// After a successful Quit, Close only reports the already-closed connection.
	defer t.Close()

	if err := t.Hello(c.HelloName); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if c.StartTLS && !c.SSL {
		if err := t.StartTLS(tc); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if c.Username != "" || c.Password != "" {
		if err := t.Auth(saslClient(t, c.Username, c.Password)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := t.Mail(c.FromAddress, nil); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}

	if err := t.Rcpt(m.To); err != nil {
		return fmt.Errorf("RCPT TO rejected: %w", err)
	}

	w, err := t.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}

	if _, err := w.Write(body.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("can't write the message body: %w", err)
	}

	// The server replies to the end of DATA when the writer is closed, so
	// this is where the message is accepted or refused.
	if err := w.Close(); err != nil {
		return fmt.Errorf("message refused: %w", err)
	}

	// The message has been accepted at this point, so a failed QUIT doesn't
	// mean the email wasn't delivered.
	if err := t.Quit(); err != nil {
		log.Warn().
			Err(err).
			Str("host", c.Host).
			Msg("the SMTP server accepted the message but QUIT failed")
	}

	return nil
}

// dialSMTP opens a connection to the relay, wrapped in TLS from the start if
// c.SSL is set. The connection deadline covers the rest of the session.
func dialSMTP(ctx context.Context, c SMTPConfig, tc *tls.Config) (transport, error) {
	nd := &net.Dialer{Timeout: c.Timeout}

	var conn net.Conn
	var err error
	if c.SSL {
		td := &tls.Dialer{
			NetDialer: nd,
			Config:    tc,
		}
		conn, err = td.DialContext(ctx, "tcp", c.Address())
	} else {
		conn, err = nd.DialContext(ctx, "tcp", c.Address())
	}
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}

	// NewClient reads the server greeting.
	cl, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return cl, nil
}

// saslClient uses PLAIN unless the server advertises LOGIN without PLAIN.
// Servers that don't list their mechanisms get PLAIN.
func saslClient(t transport, username, password string) sasl.Client {
	if ok, params := t.Extension("AUTH"); ok {
		mechs := strings.Fields(strings.ToUpper(params))
		if !slices.Contains(mechs, sasl.Plain) && slices.Contains(mechs, sasl.Login) {
			return sasl.NewLoginClient(username, password)
		}
	}
	return sasl.NewPlainClient("", username, password)
}

func hasCRLF(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
