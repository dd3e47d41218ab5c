package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// messageData includes the envelope, body content and created timestamp for
// an email message, allowing us to inspect message bodies before/after a
// timestamp for correctness.
type messageData struct {
	created time.Time
	from    string
	to      []string
	body    string
}

// Options changes how an InProcessServer treats its clients.
type Options struct {
	// Username and Password, if set, are the only credentials the server
	// accepts. Otherwise any non-empty pair is fine.
	Username string
	Password string
	// AllowAnonymous lets clients send mail without authenticating.
	AllowAnonymous bool
	// AllowInsecureAuth permits AUTH before the connection is encrypted.
	AllowInsecureAuth bool
	// ImplicitTLS makes the listener speak TLS from the first byte, as
	// opposed to offering STARTTLS.
	ImplicitTLS bool
	// NoStartTLS leaves STARTTLS out of the EHLO reply and refuses the
	// command.
	NoStartTLS bool
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
	opts Options
}

// Login implements smtp.Backend.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("no username or password provided")
	}
	if be.opts.Username != "" && (username != be.opts.Username || password != be.opts.Password) {
		return nil, errors.New("invalid username or password")
	}
	return be.newSession(), nil
}

// AnonymousLogin implements smtp.Backend. Refused unless the server was
// started with AllowAnonymous.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if !be.opts.AllowAnonymous {
		return nil, smtp.ErrAuthRequired
	}
	return be.newSession(), nil
}

func (be *Backend) newSession() *session {
	return &session{store: be.InMemoryEmailStore}
}

// session tracks the envelope of the message in flight. Implements
// smtp.Session.
type session struct {
	store *InMemoryEmailStore
	from  string
	to    []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session.
func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the email data in memory for retrieval
// at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	str := &strings.Builder{}
	if _, err := str.Write(buf); err != nil {
		return err
	}
	s.store.saveEmail(messageData{
		from: s.from,
		to:   append([]string{}, s.to...),
		body: str.String(),
	})
	return nil
}

// InMemoryEmailStore retains email bodies in memory for comparison against
// a test's expected output. Designed to be goroutine safe since we don't know
// how many goroutines will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []messageData
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random
// loopback port, including configuring its SMTP server to store incoming
// messages in memory. Must provide the paths to the key and cert used for
// TLS.
func NewInProcessServer(keypath string, certpath string, opts Options) (*InProcessServer, error) {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []messageData{},
	}

	srv := smtp.NewServer(&Backend{
		InMemoryEmailStore: is,
		opts:               opts,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = opts.AllowInsecureAuth
	srv.AuthDisabled = false
	// Strict is undocumented, but it looks like it enforces <address> syntax
	// in messages:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second

	cert, err := tls.LoadX509KeyPair(certpath, keypath)
	if err != nil {
		return nil, err
	}

	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}
	// go-smtp only offers STARTTLS when it has a TLS config.
	if !opts.NoStartTLS {
		srv.TLSConfig = tc
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	if opts.ImplicitTLS {
		l = tls.NewListener(l, tc)
	}

	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}, nil
}

// saveEmail stores the message in memory along with a timestamp created just
// prior to saving
func (es *InMemoryEmailStore) saveEmail(m messageData) {
	es.mu.Lock()
	defer es.mu.Unlock()

	m.created = time.Now()
	es.messages = append(es.messages, m)
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m.body)
		}
	}
	return r, nil
}

// Envelope returns the MAIL FROM and RCPT TO addresses of every stored
// message, in the order the messages arrived.
func (es *InMemoryEmailStore) Envelope() (from []string, to [][]string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, m := range es.messages {
		from = append(from, m.from)
		to = append(to, m.to)
	}
	return from, to
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
