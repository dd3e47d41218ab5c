package smtptest

// Server contains state information for an SMTP server used by a test. The
// SMTP server should be able to return the payloads of messages sent to it
// during the test. The server is meant to start during a test and stop right
// after.
type Server interface {
	// Start runs the server and blocks until it stops. Any resources it
	// needs, such as listeners, are expected to exist already.
	Start() error

	// Close terminates the server and any required resources. While
	// this is designed not to return an error so it's easier to use with defer,
	// implementations should log failures to close so the test operator can
	// chase down rogue servers.
	Close()

	// RetrieveEmails returns the payloads of all email messages sent to the
	// server during the test after time t in Unix epoch nanoseconds.
	RetrieveEmails(t int64) ([]string, error)

	// Address returns the host:port of the server.
	Address() string
}

var _ Server = &InProcessServer{}
