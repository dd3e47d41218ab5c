package e2e

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ptgott/reviewhub-mail/email"
	"github.com/ptgott/reviewhub-mail/notify"
	"github.com/ptgott/reviewhub-mail/smtptest"
	"github.com/ptgott/reviewhub-mail/userconfig"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment.
type testEnvironmentConfig struct {
	server smtptest.Options
	// app is filled in with the server's address before the config file
	// is written.
	app appConfigOptions
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment. Callers should create this via startTestEnvironment.
type testEnvironment struct {
	SMTPServer *smtptest.InProcessServer
	configPath string
}

// startTestEnvironment starts an SMTP server and writes an application config
// file that points to it. Everything is cleaned up when the test ends.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{}

	te.SMTPServer = smtptest.StartServer(t, c.server)

	host, port, err := net.SplitHostPort(te.SMTPServer.Address())
	if err != nil {
		return te, fmt.Errorf("can't parse the test SMTP server address: %w", err)
	}
	c.app.Host = host
	c.app.Port = port

	te.configPath = filepath.Join(t.TempDir(), "config.yaml")
	if err := createAppConfig(te.configPath, c.app); err != nil {
		return te, err
	}

	return te, nil
}

// notifier builds a Notifier the same way the CLI does, reading the config
// file with the environment given by lookup taking precedence.
func (te *testEnvironment) notifier(lookup userconfig.LookupFunc) (*notify.Notifier, error) {
	f, err := os.Open(te.configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := userconfig.Load(lookup, f)
	if err != nil {
		return nil, err
	}

	c, err := m.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}

	return notify.New(email.New(c.Email), c.Links, c.AppName), nil
}

// noEnv is a LookupFunc for an empty environment.
func noEnv(string) (string, bool) {
	return "", false
}
