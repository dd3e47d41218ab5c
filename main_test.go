package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&app{})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--length", "12")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 12)
}

func TestSendWithConsoleBackend(t *testing.T) {
	t.Setenv("EMAIL_BACKEND", "console")
	metrics := filepath.Join(t.TempDir(), "mail.prom")

	out, err := run(t,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--metrics-textfile", metrics,
		"send", "verification", "--to", "a@b.com", "--username", "alice",
	)
	require.NoError(t, err)

	// The generated token is printed for the caller to store, then the
	// console backend prints the email.
	tok, rest, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.Len(t, tok, 32)
	assert.True(t, strings.HasPrefix(rest, "=== EMAIL (console) ===\n"), rest)
	assert.Contains(t, rest, "To: a@b.com\n")
	assert.Contains(t, rest, "Subject: Verify Your ReviewHub Account\n")
	assert.Contains(t, rest, "verify-email?token="+tok)
	assert.True(t, strings.HasSuffix(rest, "=======================\n"), rest)

	b, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(b), `reviewhub_mail_send_total{backend="console",result="success"} 1`)
}

func TestWelcomeWithConsoleBackend(t *testing.T) {
	t.Setenv("EMAIL_BACKEND", "console")

	out, err := run(t,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"send", "welcome", "--to", "a@b.com", "--username", "alice",
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "=== EMAIL (console) ===\nTo: a@b.com\nSubject: Welcome to ReviewHub 🎉\n"), out)
	assert.Contains(t, out, "alice")
}

func TestSendWithoutSMTPHostFails(t *testing.T) {
	t.Setenv("EMAIL_BACKEND", "smtp")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_SERVER", "")
	t.Setenv("MAIL_SERVER", "")

	_, err := run(t,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"send", "welcome", "--to", "a@b.com", "--username", "alice",
	)
	assert.ErrorIs(t, err, errNotSent)
}

func TestSendRequiresRecipient(t *testing.T) {
	t.Setenv("EMAIL_BACKEND", "console")
	_, err := run(t,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"send", "welcome", "--username", "alice",
	)
	assert.Error(t, err)
}
