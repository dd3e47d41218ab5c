package notify

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ptgott/reviewhub-mail/email"
	"github.com/ptgott/reviewhub-mail/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLinks = Links{
	FrontendURL: "http://localhost:3000",
	VerifyURL:   "http://localhost:3000/verify-email",
	ResetURL:    "http://localhost:3000/reset-password",
}

type sent struct {
	to, subject, html, text string
}

// recorder is a Deliverer that remembers what it was asked to send.
type recorder struct {
	sent []sent
	ok   bool
}

func (r *recorder) Send(_ context.Context, to, subject, htmlBody, textBody string) bool {
	r.sent = append(r.sent, sent{to, subject, htmlBody, textBody})
	return r.ok
}

func TestLinks(t *testing.T) {
	testCases := []struct {
		description string
		link        func(string) string
		token       string
		expected    string
	}{
		{
			description: "verification",
			link:        testLinks.Verification,
			token:       "tok123",
			expected:    "http://localhost:3000/verify-email?token=tok123",
		},
		{
			description: "password reset",
			link:        testLinks.PasswordReset,
			token:       "tok123",
			expected:    "http://localhost:3000/reset-password?token=tok123",
		},
		{
			description: "token that needs escaping",
			link:        testLinks.Verification,
			token:       "a b&c",
			expected:    "http://localhost:3000/verify-email?token=a+b%26c",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.link(tc.token))
		})
	}
}

func TestGeneratedTokensAreNotEscaped(t *testing.T) {
	tok, err := token.Generate(token.DefaultLength)
	require.NoError(t, err)

	l := testLinks.Verification(tok)
	assert.Equal(t, testLinks.VerifyURL+"?token="+tok, l)
	assert.Equal(t, 1, strings.Count(l, "?token="))
}

func TestNotifierSubjectsAndBodies(t *testing.T) {
	r := &recorder{ok: true}
	n := New(r, testLinks, "ReviewHub")
	ctx := context.Background()

	require.True(t, n.SendVerificationEmail(ctx, "a@b.com", "alice", "tok123"))
	require.True(t, n.SendPasswordResetEmail(ctx, "a@b.com", "alice", "tok456"))
	require.True(t, n.SendWelcomeEmail(ctx, "a@b.com", "alice"))
	require.Len(t, r.sent, 3)

	v := r.sent[0]
	assert.Equal(t, "a@b.com", v.to)
	assert.Equal(t, "Verify Your ReviewHub Account", v.subject)
	assert.Contains(t, v.html, "http://localhost:3000/verify-email?token=tok123")
	assert.Contains(t, v.text, "http://localhost:3000/verify-email?token=tok123")
	assert.Contains(t, v.text, "24 hours")

	p := r.sent[1]
	assert.Equal(t, "Reset Your ReviewHub Password", p.subject)
	assert.Contains(t, p.html, "http://localhost:3000/reset-password?token=tok456")
	assert.Contains(t, p.text, "1 hour")

	w := r.sent[2]
	assert.Equal(t, "Welcome to ReviewHub 🎉", w.subject)
	assert.Contains(t, w.html, `href="http://localhost:3000"`)
	assert.Empty(t, w.text)
}

func TestNotifierReportsFailure(t *testing.T) {
	r := &recorder{ok: false}
	n := New(r, testLinks, "ReviewHub")
	assert.False(t, n.SendWelcomeEmail(context.Background(), "a@b.com", "alice"))
}

// With the SMTP backend and no host, nothing should be dialed. If it were,
// the empty host would resolve to the local listener below.
func TestVerificationWithoutSMTPHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	m := email.New(email.Config{
		Backend: email.BackendSMTP,
		SMTP: email.SMTPConfig{
			Host:        "",
			Port:        l.Addr().(*net.TCPAddr).Port,
			StartTLS:    true,
			FromName:    "ReviewHub",
			FromAddress: "noreply@reviewhub.com",
		},
	})
	n := New(m, testLinks, "ReviewHub")

	assert.False(t, n.SendVerificationEmail(context.Background(), "a@b.com", "alice", "tok123"))

	require.NoError(t, l.(*net.TCPListener).SetDeadline(time.Now().Add(100*time.Millisecond)))
	_, err = l.Accept()
	var ne net.Error
	require.True(t, errors.As(err, &ne), "expected a timeout, got %v", err)
	assert.True(t, ne.Timeout(), "a connection was opened")
}

func TestWelcomeOnConsole(t *testing.T) {
	var out bytes.Buffer
	m := email.NewWithOutput(email.Config{Backend: email.BackendConsole}, &out)
	n := New(m, testLinks, "ReviewHub")

	assert.True(t, n.SendWelcomeEmail(context.Background(), "a@b.com", "alice"))
	assert.Contains(t, out.String(), "a@b.com")
	assert.Contains(t, out.String(), "Welcome to ReviewHub")
}
