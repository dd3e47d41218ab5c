package html

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLink = "http://localhost:3000/verify-email?token=tok123"

func TestVerification(t *testing.T) {
	b, err := Verification(Content{
		AppName:  "ReviewHub",
		Username: "alice",
		Link:     testLink,
	})
	require.NoError(t, err)

	assert.Contains(t, b.HTML, "Welcome to ReviewHub, alice!")
	assert.Contains(t, b.HTML, `href="`+testLink+`"`)
	assert.Contains(t, b.HTML, ">"+testLink+"</a>")
	assert.Contains(t, b.HTML, "This link expires in 24 hours.")

	// The plain text body is short enough to pin down exactly.
	assert.Equal(t, "Verify your account:\n"+testLink+"\n(This link expires in 24 hours.)", b.Text)
}

func TestPasswordReset(t *testing.T) {
	link := "http://localhost:3000/reset-password?token=tok123"
	b, err := PasswordReset(Content{
		AppName:  "ReviewHub",
		Username: "alice",
		Link:     link,
	})
	require.NoError(t, err)

	assert.Contains(t, b.HTML, "Hello alice, click the button below to reset your password.")
	assert.Contains(t, b.HTML, `href="`+link+`"`)
	assert.Contains(t, b.HTML, "This link expires in 1 hour.")
	assert.Equal(t, "Reset your password:\n"+link+"\n(This link expires in 1 hour.)", b.Text)
}

func TestWelcome(t *testing.T) {
	b, err := Welcome(Content{
		AppName:  "ReviewHub",
		Username: "alice",
		Link:     "http://localhost:3000",
	})
	require.NoError(t, err)

	assert.Contains(t, b.HTML, "You're in, alice!")
	assert.Contains(t, b.HTML, `href="http://localhost:3000"`)
	assert.Contains(t, b.HTML, "Open ReviewHub")
	assert.Empty(t, b.Text)
}

// Usernames come from users, so they must not be able to inject markup.
func TestUsernameIsEscaped(t *testing.T) {
	testCases := []struct {
		description string
		render      func(Content) (Body, error)
	}{
		{description: "verification", render: Verification},
		{description: "password reset", render: PasswordReset},
		{description: "welcome", render: Welcome},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b, err := tc.render(Content{
				AppName:  "ReviewHub",
				Username: `<script>alert("hi")</script>`,
				Link:     testLink,
			})
			require.NoError(t, err)
			assert.False(t, strings.Contains(b.HTML, "<script>"), "username was not escaped")
			assert.Contains(t, b.HTML, "&lt;script&gt;")
		})
	}
}
