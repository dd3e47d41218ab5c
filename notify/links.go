package notify

import "net/url"

// Links holds the frontend URLs that emails point to.
type Links struct {
	FrontendURL string `validate:"required,url"`
	VerifyURL   string `validate:"required,url"`
	ResetURL    string `validate:"required,url"`
}

// Verification returns the link a user follows to verify their address.
func (l Links) Verification(token string) string {
	return withToken(l.VerifyURL, token)
}

// PasswordReset returns the link a user follows to reset their password.
func (l Links) PasswordReset(token string) string {
	return withToken(l.ResetURL, token)
}

// withToken appends a token query parameter to base. Tokens from the token
// package are alphanumeric and come through unchanged.
func withToken(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}
