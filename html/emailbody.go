package html

import (
	"html/template"
	"io"
	"strings"
	texttemplate "text/template"
)

// Content is used to populate email body templates.
type Content struct {
	AppName  string
	Username string
	// Link is the verification or reset link, or the application's home
	// page for the welcome email.
	Link string
}

// Body is a rendered email. Text may be empty, in which case the sender
// supplies a generic plain text part.
type Body struct {
	HTML string
	Text string
}

// Inline styles only, since many mail clients drop <style> blocks.
const htmlHeader = `<html><body style="font-family:Arial,sans-serif;line-height:1.6;color:#333">`

const htmlFooter = `</body></html>`

const verificationHTML = htmlHeader + `
  <h2>Welcome to {{ .AppName }}, {{ .Username }}!</h2>
  <p>Click the button below to verify your email address.</p>
  <p style="margin:16px 0">
    <a href="{{ .Link }}" style="background:#2563EB;color:#fff;padding:10px 16px;text-decoration:none;border-radius:6px">
      Verify Email
    </a>
  </p>
  <p>If the button doesn't work, paste this link in your browser:</p>
  <p style="word-break:break-all"><a href="{{ .Link }}">{{ .Link }}</a></p>
  <p style="color:#6b7280;font-size:12px">This link expires in 24 hours.</p>
` + htmlFooter

const verificationText = `Verify your account:
{{ .Link }}
(This link expires in 24 hours.)`

const resetHTML = htmlHeader + `
  <h2>Password reset</h2>
  <p>Hello {{ .Username }}, click the button below to reset your password.</p>
  <p style="margin:16px 0">
    <a href="{{ .Link }}" style="background:#2563EB;color:#fff;padding:10px 16px;text-decoration:none;border-radius:6px">
      Reset Password
    </a>
  </p>
  <p>If the button doesn't work, paste this link:</p>
  <p style="word-break:break-all"><a href="{{ .Link }}">{{ .Link }}</a></p>
  <p style="color:#6b7280;font-size:12px">This link expires in 1 hour.</p>
` + htmlFooter

const resetText = `Reset your password:
{{ .Link }}
(This link expires in 1 hour.)`

const welcomeHTML = htmlHeader + `
  <h2>You're in, {{ .Username }}!</h2>
  <p>Your email has been verified. Start exploring products and writing reviews.</p>
  <p><a href="{{ .Link }}" style="background:#10B981;color:#fff;padding:10px 16px;text-decoration:none;border-radius:6px">Open {{ .AppName }}</a></p>
` + htmlFooter

// The template text is constant, so a parse failure is a programming error.
var (
	verificationHTMLTmpl = template.Must(template.New("verification").Parse(verificationHTML))
	verificationTextTmpl = texttemplate.Must(texttemplate.New("verification").Parse(verificationText))
	resetHTMLTmpl        = template.Must(template.New("reset").Parse(resetHTML))
	resetTextTmpl        = texttemplate.Must(texttemplate.New("reset").Parse(resetText))
	welcomeHTMLTmpl      = template.Must(template.New("welcome").Parse(welcomeHTML))
)

// executor is satisfied by both html/template and text/template.
type executor interface {
	Execute(wr io.Writer, data any) error
}

func populate(t executor, c Content) (string, error) {
	var str strings.Builder
	if err := t.Execute(&str, c); err != nil {
		return "", err
	}
	return str.String(), nil
}

func render(h executor, t executor, c Content) (Body, error) {
	var b Body
	var err error

	b.HTML, err = populate(h, c)
	if err != nil {
		return Body{}, err
	}

	if t == nil {
		return b, nil
	}

	b.Text, err = populate(t, c)
	if err != nil {
		return Body{}, err
	}
	return b, nil
}

// Verification renders the email asking a new user to confirm their address.
// The username is HTML-escaped in the HTML body.
func Verification(c Content) (Body, error) {
	return render(verificationHTMLTmpl, verificationTextTmpl, c)
}

// PasswordReset renders the email carrying a password reset link.
func PasswordReset(c Content) (Body, error) {
	return render(resetHTMLTmpl, resetTextTmpl, c)
}

// Welcome renders the email sent once an address has been verified. It has
// no text body of its own.
func Welcome(c Content) (Body, error) {
	return render(welcomeHTMLTmpl, nil, c)
}
