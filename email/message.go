package email

// FallbackText is the text/plain part used when a message has no plain text
// body of its own.
const FallbackText = "This email contains HTML content."

// Message is a single email to a single recipient. It's built per send and
// thrown away afterwards.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string // optional
}

// PlainText returns the text/plain body to send alongside the HTML.
func (m Message) PlainText() string {
	if m.Text == "" {
		return FallbackText
	}
	return m.Text
}
