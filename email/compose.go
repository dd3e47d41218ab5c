package email

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"
)

// now is swapped out in tests.
var now = time.Now

// compose encodes m as a multipart/alternative message with a text/plain
// part followed by a text/html part.
func compose(c SMTPConfig, m Message) (*bytes.Buffer, error) {
	for _, v := range []string{m.To, m.Subject, c.FromName, c.FromAddress} {
		if hasCRLF(v) {
			return nil, ErrHasCRLF
		}
	}

	msg := mail.NewMessage()
	if c.FromName != "" {
		msg.SetAddressHeader("From", c.FromAddress, c.FromName)
	} else {
		msg.SetHeader("From", c.FromAddress)
	}
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetDateHeader("Date", now())
	msg.SetHeader("Message-ID", messageID(c.FromAddress))

	msg.SetBody("text/plain", m.PlainText())
	msg.AddAlternative("text/html", m.HTML)

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

// messageID returns a globally unique Message-ID using the domain of the
// sender's address, falling back to "localhost".
func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return fmt.Sprintf("<%v@%v>", uuid.New().String(), domain)
}
