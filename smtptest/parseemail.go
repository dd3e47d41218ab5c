package smtptest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// ParsedMessage is a received email broken into the pieces tests care about.
type ParsedMessage struct {
	Header mail.Header
	// Subject is decoded from any RFC 2047 encoding.
	Subject string
	// PartTypes lists the Content-Type of each MIME part, in order.
	PartTypes []string
	Text      string
	HTML      string
}

// ParseMessage reads a raw multipart/alternative message as captured by an
// InProcessServer. Quoted-printable parts are decoded and their CRLF line
// endings are turned into LF.
func ParseMessage(raw string) (ParsedMessage, error) {
	var pm ParsedMessage

	m, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return pm, fmt.Errorf("can't read the message: %w", err)
	}
	pm.Header = m.Header

	dec := new(mime.WordDecoder)
	pm.Subject, err = dec.DecodeHeader(m.Header.Get("Subject"))
	if err != nil {
		return pm, fmt.Errorf("can't decode the subject: %w", err)
	}

	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil {
		return pm, fmt.Errorf("can't parse the Content-Type: %w", err)
	}
	if mt != "multipart/alternative" {
		return pm, fmt.Errorf("expected multipart/alternative but got %v", mt)
	}

	rdr := multipart.NewReader(m.Body, params["boundary"])
	for {
		p, err := rdr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pm, err
		}

		var b bytes.Buffer
		if _, err := b.ReadFrom(p); err != nil {
			return pm, err
		}

		ct, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		if err != nil {
			return pm, err
		}
		pm.PartTypes = append(pm.PartTypes, ct)

		body := strings.ReplaceAll(b.String(), "\r\n", "\n")
		switch ct {
		case "text/plain":
			pm.Text = body
		case "text/html":
			pm.HTML = body
		}
	}

	return pm, nil
}
