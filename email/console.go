package email

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// ConsoleSender writes messages to Out instead of sending them. It never
// touches the network and always succeeds, which makes it handy in
// development when there's no relay to talk to.
type ConsoleSender struct {
	Out io.Writer
}

// Send logs m and writes a human-readable block to Out. Write errors are
// ignored so that the console backend always reports success.
func (cs *ConsoleSender) Send(_ context.Context, m Message) error {
	log.Info().
		Str("to", m.To).
		Str("subject", m.Subject).
		Str("html", m.HTML).
		Msg("email (console backend)")

	if cs.Out == nil {
		return nil
	}

	fmt.Fprintf(cs.Out, `=== EMAIL (console) ===
To: %v
Subject: %v
%v
=======================
`, m.To, m.Subject, m.HTML)

	return nil
}
