package e2e

// e2e contains integration tests that load a config file, build the mailer
// from it and send account emails to an in-process SMTP server. Test
// dependencies that unit tests also use, like the SMTP server, live in
// smtptest instead.
