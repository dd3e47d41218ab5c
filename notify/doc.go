package notify

// notify sends the account emails (verification, password reset and welcome).
// Each operation only formats a subject, link and body, then hands the
// result to an email.Mailer. Expiry windows mentioned in the copy are
// informational: enforcing them is up to whoever stores the tokens.
