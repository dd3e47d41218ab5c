package email

// email is responsible for delivering a single message, either by writing it
// to the console or by handing it to an SMTP relay. The SMTP path covers
// connecting to the server, negotiating TLS and authentication, and building
// a MIME-formatted body with text and HTML alternatives. It does not care what
// the message says: see the notify and html packages for that.
