package token

// token generates opaque random strings for verification and password reset
// links. Tokens are never stored here: callers embed them in a link and
// persist them alongside whatever record they authorize.
