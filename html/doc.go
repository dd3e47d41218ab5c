package html

// html is responsible for generating HTML and text bodies for account
// emails. It's not concerned with the lower-level logic involved in sending
// the email, so the generated HTML could be used for other purposes, e.g.,
// previewing a template in a browser.
