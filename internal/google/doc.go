// Package google authorizes users against Google with the installed-app
// OAuth2 flow.
//
// Client secrets come from a credentials.json bundled into the binary or
// from a file path. The Authorizer reuses tokens from a tokenstore.Store and
// otherwise opens the consent screen, receives the code on a loopback
// listener (localhost:8888/Callback by default) and exchanges it with PKCE
// and offline access so a refresh token is issued. Refreshed tokens are
// written back to the store.
package google
