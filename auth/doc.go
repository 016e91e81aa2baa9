// Package auth glues the credential store and the session cookies
// together, it is the only thing HTTP handlers should talk to.
//
// Registration and login both end the same way: a fresh session token is
// minted for the user and handed back so the caller can send it as a
// cookie. Nothing about the session is kept on the server, the signed
// cookie is the whole session. That also means logging out is just asking
// the browser to forget the cookie, a copied cookie stays valid until it
// expires.
//
// Every failure to read a session (missing, malformed, forged, expired)
// must be handled as "not logged in". The different errors exist so they
// can be counted and logged, never so they can be shown to users.
package auth
