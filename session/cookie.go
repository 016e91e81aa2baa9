package session

import (
	"net/http"
	"time"

	"github.com/andrebq/authbox/signing"
)

const (
	DefaultCookieName = "session"
	DefaultTTL        = 7 * 24 * time.Hour
)

type (
	// Codec binds the signing key to the cookie attributes used by the
	// server. It is read-only once built and safe for concurrent use.
	Codec struct {
		key            *signing.Key
		name           string
		ttl            time.Duration
		insecureCookie bool
		now            func() time.Time
	}

	CodecOption func(*Codec)
)

// WithCookieName changes the name of the session cookie.
func WithCookieName(name string) CodecOption {
	return func(c *Codec) {
		if name != "" {
			c.name = name
		}
	}
}

// WithTTL sets the token lifetime, zero or negative means tokens never
// expire server side and cookies last for the browser session.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

// AllowHTTPCookie drops the Secure flag, only meant for local development
// over plain HTTP.
func AllowHTTPCookie(allow bool) CodecOption {
	return func(c *Codec) {
		c.insecureCookie = allow
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(key *signing.Key, opts ...CodecOption) *Codec {
	c := &Codec{
		key:  key,
		name: DefaultCookieName,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Codec) CookieName() string { return c.name }

// Create mints a token for userID at the current time.
func (c *Codec) Create(userID int64) Token {
	return New(userID, c.now(), c.ttl)
}

func (c *Codec) Serialize(t Token) string {
	return Serialize(t, c.key)
}

func (c *Codec) ParseAndVerify(value string) (Token, error) {
	return ParseAndVerify(value, c.key, c.now())
}

// CookieLogin wraps the serialized token with the session cookie
// attributes. Max-Age follows the token expiry when there is one.
func (c *Codec) CookieLogin(t Token) *http.Cookie {
	cookie := c.base()
	cookie.Value = c.Serialize(t)
	if t.HasExpiry() {
		if remaining := t.ExpiresAt.Sub(c.now()); remaining >= time.Second {
			cookie.MaxAge = int(remaining / time.Second)
		} else {
			cookie.MaxAge = -1
		}
		cookie.Expires = t.ExpiresAt
	}
	return cookie
}

// CookieLogout returns an already expired, empty cookie instructing the
// client to drop its session.
func (c *Codec) CookieLogout() *http.Cookie {
	cookie := c.base()
	cookie.Value = ""
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	return cookie
}

// FromCookieHeader finds the session cookie inside a raw Cookie header and
// verifies it.
func (c *Codec) FromCookieHeader(header string) (Token, error) {
	req := http.Request{Header: http.Header{"Cookie": []string{header}}}
	cookie, err := req.Cookie(c.name)
	if err != nil {
		return Token{}, fail(ErrNoSession, nil)
	}
	if cookie.Value == "" {
		return Token{}, fail(ErrMalformed, errSegments)
	}
	return c.ParseAndVerify(cookie.Value)
}

// FromRequest is FromCookieHeader for every Cookie header of r.
func (c *Codec) FromRequest(r *http.Request) (Token, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return Token{}, fail(ErrNoSession, nil)
	}
	if cookie.Value == "" {
		return Token{}, fail(ErrMalformed, errSegments)
	}
	return c.ParseAndVerify(cookie.Value)
}

func (c *Codec) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   !c.insecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
