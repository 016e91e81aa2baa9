package session

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestCookieLogin(t *testing.T) {
	now := time.Date(2022, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := NewCodec(testKey(t, 1), WithTTL(time.Hour), WithClock(fixedClock(&now)))
	tok := codec.Create(1)
	cookie := codec.CookieLogin(tok)

	assert.Equal(t, DefaultCookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	header := cookie.String()
	for _, attr := range []string{"HttpOnly", "Secure", "SameSite=Strict", "Path=/", "Max-Age=3600"} {
		assert.Contains(t, header, attr)
	}

	got, err := codec.FromCookieHeader("theme=dark; " + cookie.Name + "=" + cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestCookieWithoutExpiry(t *testing.T) {
	codec := NewCodec(testKey(t, 1), WithTTL(0), AllowHTTPCookie(true), WithCookieName("sid"))
	cookie := codec.CookieLogin(codec.Create(9))
	assert.Equal(t, "sid", cookie.Name)
	assert.False(t, cookie.Secure)
	assert.Equal(t, 0, cookie.MaxAge)
	assert.NotContains(t, cookie.String(), "Max-Age")
}

func TestCookieLogout(t *testing.T) {
	codec := NewCodec(testKey(t, 1))
	login := codec.CookieLogin(codec.Create(1))
	logout := codec.CookieLogout()

	assert.Equal(t, login.Name, logout.Name)
	assert.Equal(t, login.Path, logout.Path)
	assert.Equal(t, login.HttpOnly, logout.HttpOnly)
	assert.Equal(t, login.Secure, logout.Secure)
	assert.Equal(t, login.SameSite, logout.SameSite)
	assert.Empty(t, logout.Value)
	assert.Contains(t, logout.String(), "Max-Age=0")

	// a client echoing the logout cookie is not logged in
	_, err := codec.FromCookieHeader(logout.Name + "=" + logout.Value)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("logout cookie should be malformed, got %v", err)
	}
}

func TestFromCookieHeader(t *testing.T) {
	now := time.Now()
	codec := NewCodec(testKey(t, 1), WithClock(fixedClock(&now)))
	other := NewCodec(testKey(t, 2))
	value := other.Serialize(other.Create(1))

	type testCase struct {
		header string
		kind   error
	}
	for _, tc := range []testCase{
		{"", ErrNoSession},
		{"theme=dark", ErrNoSession},
		{"session=", ErrMalformed},
		{"session=garbage", ErrMalformed},
		{"session=" + value, ErrBadSignature},
	} {
		_, err := codec.FromCookieHeader(tc.header)
		if !errors.Is(err, tc.kind) {
			t.Errorf("header %q should fail with %v got %v", tc.header, tc.kind, err)
		}
		if !IsUnauthenticated(err) {
			t.Errorf("header %q should be unauthenticated, got %v", tc.header, err)
		}
	}

	value = codec.Serialize(codec.Create(3))
	now = now.Add(DefaultTTL + time.Second)
	_, err := codec.FromCookieHeader("session=" + value)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expecting %v got %v", ErrExpired, err)
	}
}

func TestFromRequest(t *testing.T) {
	codec := NewCodec(testKey(t, 1))
	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	_, err = codec.FromRequest(req)
	assert.True(t, errors.Is(err, ErrNoSession))

	req.AddCookie(codec.CookieLogin(codec.Create(5)))
	tok, err := codec.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tok.UserID)
	assert.True(t, strings.HasPrefix(req.Header.Get("Cookie"), "session="))
}
