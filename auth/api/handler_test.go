package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/andrebq/authbox/auth"
	"github.com/andrebq/authbox/internal/gateway"
	"github.com/andrebq/authbox/internal/testutil"
	"github.com/andrebq/authbox/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func acquireHandler(t *testing.T, opts ...Option) (http.Handler, *auth.Service, func()) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "test")
	svc := auth.New(store, testutil.AcquireCodec(t, nil))
	handler, err := AsHandler(ctx, svc, prometheus.NewRegistry(), opts...)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	return handler, svc, cleanup
}

func sessionCookie(t *testing.T, res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatal("response did not set the session cookie")
	return nil
}

func TestRegisterLoginLogout(t *testing.T) {
	handler, _, cleanup := acquireHandler(t)
	defer cleanup()

	apitest.New().
		Handler(handler).
		Get("/").
		Expect(t).
		Body(`{"user":null}`).
		Status(http.StatusOK).
		End()

	res := apitest.New().
		Handler(handler).
		Post("/auth/register").
		FormData("username", "alice").
		FormData("password", "correct-horse").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		CookiePresent(session.DefaultCookieName).
		End()
	registered := sessionCookie(t, res.Response)
	if !registered.HttpOnly || !registered.Secure || registered.SameSite != http.SameSiteStrictMode {
		t.Fatalf("session cookie is missing security attributes: %v", registered)
	}

	apitest.New().
		Handler(handler).
		Get("/").
		Cookie(registered.Name, registered.Value).
		Expect(t).
		Assert(jsonpath.Equal("$.user.id", float64(1))).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		FormData("username", "alice").
		FormData("password", "wrong").
		Expect(t).
		Status(http.StatusUnauthorized).
		CookieNotPresent(session.DefaultCookieName).
		End()

	res = apitest.New().
		Handler(handler).
		Post("/auth/login").
		FormData("username", "alice").
		FormData("password", "correct-horse").
		Expect(t).
		Status(http.StatusSeeOther).
		End()
	loggedIn := sessionCookie(t, res.Response)

	apitest.New().
		Handler(handler).
		Get("/auth/me").
		Cookie(loggedIn.Name, loggedIn.Value).
		Expect(t).
		Assert(jsonpath.Equal("$.id", float64(1))).
		Status(http.StatusOK).
		End()

	res = apitest.New().
		Handler(handler).
		Post("/auth/logout").
		Expect(t).
		Status(http.StatusSeeOther).
		End()
	loggedOut := sessionCookie(t, res.Response)
	if loggedOut.Value != "" || loggedOut.MaxAge >= 0 {
		t.Fatalf("logout cookie should be empty and expired, got %v", loggedOut)
	}

	apitest.New().
		Handler(handler).
		Get("/auth/me").
		Cookie(loggedOut.Name, loggedOut.Value).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestDuplicateAndInvalidRegistration(t *testing.T) {
	handler, _, cleanup := acquireHandler(t)
	defer cleanup()

	register := func(username, password string, status int) {
		apitest.New().
			Handler(handler).
			Post("/auth/register").
			FormData("username", username).
			FormData("password", password).
			Expect(t).
			Status(status).
			End()
	}
	register("alice", "correct-horse", http.StatusSeeOther)
	register("alice", "anything", http.StatusConflict)
	register("", "password", http.StatusBadRequest)
	register("bob", "", http.StatusBadRequest)
}

func TestProtectRejectsForgedCookies(t *testing.T) {
	handler, svc, cleanup := acquireHandler(t)
	defer cleanup()
	_, _, err := svc.Register(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	forger := session.NewCodec(testutil.Key(t, 2))
	for _, value := range []string{
		"",
		"garbage",
		forger.Serialize(forger.Create(1)),
	} {
		apitest.New().
			Handler(handler).
			Get("/auth/me").
			Cookie(session.DefaultCookieName, value).
			Expect(t).
			Status(http.StatusUnauthorized).
			End()
	}
	apitest.New().
		Handler(handler).
		Get("/auth/me").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestMetrics(t *testing.T) {
	handler, _, cleanup := acquireHandler(t)
	defer cleanup()

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		FormData("username", "nobody").
		FormData("password", "password").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(handler).
		Get("/metrics").
		Expect(t).
		Assert(func(res *http.Response, _ *http.Request) error {
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return err
			}
			if !strings.Contains(string(body), `authbox_logins_total{result="invalid"} 1`) {
				return fmt.Errorf("login counter not exported: %v", string(body))
			}
			return nil
		}).
		Status(http.StatusOK).
		End()
}

func TestNotFound(t *testing.T) {
	handler, _, cleanup := acquireHandler(t)
	defer cleanup()
	apitest.New().
		Handler(handler).
		Get("/nope").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestUpstreamRequiresSession(t *testing.T) {
	var seenUser string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = r.Header.Get(gateway.UserHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	handler, svc, cleanup := acquireHandler(t, WithUpstream(upstreamURL))
	defer cleanup()
	_, tok, err := svc.Register(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	cookie := svc.LoginCookie(tok)

	apitest.New().
		Handler(handler).
		Get("/app/dashboard").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	if seenUser != "" {
		t.Fatalf("upstream should not be reached without a session, got user %q", seenUser)
	}

	apitest.New().
		Handler(handler).
		Get("/app/dashboard").
		Cookie(cookie.Name, cookie.Value).
		Expect(t).
		Status(http.StatusNoContent).
		End()
	if seenUser != "1" {
		t.Fatalf("upstream should see user 1, got %q", seenUser)
	}
}
