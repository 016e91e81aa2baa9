package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/steinfletcher/apitest"
)

func TestGateway(t *testing.T) {
	seen := map[string]string{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.URL.Path] = r.Header.Get(UserHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	upstreamURL, _ := url.Parse(upstream.URL)
	handler := AsHandler(upstreamURL, func(r *http.Request) (int64, bool) {
		if r.Header.Get("Authorization") == "yes" {
			return 42, true
		}
		return 0, false
	})

	apitest.Handler(handler).
		Get("/private/report").
		Header("Authorization", "yes").
		Header(UserHeader, "1").
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.Handler(handler).
		Get("/private/other").
		Header(UserHeader, "1").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	if got := seen["/private/report"]; got != "42" {
		t.Fatalf("upstream should see user 42, got %q", got)
	}
	if _, ok := seen["/private/other"]; ok {
		t.Fatal("unauthenticated request reached the upstream")
	}
}
