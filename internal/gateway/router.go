package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
)

const (
	// UserHeader carries the authenticated user id to the upstream.
	UserHeader = "X-Authbox-User"
)

type (
	// UserFn extracts the authenticated user id placed on the request by
	// the session filter.
	UserFn func(*http.Request) (int64, bool)
)

// AsHandler forwards requests to upstream, tagging them with the id of the
// user returned by userfn. Requests without a user are rejected here, any
// UserHeader sent by the client is always dropped.
func AsHandler(upstream *url.URL, userfn UserFn) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del(UserHeader)
			if id, ok := userfn(pr.In); ok {
				pr.Out.Header.Set(UserHeader, strconv.FormatInt(id, 10))
			}
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userfn(r); !ok {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		proxy.ServeHTTP(w, r)
	})
}
