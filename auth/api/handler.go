package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andrebq/authbox/auth"
	"github.com/andrebq/authbox/internal/gateway"
	"github.com/andrebq/authbox/internal/logutil"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxFormSize = 64 << 10
)

type (
	indexResponse struct {
		User *userResponse `json:"user"`
	}

	userResponse struct {
		ID int64 `json:"id"`
	}

	options struct {
		upstream *url.URL
	}

	Option func(*options)
)

// WithUpstream forwards every request that does not match an authbox route
// to upstream, as long as it carries a valid session.
func WithUpstream(upstream *url.URL) Option {
	return func(o *options) { o.upstream = upstream }
}

// AsHandler exposes svc over HTTP. Auth counters are registered on reg and
// published under /metrics.
func AsHandler(ctx context.Context, svc *auth.Service, reg *prometheus.Registry, opts ...Option) (http.Handler, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	realm := NewRealm(svc, metrics)

	router := httprouter.New()
	router.HandlerFunc("GET", "/", index(svc, metrics))
	router.HandlerFunc("POST", "/auth/register", register(svc, metrics))
	router.HandlerFunc("POST", "/auth/login", login(svc, metrics))
	router.HandlerFunc("POST", "/auth/logout", logout(svc))
	router.Handler("GET", "/auth/me", realm.Protect(http.HandlerFunc(me)))
	router.Handler("GET", "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if o.upstream != nil {
		router.NotFound = realm.Protect(gateway.AsHandler(o.upstream, func(r *http.Request) (int64, bool) {
			u, ok := UserFromContext(r.Context())
			return u.ID, ok
		}))
	}
	return router, nil
}

func index(svc *auth.Service, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context())
		var res indexResponse
		u, err := svc.AuthenticateRequest(r)
		metrics.sessionChecked(err)
		if err == nil {
			log.Info().Int64("user", u.ID).Msg("User is logged in")
			res.User = &userResponse{ID: u.ID}
		} else {
			log.Info().Str("reason", sessionResult(err)).Msg("User is not logged in")
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func register(svc *auth.Service, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context())
		username, password, ok := readCredentials(w, r)
		if !ok {
			metrics.registrations.WithLabelValues("invalid").Inc()
			return
		}
		log.Info().Str("username", username).Msg("Registering a new account")
		u, tok, err := svc.Register(r.Context(), username, password)
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			metrics.registrations.WithLabelValues("taken").Inc()
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		case errors.Is(err, auth.ErrInvalidInput):
			metrics.registrations.WithLabelValues("invalid").Inc()
			http.Error(w, "Invalid username or password", http.StatusBadRequest)
			return
		case err != nil:
			metrics.registrations.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("Unable to register account")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		metrics.registrations.WithLabelValues("ok").Inc()
		log.Info().Int64("user", u.ID).Msg("Logged in after registration")
		http.SetCookie(w, svc.LoginCookie(tok))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func login(svc *auth.Service, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context())
		username, password, ok := readCredentials(w, r)
		if !ok {
			metrics.logins.WithLabelValues("invalid").Inc()
			return
		}
		log.Info().Str("username", username).Msg("Logging in")
		u, tok, err := svc.Login(r.Context(), username, password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			metrics.logins.WithLabelValues("invalid").Inc()
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			metrics.logins.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("Unable to login")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		metrics.logins.WithLabelValues("ok").Inc()
		log.Info().Int64("user", u.ID).Msg("Logged in")
		http.SetCookie(w, svc.LoginCookie(tok))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func logout(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logutil.GetOrDefault(r.Context())
		log.Info().Msg("Logging out")
		http.SetCookie(w, svc.LogoutCookie())
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func me(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID})
}

func readCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Unable to parse form", http.StatusBadRequest)
		return "", "", false
	}
	return r.PostForm.Get("username"), r.PostForm.Get("password"), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf)
}
