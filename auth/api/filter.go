package api

import (
	"context"
	"net/http"

	"github.com/andrebq/authbox/auth"
	"github.com/andrebq/authbox/internal/logutil"
	"github.com/andrebq/authbox/userstore"
)

type (
	SecurityRealm struct {
		svc     *auth.Service
		metrics *Metrics
	}

	userKey struct{}
)

func NewRealm(svc *auth.Service, metrics *Metrics) *SecurityRealm {
	return &SecurityRealm{
		svc:     svc,
		metrics: metrics,
	}
}

// Protect only calls sensitive when the request carries a valid session
// cookie, the authenticated user is available via UserFromContext.
func (s *SecurityRealm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.checkSession(r)
		if !ok {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// UserFromContext returns the user placed by Protect.
func UserFromContext(ctx context.Context) (userstore.User, bool) {
	u, ok := ctx.Value(userKey{}).(userstore.User)
	return u, ok
}

func (s *SecurityRealm) checkSession(r *http.Request) (userstore.User, bool) {
	log := logutil.GetOrDefault(r.Context())
	u, err := s.svc.AuthenticateRequest(r)
	if s.metrics != nil {
		s.metrics.sessionChecked(err)
	}
	if err != nil {
		log.Info().Str("reason", sessionResult(err)).Msg("User is not logged in")
		return userstore.User{}, false
	}
	log.Info().Int64("user", u.ID).Msg("User is logged in")
	return u, true
}
