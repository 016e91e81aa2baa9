package api

import (
	"errors"

	"github.com/andrebq/authbox/session"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	Metrics struct {
		registrations *prometheus.CounterVec
		logins        *prometheus.CounterVec
		sessions      *prometheus.CounterVec
	}
)

// NewMetrics registers the auth counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbox",
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbox",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbox",
			Name:      "session_checks_total",
			Help:      "Session cookie verifications by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.registrations, m.logins, m.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) sessionChecked(err error) {
	m.sessions.WithLabelValues(sessionResult(err)).Inc()
}

func sessionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrNoSession):
		return "no_session"
	case errors.Is(err, session.ErrMalformed):
		return "malformed"
	case errors.Is(err, session.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	}
	return "error"
}
