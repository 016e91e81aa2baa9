package httpserver

import (
	"net"
	"net/http"
	"time"

	"github.com/andrebq/authbox/internal/logutil"
	"github.com/google/uuid"
)

type (
	statusRecorder struct {
		http.ResponseWriter
		status int
	}
)

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(buf []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(buf)
}

// WithRequestLog gives every request its own logger tagged with a random
// request id and logs how the request ended.
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		log := logutil.GetOrDefault(r.Context()).With().
			Str("request", uuid.NewString()).
			Logger()
		log.Info().Str("method", r.Method).Str("endpoint", r.URL.Path).Str("ip", ip).Msg("HTTP request received")
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(logutil.WithLogger(r.Context(), log)))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		ev := log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Int("status", rec.status).Dur("elapsed", time.Since(started)).Msg("HTTP request completed")
	})
}
