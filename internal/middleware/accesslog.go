package middleware

import (
	"net/http"

	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// AccessLog emits one completion record per request carrying the request
// id, method, path, status, and latency. Runs inside RequestID so the id is
// already in the context.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := r.Context().Value(logger.RequestIDKey).(string)
		rl := logger.NewRequestLogger(id).
			WithField("method", r.Method).
			WithField("path", r.URL.Path)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		rl.LogComplete(rec.status)
	})
}

// statusRecorder captures the status code for the completion record.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}
