package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// RequestIDHeader carries the correlation id between services.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a correlation id: an inbound
// X-Request-ID is kept, otherwise a fresh UUID is minted. The id is placed
// in the request context and echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
