package middleware

import (
	"net/http"
	"os"
	"strconv"

	"github.com/thenexusengine/tne_adx/internal/config"
)

// SizeLimitConfig bounds inbound request size.
type SizeLimitConfig struct {
	Enabled      bool
	MaxBodySize  int64
	MaxURLLength int
}

// DefaultSizeLimitConfig reads limits from the environment, falling back to
// the server defaults.
func DefaultSizeLimitConfig() *SizeLimitConfig {
	maxBody, err := strconv.ParseInt(os.Getenv("MAX_REQUEST_SIZE"), 10, 64)
	if err != nil || maxBody <= 0 {
		maxBody = config.DefaultMaxBodySize
	}

	maxURL, err := strconv.Atoi(os.Getenv("MAX_URL_LENGTH"))
	if err != nil || maxURL <= 0 {
		maxURL = config.DefaultMaxURLLength
	}

	return &SizeLimitConfig{
		Enabled:      true,
		MaxBodySize:  maxBody,
		MaxURLLength: maxURL,
	}
}

// SizeLimiter rejects oversized requests before they reach a handler.
type SizeLimiter struct {
	config *SizeLimitConfig
}

// NewSizeLimiter creates a size limiter; a nil config uses the defaults.
func NewSizeLimiter(cfg *SizeLimitConfig) *SizeLimiter {
	if cfg == nil {
		cfg = DefaultSizeLimitConfig()
	}
	return &SizeLimiter{config: cfg}
}

// Middleware returns the size limiting handler. Bodies within the declared
// Content-Length are still capped by a MaxBytesReader so lying clients are
// cut off mid-read.
func (sl *SizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if len(r.URL.String()) > sl.config.MaxURLLength {
			http.Error(w, `{"error":"URL too long"}`, http.StatusRequestURITooLong)
			return
		}
		if r.ContentLength > sl.config.MaxBodySize {
			http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, sl.config.MaxBodySize)
		}

		next.ServeHTTP(w, r)
	})
}
