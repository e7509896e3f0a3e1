package middleware

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thenexusengine/tne_adx/internal/config"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
	TrustedProxies    []*net.IPNet // CIDR ranges allowed to set X-Forwarded-For
	TrustXFF          bool
}

// DefaultRateLimitConfig reads limits from the environment, falling back to
// the server defaults. X-Forwarded-For is honored only when trusted proxies
// are configured.
func DefaultRateLimitConfig() *RateLimitConfig {
	rps, err := strconv.Atoi(os.Getenv("RATE_LIMIT_RPS"))
	if err != nil || rps <= 0 {
		rps = config.DefaultRPS
	}

	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		burst = config.DefaultBurstSize
	}

	var trustedProxies []*net.IPNet
	if proxyStr := os.Getenv("TRUSTED_PROXIES"); proxyStr != "" {
		for _, cidr := range strings.Split(proxyStr, ",") {
			cidr = strings.TrimSpace(cidr)
			if cidr == "" {
				continue
			}
			if !strings.Contains(cidr, "/") {
				if strings.Contains(cidr, ":") {
					cidr += "/128"
				} else {
					cidr += "/32"
				}
			}
			if _, network, err := net.ParseCIDR(cidr); err == nil {
				trustedProxies = append(trustedProxies, network)
			}
		}
	}

	return &RateLimitConfig{
		Enabled:           os.Getenv("RATE_LIMIT_ENABLED") != "false",
		RequestsPerSecond: rps,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
		TrustedProxies:    trustedProxies,
		TrustXFF:          len(trustedProxies) > 0,
	}
}

// clientState tracks one client's token bucket.
type clientState struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimitMetrics receives rejection counts.
type RateLimitMetrics interface {
	IncRateLimitRejected()
}

// RateLimiter throttles requests per supply partner using a token bucket.
// Requests carrying an ssp_uuid are keyed by it; anonymous traffic falls
// back to the client IP.
type RateLimiter struct {
	config  *RateLimitConfig
	clients map[string]*clientState
	mu      sync.Mutex
	stopCh  chan struct{}
	metrics RateLimitMetrics
}

// NewRateLimiter creates a rate limiter; a nil config uses the defaults.
func NewRateLimiter(cfg *RateLimitConfig) *RateLimiter {
	if cfg == nil {
		cfg = DefaultRateLimitConfig()
	}

	rl := &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanup()
	}
	return rl
}

// cleanup drops buckets idle for over a minute.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, state := range rl.clients {
				if now.Sub(state.lastCheck) > time.Minute {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// SetMetrics attaches a metrics recorder for rejected requests.
func (rl *RateLimiter) SetMetrics(m RateLimitMetrics) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.metrics = m
}

// Middleware returns the rate limiting handler.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		clientID := r.URL.Query().Get("ssp_uuid")
		if clientID == "" {
			clientID = rl.clientIP(r)
		}

		if !rl.allow(clientID) {
			if rl.metrics != nil {
				rl.metrics.IncRateLimitRejected()
			}
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerSecond))
			w.Header().Set("X-RateLimit-Remaining", "0")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerSecond))
		next.ServeHTTP(w, r)
	})
}

// allow takes one token from the client's bucket, refilling by elapsed time.
func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	state, exists := rl.clients[clientID]
	if !exists {
		rl.clients[clientID] = &clientState{
			tokens:    float64(rl.config.BurstSize - 1),
			lastCheck: now,
		}
		return true
	}

	elapsed := now.Sub(state.lastCheck).Seconds()
	state.tokens += elapsed * float64(rl.config.RequestsPerSecond)
	if state.tokens > float64(rl.config.BurstSize) {
		state.tokens = float64(rl.config.BurstSize)
	}
	state.lastCheck = now

	if state.tokens < 1 {
		return false
	}
	state.tokens--
	return true
}

// clientIP resolves the caller's IP, honoring X-Forwarded-For only from
// trusted proxies.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	remoteIP := extractIP(r.RemoteAddr)

	if rl.config.TrustXFF && rl.isTrustedProxy(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			// Walk right to left; the first untrusted hop is the client.
			for i := len(ips) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(ips[i])
				if ip == "" {
					continue
				}
				if !rl.isTrustedProxy(ip) {
					return ip
				}
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	return remoteIP
}

func (rl *RateLimiter) isTrustedProxy(ipStr string) bool {
	if len(rl.config.TrustedProxies) == 0 {
		return false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range rl.config.TrustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP strips the port from a remote address, tolerating IPv6 forms.
func extractIP(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]"); idx != -1 {
			return addr[1:idx]
		}
	}
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		if strings.Count(addr, ":") > 1 {
			return addr
		}
		return addr[:idx]
	}
	return addr
}
