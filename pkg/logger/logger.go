// Package logger provides structured logging for the ADX server using zerolog.
// All components share the global Log instance; request-scoped loggers carry
// the request and auction identifiers through context.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for the inbound HTTP request ID.
	RequestIDKey contextKey = "request_id"
	// AuctionIDKey is the context key for the auction (bid request) ID.
	AuctionIDKey contextKey = "auction_id"
)

// Log is the global logger. It is initialized with defaults at package load
// so early startup code and tests can log before Init runs.
var Log zerolog.Logger

func init() {
	Init(DefaultConfig())
}

// Config controls logger initialization.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	TimeFormat string
}

// DefaultConfig returns the logger configuration, honoring the LOG_LEVEL and
// LOG_FORMAT environment variables.
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// getEnv reads an environment variable, treating empty values as unset.
func getEnv(key, defVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defVal
}

// Init configures the global logger. Unknown levels fall back to info.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var logger zerolog.Logger
	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	Log = logger.Level(level).With().
		Timestamp().
		Str("service", "adx").
		Logger()
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAuctionID stores the auction ID in the context.
func WithAuctionID(ctx context.Context, auctionID string) context.Context {
	return context.WithValue(ctx, AuctionIDKey, auctionID)
}

// FromContext returns a logger annotated with any request or auction ID
// present in the context.
func FromContext(ctx context.Context) zerolog.Logger {
	logger := Log
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}
	if auctionID, ok := ctx.Value(AuctionIDKey).(string); ok && auctionID != "" {
		logger = logger.With().Str("auction_id", auctionID).Logger()
	}
	return logger
}

// Auction returns a logger scoped to a single auction.
func Auction(auctionID string) zerolog.Logger {
	return Log.With().Str("auction_id", auctionID).Logger()
}

// Demand returns a logger scoped to a single demand partner.
func Demand(name string) zerolog.Logger {
	return Log.With().Str("demand", name).Logger()
}

// HTTP returns a logger for the HTTP serving layer.
func HTTP() zerolog.Logger {
	return Log.With().Str("component", "http").Logger()
}

// Catalog returns a logger for the supply/demand catalog.
func Catalog() zerolog.Logger {
	return Log.With().Str("component", "catalog").Logger()
}

// RequestLogger carries a request ID and start time through request handling.
type RequestLogger struct {
	logger zerolog.Logger
	start  time.Time
}

// NewRequestLogger creates a logger bound to one HTTP request.
func NewRequestLogger(requestID string) *RequestLogger {
	return &RequestLogger{
		logger: Log.With().Str("request_id", requestID).Logger(),
		start:  time.Now(),
	}
}

// Info logs an informational message.
func (rl *RequestLogger) Info(msg string) {
	rl.logger.Info().Msg(msg)
}

// Error logs an error with its message.
func (rl *RequestLogger) Error(msg string, err error) {
	rl.logger.Error().Err(err).Msg(msg)
}

// WithField returns a RequestLogger with an extra field attached.
func (rl *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	return &RequestLogger{
		logger: rl.logger.With().Interface(key, value).Logger(),
		start:  rl.start,
	}
}

// Duration reports time elapsed since the request began.
func (rl *RequestLogger) Duration() time.Duration {
	return time.Since(rl.start)
}

// LogComplete emits the request completion record with status and latency.
func (rl *RequestLogger) LogComplete(status int) {
	rl.logger.Info().
		Int("status", status).
		Float64("duration_ms", float64(rl.Duration().Microseconds())/1000.0).
		Msg("request completed")
}
