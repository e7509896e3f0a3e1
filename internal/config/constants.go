// Package config provides shared configuration constants for the ADX server
package config

import "time"

// Server timeout defaults
const (
	// ServerReadTimeout is the maximum duration for reading the entire request
	ServerReadTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration before timing out writes of the response
	ServerWriteTimeout = 10 * time.Second

	// ServerIdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	ServerIdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// DefaultPort is the HTTP listen port when none is configured
	DefaultPort = 8080
)

// Auction defaults
const (
	// DSPDefaultTimeout bounds a DSP call when neither the demand
	// configuration nor the bid request's tmax supplies a deadline
	DSPDefaultTimeout = 250 * time.Millisecond

	// DSPMinTimeoutMs is the smallest configurable per-demand timeout
	DSPMinTimeoutMs = 100

	// DSPMaxResponseSize caps a DSP response body (1MB)
	DSPMaxResponseSize = 1024 * 1024
)

// DSP HTTP client pooling
const (
	// DSPMaxIdleConns is the total idle connections across all DSP endpoints
	DSPMaxIdleConns = 100

	// DSPMaxIdleConnsPerHost is the idle connections kept per DSP endpoint
	DSPMaxIdleConnsPerHost = 10

	// DSPMaxConnsPerHost is the concurrent connection cap per DSP endpoint
	DSPMaxConnsPerHost = 50

	// DSPIdleConnTimeout is how long to keep idle DSP connections
	DSPIdleConnTimeout = 90 * time.Second
)

// Rate limiting defaults
const (
	// DefaultRPS is the default requests per second limit
	DefaultRPS = 1000

	// DefaultBurstSize is the default burst size for rate limiting
	DefaultBurstSize = 100
)

// Size limiting defaults
const (
	// DefaultMaxBodySize is the default maximum request body size (1MB)
	DefaultMaxBodySize = 1024 * 1024

	// DefaultMaxURLLength is the default maximum URL length (8KB)
	DefaultMaxURLLength = 8192
)

// Gzip compression defaults
const (
	// GzipMinLength is the minimum response size to compress (256 bytes)
	GzipMinLength = 256
)

// Runtime log defaults
const (
	// LogChannelCapacity bounds the async log queue; records beyond it are dropped
	LogChannelCapacity = 1000

	// LogBatchSize is the per-level buffer size that forces a flush
	LogBatchSize = 100

	// LogFlushInterval is the periodic flush cadence for partial batches
	LogFlushInterval = 1000 * time.Millisecond

	// LogRetention is how long rotated log files are kept before cleanup
	LogRetention = 72 * time.Hour

	// LogCleanupInterval is how often expired log files are swept
	LogCleanupInterval = time.Hour

	// DefaultLogDir is where runtime log files are written
	DefaultLogDir = "logs"

	// DefaultLogPrefix names the runtime log file family
	DefaultLogPrefix = "runtime"
)

// Catalog defaults
const (
	// CatalogRefreshInterval is how often dynamic sources are re-read
	CatalogRefreshInterval = 30 * time.Second

	// DefaultStaticDir holds the bundled catalog JSON files
	DefaultStaticDir = "static"
)

// Development defaults
const (
	// DefaultMockDSPPort is where the embedded mock bidder listens
	DefaultMockDSPPort = 9001
)
