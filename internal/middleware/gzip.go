// Package middleware provides the HTTP middleware chain in front of the
// exchange: request ids, access logging, size limits, rate limits, and
// response compression.
package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/thenexusengine/tne_adx/internal/config"
)

// GzipConfig holds response compression configuration.
type GzipConfig struct {
	Enabled       bool
	MinLength     int
	Level         int
	ContentTypes  []string
	ExcludedPaths []string
}

// DefaultGzipConfig compresses JSON answers above the minimum size and
// leaves operational endpoints untouched.
func DefaultGzipConfig() *GzipConfig {
	return &GzipConfig{
		Enabled:   true,
		MinLength: config.GzipMinLength,
		Level:     6,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
		ExcludedPaths: []string{
			"/metrics",
			"/health",
			"/ready",
			"/status",
		},
	}
}

// Gzip compresses responses with pooled writers.
type Gzip struct {
	config     *GzipConfig
	writerPool sync.Pool
}

// NewGzip creates the compression middleware; a nil config uses defaults.
func NewGzip(cfg *GzipConfig) *Gzip {
	if cfg == nil {
		cfg = DefaultGzipConfig()
	}

	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = 6
	}

	return &Gzip{
		config: cfg,
		writerPool: sync.Pool{
			New: func() any {
				w, err := gzip.NewWriterLevel(io.Discard, level)
				if err != nil {
					return nil
				}
				return w
			},
		},
	}
}

// gzipResponseWriter buffers the response so the compress-or-not decision
// can consider the final size and content type.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	config     *GzipConfig
	writerPool *sync.Pool
	buffer     bytes.Buffer
	flushed    bool
	headerCode int
}

func (grw *gzipResponseWriter) WriteHeader(code int) {
	if grw.headerCode == 0 {
		grw.headerCode = code
	}
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	return grw.buffer.Write(b)
}

func (grw *gzipResponseWriter) compressible(contentType string) bool {
	if contentType == "" {
		return false
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, ct := range grw.config.ContentTypes {
		if strings.EqualFold(ct, contentType) {
			return true
		}
	}
	return false
}

// flush writes the buffered response, compressed when it qualifies.
func (grw *gzipResponseWriter) flush() error {
	if grw.flushed {
		return nil
	}
	grw.flushed = true

	data := grw.buffer.Bytes()
	code := grw.headerCode
	if code == 0 {
		code = http.StatusOK
	}

	if len(data) >= grw.config.MinLength && grw.compressible(grw.Header().Get("Content-Type")) && grw.gzipWriter != nil {
		grw.Header().Set("Content-Encoding", "gzip")
		grw.Header().Del("Content-Length")
		grw.Header().Add("Vary", "Accept-Encoding")
		grw.ResponseWriter.WriteHeader(code)

		grw.gzipWriter.Reset(grw.ResponseWriter)
		if _, err := grw.gzipWriter.Write(data); err != nil {
			return err
		}
		return grw.gzipWriter.Close()
	}

	grw.ResponseWriter.WriteHeader(code)
	_, err := grw.ResponseWriter.Write(data)
	return err
}

// close flushes and returns the gzip writer to the pool.
func (grw *gzipResponseWriter) close() error {
	err := grw.flush()
	if grw.gzipWriter != nil {
		grw.gzipWriter.Reset(io.Discard)
		grw.writerPool.Put(grw.gzipWriter)
	}
	return err
}

// Middleware returns the compression handler.
func (g *Gzip) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		for _, path := range g.config.ExcludedPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gzipWriter, ok := g.writerPool.Get().(*gzip.Writer)
		if !ok || gzipWriter == nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		grw := &gzipResponseWriter{
			ResponseWriter: w,
			gzipWriter:     gzipWriter,
			config:         g.config,
			writerPool:     &g.writerPool,
		}
		defer grw.close()

		next.ServeHTTP(grw, r)
	})
}
