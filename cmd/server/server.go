package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_adx/internal/adxlog"
	"github.com/thenexusengine/tne_adx/internal/catalog"
	adxconfig "github.com/thenexusengine/tne_adx/internal/config"
	"github.com/thenexusengine/tne_adx/internal/dsp"
	"github.com/thenexusengine/tne_adx/internal/dspsim"
	"github.com/thenexusengine/tne_adx/internal/endpoints"
	"github.com/thenexusengine/tne_adx/internal/exchange"
	"github.com/thenexusengine/tne_adx/internal/metrics"
	"github.com/thenexusengine/tne_adx/internal/middleware"
	"github.com/thenexusengine/tne_adx/pkg/logger"
	"github.com/thenexusengine/tne_adx/pkg/redis"
)

// monitorInterval is how often gauges are refreshed from live components.
const monitorInterval = 15 * time.Second

// Server represents the ADX server
type Server struct {
	config      *ServerConfig
	httpServer  *http.Server
	metrics     *metrics.Metrics
	rlog        *adxlog.Logger
	catalog     *catalog.Catalog
	registry    *catalog.Registry
	engine      *exchange.Engine
	rateLimiter *middleware.RateLimiter
	redisClient *redis.Client
	db          *sql.DB
	mockDSP     *dspsim.Server

	monitorStop chan struct{}
}

// NewServer creates a new ADX server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		config:      cfg,
		monitorStop: make(chan struct{}),
	}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

// initialize sets up all server components
func (s *Server) initialize() error {
	log := logger.Log

	log.Info().
		Int("port", s.config.Port).
		Str("log_dir", s.config.LogDir).
		Str("static_dir", s.config.StaticDir).
		Dur("refresh_interval", s.config.RefreshInterval).
		Bool("mock_dsp", s.config.MockDSP).
		Msg("Initializing The Nexus Engine ADX Server")

	// Initialize Prometheus metrics
	s.metrics = metrics.NewMetrics("adx")
	log.Info().Msg("Prometheus metrics enabled")

	// Initialize the runtime trace logger. Its directory must be writable;
	// everything downstream records auction events through it.
	rlog, err := adxlog.New(s.config.LogDir, adxconfig.DefaultLogPrefix, 0, 0, 0)
	if err != nil {
		return fmt.Errorf("runtime logger: %w", err)
	}
	s.rlog = rlog
	s.rlog.Log(adxlog.LevelInfo, "ADX server is starting...")

	// Initialize the catalog and its configuration source
	s.catalog = catalog.New()
	if err := s.initCatalog(); err != nil {
		return err
	}

	// Initialize middleware
	s.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	s.rateLimiter.SetMetrics(s.metrics)

	// Initialize the auction engine over a shared DSP client
	s.engine = exchange.New(s.catalog, dsp.NewClient(), s.rlog)
	s.engine.SetMetrics(s.metrics)
	log.Info().Msg("Auction engine initialized")

	// Embedded mock DSP for local demand
	if s.config.MockDSP {
		s.mockDSP = dspsim.New(s.config.MockDSPPort)
	}

	// Initialize handlers and build HTTP server
	s.initHandlers()

	return nil
}

// initCatalog picks the configuration source, performs the initial load, and
// starts the refresh loop. Source precedence: PostgreSQL, Redis, static files.
func (s *Server) initCatalog() error {
	log := logger.Log

	var source catalog.Source
	if s.config.DatabaseConfig != nil {
		dbCfg := s.config.DatabaseConfig
		db, err := catalog.OpenDB(dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.Name, dbCfg.SSLMode)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to PostgreSQL, trying the next catalog source")
		} else {
			s.db = db
			source = catalog.NewPostgresSource(db)
			log.Info().Str("host", dbCfg.Host).Str("database", dbCfg.Name).Msg("Catalog source: PostgreSQL")
		}
	}
	if source == nil && s.config.RedisURL != "" {
		rc, err := redis.New(s.config.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, trying the next catalog source")
		} else {
			s.redisClient = rc
			source = catalog.NewRedisSource(rc)
			log.Info().Msg("Catalog source: Redis")
		}
	}
	usingFiles := source == nil
	if usingFiles {
		source = catalog.NewFileSource(s.config.StaticDir, s.config.StrictStatic)
		log.Info().Str("dir", s.config.StaticDir).Bool("strict", s.config.StrictStatic).Msg("Catalog source: static files")
	}

	s.registry = catalog.NewRegistry(s.catalog, source, s.config.RefreshInterval)
	s.registry.SetRecorder(s.metrics)

	if err := s.registry.Start(context.Background()); err != nil {
		// Strict mode makes unreadable static files a boot failure; every
		// other source degrades to an empty catalog with a warning.
		if usingFiles && s.config.StrictStatic {
			return err
		}
		log.Warn().Err(err).Msg("Initial catalog load failed, continuing with an empty catalog")
	}

	// Without configured demands the exchange has nothing to call; generate a
	// synthetic set pointed at the mock DSP so local auctions still clear.
	if len(s.catalog.Demands()) == 0 {
		bidURL := fmt.Sprintf("http://127.0.0.1:%d/bid", s.config.MockDSPPort)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		demands := catalog.GenerateDemands(rng, bidURL)
		s.catalog.SetDemands(demands)
		log.Info().
			Int("count", len(demands)).
			Str("bid_url", bidURL).
			Msg("No configured demands, generated a synthetic demand set")
	}

	st := s.catalog.Stats()
	log.Info().
		Int("demands", st.Demands).
		Int("active_demands", st.ActiveDemands).
		Int("ssps", st.SSPs).
		Int("ssp_placements", st.SSPPlacements).
		Int("dsp_placements", st.DSPPlacements).
		Msg("Catalog loaded")

	return nil
}

// initHandlers initializes HTTP handlers and builds the handler chain
func (s *Server) initHandlers() {
	bidHandler := endpoints.NewBidHandler(s.catalog, s.engine, s.rlog)
	statusHandler := endpoints.NewStatusHandler(s.catalog)

	// Setup routes
	mux := http.NewServeMux()
	mux.Handle("/openrtb", bidHandler)
	mux.Handle("/status", statusHandler)
	mux.Handle("/health", endpoints.HealthHandler())
	mux.Handle("/ready", endpoints.ReadyHandler(s.catalog))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	// Build middleware chain
	handler := s.buildHandler(mux)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  adxconfig.ServerReadTimeout,
		WriteTimeout: adxconfig.ServerWriteTimeout,
		IdleTimeout:  adxconfig.ServerIdleTimeout,
	}
}

// buildHandler builds the middleware chain
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	sizeLimiter := middleware.NewSizeLimiter(middleware.DefaultSizeLimitConfig())
	gzipMiddleware := middleware.NewGzip(middleware.DefaultGzipConfig())

	logger.Log.Info().
		Bool("rate_limiting_enabled", s.rateLimiter != nil).
		Msg("Middleware chain built")

	// Build chain: RequestID -> Access Log -> Size Limit -> Rate Limit -> Metrics -> Gzip -> Handler
	handler := http.Handler(mux)
	handler = gzipMiddleware.Middleware(handler)
	handler = s.metrics.Middleware(handler)
	handler = s.rateLimiter.Middleware(handler)
	handler = sizeLimiter.Middleware(handler)
	handler = middleware.AccessLog(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// monitor keeps gauges in step with live component state.
func (s *Server) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	var reportedDrops uint64
	for {
		select {
		case <-ticker.C:
			s.metrics.SetActiveDemands(len(s.catalog.ActiveDemands()))
			if d := s.rlog.Dropped(); d > reportedDrops {
				s.metrics.AddLogRecordsDropped(d - reportedDrops)
				reportedDrops = d
			}
		case <-s.monitorStop:
			return
		}
	}
}

// Start starts the HTTP server and the embedded mock DSP
func (s *Server) Start() error {
	log := logger.Log

	if s.mockDSP != nil {
		go func() {
			if err := s.mockDSP.Start(); err != nil {
				log.Error().Err(err).Int("port", s.config.MockDSPPort).Msg("Mock DSP stopped")
			}
		}()
	}

	go s.monitor()

	s.rlog.Log(adxlog.LevelInfo, fmt.Sprintf("ADX server running at http://0.0.0.0:%d", s.config.Port))
	log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown performs graceful shutdown. The runtime logger closes last so
// every component can still record while draining.
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")
	s.rlog.Log(adxlog.LevelInfo, "Shutting down gracefully...")

	// Stop background refresh and cleanup goroutines
	if s.registry != nil {
		s.registry.Stop()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	close(s.monitorStop)

	if s.mockDSP != nil {
		if err := s.mockDSP.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Error stopping mock DSP")
		}
	}

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
	}

	// Drain the runtime log sink
	s.rlog.Log(adxlog.LevelInfo, "ADX logs flushed before shutdown")
	s.rlog.Close()
	if dropped := s.rlog.Dropped(); dropped > 0 {
		log.Warn().Uint64("dropped", dropped).Msg("Runtime log records dropped under pressure")
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}
