package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	adxconfig "github.com/thenexusengine/tne_adx/internal/config"
)

// ServerConfig holds all server configuration
type ServerConfig struct {
	// Server
	Port   int
	LogDir string

	// Catalog
	StaticDir       string
	StrictStatic    bool
	RefreshInterval time.Duration

	// Database
	DatabaseConfig *DatabaseConfig

	// Redis
	RedisURL string

	// Mock DSP
	MockDSP     bool
	MockDSPPort int
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ParseConfig parses configuration from flags and environment variables
func ParseConfig() *ServerConfig {
	// Parse flags with environment variable fallbacks
	port := flag.Int("port", getEnvIntOrDefault("ADX_PORT", adxconfig.DefaultPort), "HTTP listen port")
	flag.IntVar(port, "p", *port, "HTTP listen port (shorthand)")
	logDir := flag.String("log-dir", getEnvOrDefault("LOG_DIR", adxconfig.DefaultLogDir), "Runtime log directory")
	staticDir := flag.String("static-dir", getEnvOrDefault("STATIC_DIR", adxconfig.DefaultStaticDir), "Static catalog JSON directory")
	strictStatic := flag.Bool("strict-static", getEnvBoolOrDefault("STRICT_STATIC", false), "Fail startup when static catalog files are unreadable")
	refreshInterval := flag.Duration("refresh-interval", adxconfig.CatalogRefreshInterval, "Catalog refresh period")
	redisURL := flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL for catalog hashes")
	dbHost := flag.String("db-host", os.Getenv("DB_HOST"), "PostgreSQL host for the catalog source")
	dbPort := flag.String("db-port", getEnvOrDefault("DB_PORT", "5432"), "PostgreSQL port")
	dbUser := flag.String("db-user", getEnvOrDefault("DB_USER", "adx"), "PostgreSQL user")
	dbPassword := flag.String("db-password", getEnvOrDefault("DB_PASSWORD", ""), "PostgreSQL password")
	dbName := flag.String("db-name", getEnvOrDefault("DB_NAME", "adx"), "PostgreSQL database name")
	mockDSP := flag.Bool("mock-dsp", getEnvBoolOrDefault("MOCK_DSP", true), "Run the embedded mock DSP")
	mockDSPPort := flag.Int("mock-dsp-port", getEnvIntOrDefault("MOCK_DSP_PORT", adxconfig.DefaultMockDSPPort), "Mock DSP listen port")
	flag.Parse()

	cfg := &ServerConfig{
		Port:            *port,
		LogDir:          *logDir,
		StaticDir:       *staticDir,
		StrictStatic:    *strictStatic,
		RefreshInterval: *refreshInterval,
		RedisURL:        *redisURL,
		MockDSP:         *mockDSP,
		MockDSPPort:     *mockDSPPort,
	}

	// Parse database config if a host is set
	if *dbHost != "" {
		cfg.DatabaseConfig = &DatabaseConfig{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Password: *dbPassword,
			Name:     *dbName,
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		}
	}

	return cfg
}

// Validate checks the configuration for values the server cannot start with.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.LogDir == "" {
		return fmt.Errorf("log directory must not be empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.MockDSP {
		if c.MockDSPPort < 1 || c.MockDSPPort > 65535 {
			return fmt.Errorf("invalid mock DSP port %d", c.MockDSPPort)
		}
		if c.MockDSPPort == c.Port {
			return fmt.Errorf("mock DSP port %d collides with the server port", c.MockDSPPort)
		}
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as bool or a default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvIntOrDefault returns the environment variable as int or a default
func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
