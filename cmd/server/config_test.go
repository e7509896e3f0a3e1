package main

import (
	"flag"
	"os"
	"testing"
	"time"
)

func TestParseConfig_Defaults(t *testing.T) {
	// Clear all environment variables
	clearEnvVars(t)

	// Reset flags before each test
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}

	if cfg.LogDir != "logs" {
		t.Errorf("Expected default log dir 'logs', got '%s'", cfg.LogDir)
	}

	if cfg.StaticDir != "static" {
		t.Errorf("Expected default static dir 'static', got '%s'", cfg.StaticDir)
	}

	if cfg.StrictStatic {
		t.Error("Expected strict static mode to be disabled by default")
	}

	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("Expected default refresh interval 30s, got %v", cfg.RefreshInterval)
	}

	if !cfg.MockDSP {
		t.Error("Expected mock DSP to be enabled by default")
	}

	if cfg.MockDSPPort != 9001 {
		t.Errorf("Expected default mock DSP port 9001, got %d", cfg.MockDSPPort)
	}

	if cfg.DatabaseConfig != nil {
		t.Error("Expected no database config when DB_HOST is not set")
	}

	if cfg.RedisURL != "" {
		t.Error("Expected empty Redis URL when REDIS_URL is not set")
	}
}

func TestParseConfig_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *ServerConfig)
	}{
		{
			name: "Custom port",
			envVars: map[string]string{
				"ADX_PORT": "9000",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.Port != 9000 {
					t.Errorf("Expected port 9000, got %d", cfg.Port)
				}
			},
		},
		{
			name: "Custom log dir",
			envVars: map[string]string{
				"LOG_DIR": "/var/log/adx",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.LogDir != "/var/log/adx" {
					t.Errorf("Expected log dir '/var/log/adx', got '%s'", cfg.LogDir)
				}
			},
		},
		{
			name: "Custom static dir",
			envVars: map[string]string{
				"STATIC_DIR": "/etc/adx/catalog",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.StaticDir != "/etc/adx/catalog" {
					t.Errorf("Expected static dir '/etc/adx/catalog', got '%s'", cfg.StaticDir)
				}
			},
		},
		{
			name: "Strict static enabled",
			envVars: map[string]string{
				"STRICT_STATIC": "true",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if !cfg.StrictStatic {
					t.Error("Expected strict static mode to be enabled")
				}
			},
		},
		{
			name: "Redis URL",
			envVars: map[string]string{
				"REDIS_URL": "redis://localhost:6379/0",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.RedisURL != "redis://localhost:6379/0" {
					t.Errorf("Expected Redis URL 'redis://localhost:6379/0', got '%s'", cfg.RedisURL)
				}
			},
		},
		{
			name: "Mock DSP disabled",
			envVars: map[string]string{
				"MOCK_DSP": "false",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.MockDSP {
					t.Error("Expected mock DSP to be disabled")
				}
			},
		},
		{
			name: "Custom mock DSP port",
			envVars: map[string]string{
				"MOCK_DSP_PORT": "9100",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.MockDSPPort != 9100 {
					t.Errorf("Expected mock DSP port 9100, got %d", cfg.MockDSPPort)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear and set environment variables
			clearEnvVars(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			// Reset flags
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

			cfg := ParseConfig()
			tt.validate(t, cfg)
		})
	}
}

func TestParseConfig_FlagOverrides(t *testing.T) {
	clearEnvVars(t)

	// Swap in a synthetic command line; ParseConfig reads os.Args.
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{oldArgs[0], "-p", "9999", "--log-dir", "custom-logs", "--mock-dsp=false"}

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != 9999 {
		t.Errorf("Expected -p to set port 9999, got %d", cfg.Port)
	}

	if cfg.LogDir != "custom-logs" {
		t.Errorf("Expected log dir 'custom-logs', got '%s'", cfg.LogDir)
	}

	if cfg.MockDSP {
		t.Error("Expected --mock-dsp=false to disable the mock DSP")
	}
}

func TestParseConfig_PortShorthandAndLongForm(t *testing.T) {
	clearEnvVars(t)

	// Both spellings bind the same value; the last one parsed wins.
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{oldArgs[0], "--port", "7777", "-p", "8888"}

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != 8888 {
		t.Errorf("Expected the later -p 8888 to win, got %d", cfg.Port)
	}
}

func TestParseConfig_DatabaseConfig(t *testing.T) {
	clearEnvVars(t)

	// Set database environment variables
	t.Setenv("DB_HOST", "postgres.example.com")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_NAME", "testdb")
	t.Setenv("DB_SSL_MODE", "require")

	// Reset flags
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.DatabaseConfig == nil {
		t.Fatal("Expected database config to be set")
	}

	dbCfg := cfg.DatabaseConfig

	if dbCfg.Host != "postgres.example.com" {
		t.Errorf("Expected DB host 'postgres.example.com', got '%s'", dbCfg.Host)
	}

	if dbCfg.Port != "5433" {
		t.Errorf("Expected DB port '5433', got '%s'", dbCfg.Port)
	}

	if dbCfg.User != "testuser" {
		t.Errorf("Expected DB user 'testuser', got '%s'", dbCfg.User)
	}

	if dbCfg.Password != "testpass" {
		t.Errorf("Expected DB password 'testpass', got '%s'", dbCfg.Password)
	}

	if dbCfg.Name != "testdb" {
		t.Errorf("Expected DB name 'testdb', got '%s'", dbCfg.Name)
	}

	if dbCfg.SSLMode != "require" {
		t.Errorf("Expected DB SSL mode 'require', got '%s'", dbCfg.SSLMode)
	}
}

func TestParseConfig_DatabaseConfig_NotSet(t *testing.T) {
	clearEnvVars(t)

	// Reset flags
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.DatabaseConfig != nil {
		t.Error("Expected no database config when DB_HOST is not set")
	}
}

func TestParseConfig_DatabaseConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	// Set only DB_HOST, use defaults for the rest
	t.Setenv("DB_HOST", "localhost")

	// Reset flags
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.DatabaseConfig == nil {
		t.Fatal("Expected database config to be set")
	}

	dbCfg := cfg.DatabaseConfig

	if dbCfg.Host != "localhost" {
		t.Errorf("Expected DB host 'localhost', got '%s'", dbCfg.Host)
	}

	if dbCfg.Port != "5432" {
		t.Errorf("Expected default DB port '5432', got '%s'", dbCfg.Port)
	}

	if dbCfg.User != "adx" {
		t.Errorf("Expected default DB user 'adx', got '%s'", dbCfg.User)
	}

	if dbCfg.Password != "" {
		t.Errorf("Expected default DB password '', got '%s'", dbCfg.Password)
	}

	if dbCfg.Name != "adx" {
		t.Errorf("Expected default DB name 'adx', got '%s'", dbCfg.Name)
	}

	if dbCfg.SSLMode != "disable" {
		t.Errorf("Expected default DB SSL mode 'disable', got '%s'", dbCfg.SSLMode)
	}
}

func TestServerConfigValidate(t *testing.T) {
	valid := func() *ServerConfig {
		return &ServerConfig{
			Port:            8080,
			LogDir:          "logs",
			StaticDir:       "static",
			RefreshInterval: 30 * time.Second,
			MockDSP:         true,
			MockDSPPort:     9001,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{
			name:    "Valid config",
			mutate:  func(*ServerConfig) {},
			wantErr: false,
		},
		{
			name:    "Port zero",
			mutate:  func(c *ServerConfig) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "Port out of range",
			mutate:  func(c *ServerConfig) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "Empty log dir",
			mutate:  func(c *ServerConfig) { c.LogDir = "" },
			wantErr: true,
		},
		{
			name:    "Zero refresh interval",
			mutate:  func(c *ServerConfig) { c.RefreshInterval = 0 },
			wantErr: true,
		},
		{
			name:    "Mock DSP port collision",
			mutate:  func(c *ServerConfig) { c.MockDSPPort = c.Port },
			wantErr: true,
		},
		{
			name:    "Invalid mock DSP port",
			mutate:  func(c *ServerConfig) { c.MockDSPPort = -1 },
			wantErr: true,
		},
		{
			name: "Mock DSP disabled skips its port check",
			mutate: func(c *ServerConfig) {
				c.MockDSP = false
				c.MockDSPPort = -1
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		setValue     bool
		defaultValue string
		expected     string
	}{
		{
			name:         "With value",
			key:          "TEST_VAR",
			value:        "test_value",
			setValue:     true,
			defaultValue: "default",
			expected:     "test_value",
		},
		{
			name:         "Without value",
			key:          "MISSING_VAR",
			setValue:     false,
			defaultValue: "default",
			expected:     "default",
		},
		{
			name:         "Empty string",
			key:          "EMPTY_VAR",
			value:        "",
			setValue:     true,
			defaultValue: "default",
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setValue {
				t.Setenv(tt.key, tt.value)
			} else {
				os.Unsetenv(tt.key)
			}

			result := getEnvOrDefault(tt.key, tt.defaultValue)

			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		setValue     bool
		defaultValue bool
		expected     bool
	}{
		{
			name:         "true",
			value:        "true",
			setValue:     true,
			defaultValue: false,
			expected:     true,
		},
		{
			name:         "1",
			value:        "1",
			setValue:     true,
			defaultValue: false,
			expected:     true,
		},
		{
			name:         "yes",
			value:        "yes",
			setValue:     true,
			defaultValue: false,
			expected:     true,
		},
		{
			name:         "false",
			value:        "false",
			setValue:     true,
			defaultValue: true,
			expected:     false,
		},
		{
			name:         "0",
			value:        "0",
			setValue:     true,
			defaultValue: true,
			expected:     false,
		},
		{
			name:         "no",
			value:        "no",
			setValue:     true,
			defaultValue: true,
			expected:     false,
		},
		{
			name:         "Empty uses default false",
			value:        "",
			setValue:     false,
			defaultValue: false,
			expected:     false,
		},
		{
			name:         "Empty uses default true",
			value:        "",
			setValue:     false,
			defaultValue: true,
			expected:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.setValue {
				t.Setenv(key, tt.value)
			} else {
				os.Unsetenv(key)
			}

			result := getEnvBoolOrDefault(key, tt.defaultValue)

			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		setValue     bool
		defaultValue int
		expected     int
	}{
		{
			name:         "With value",
			value:        "4242",
			setValue:     true,
			defaultValue: 8080,
			expected:     4242,
		},
		{
			name:         "Without value",
			setValue:     false,
			defaultValue: 8080,
			expected:     8080,
		},
		{
			name:         "Not a number uses default",
			value:        "eighty-eighty",
			setValue:     true,
			defaultValue: 8080,
			expected:     8080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_INT_VAR"
			if tt.setValue {
				t.Setenv(key, tt.value)
			} else {
				os.Unsetenv(key)
			}

			result := getEnvIntOrDefault(key, tt.defaultValue)

			if result != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, result)
			}
		})
	}
}

// Helper function to clear relevant environment variables
func clearEnvVars(t *testing.T) {
	t.Helper()

	envVars := []string{
		"ADX_PORT",
		"LOG_DIR",
		"STATIC_DIR",
		"STRICT_STATIC",
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_SSL_MODE",
		"REDIS_URL",
		"MOCK_DSP",
		"MOCK_DSP_PORT",
	}

	for _, key := range envVars {
		os.Unsetenv(key)
	}
}
