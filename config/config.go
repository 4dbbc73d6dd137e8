package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"herald/database"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string `yaml:"discord_token"`

	// Database configuration
	DatabaseURL      string `yaml:"database_url"`
	DatabaseName     string `yaml:"database_name"`
	DatabaseHost     string `yaml:"database_host"`
	DatabasePort     string `yaml:"database_port"`
	DatabaseUser     string `yaml:"database_user"`
	DatabasePassword string `yaml:"database_password"`

	// Bot configuration
	Prefix     string `yaml:"prefix"`      // Bot-global command prefix, also the reset target
	ShardID    int    `yaml:"shard_id"`    // Shard this process serves
	ShardCount int    `yaml:"shard_count"` // Total shards across all processes

	// Logging
	LogLevel string `yaml:"log_level"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `yaml:"otel_enabled"`
	OTelServiceName          string `yaml:"otel_service_name"`
	OTelExporterType         string `yaml:"otel_exporter_type"` // "console", "otlp" or "none"
	OTelOTLPEndpoint         string `yaml:"otel_otlp_endpoint"`
	OTelExportIntervalMillis int    `yaml:"otel_export_interval_ms"`

	// Environment
	Environment string `yaml:"environment"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL returns the connection URL, built from discrete
// parameters when no DATABASE_URL was given
func (c *Config) GetDatabaseURL() string {
	if c.DatabaseURL != "" {
		return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
	}
	return database.BuildDatabaseURL(c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName)
}

// Load reads the optional YAML file named by HERALD_CONFIG, then applies
// environment variables on top of it and validates the result
func Load() (*Config, error) {
	config := defaults()

	if path := os.Getenv("HERALD_CONFIG"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Prefix:                   "/",
		ShardID:                  0,
		ShardCount:               1,
		LogLevel:                 "info",
		OTelServiceName:          "herald",
		OTelExporterType:         "none",
		OTelOTLPEndpoint:         "localhost:4317",
		OTelExportIntervalMillis: 30000,
		Environment:              "development",
	}
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(config *Config) error {
	setString(&config.DiscordToken, "DISCORD_TOKEN")
	setString(&config.DatabaseURL, "DATABASE_URL")
	setString(&config.DatabaseName, "DATABASE_NAME")
	setString(&config.DatabaseHost, "DB_HOST")
	setString(&config.DatabasePort, "DB_PORT")
	setString(&config.DatabaseUser, "DB_USER")
	setString(&config.DatabasePassword, "DB_PASSWORD")
	setString(&config.Prefix, "BOT_PREFIX")
	setString(&config.LogLevel, "LOG_LEVEL")
	setString(&config.OTelServiceName, "OTEL_SERVICE_NAME")
	setString(&config.OTelExporterType, "OTEL_EXPORTER_TYPE")
	setString(&config.OTelOTLPEndpoint, "OTEL_OTLP_ENDPOINT")
	setString(&config.Environment, "ENVIRONMENT")

	// DB_NAME is the discrete-parameter spelling of DATABASE_NAME
	if config.DatabaseName == "" {
		setString(&config.DatabaseName, "DB_NAME")
	}

	if err := setInt(&config.ShardID, "SHARD_ID"); err != nil {
		return err
	}
	if err := setInt(&config.ShardCount, "SHARD_COUNT"); err != nil {
		return err
	}
	if err := setInt(&config.OTelExportIntervalMillis, "OTEL_EXPORT_INTERVAL_MS"); err != nil {
		return err
	}

	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		config.OTelEnabled = strings.EqualFold(enabled, "true")
	}

	return nil
}

func (c *Config) validate() error {
	if c.ShardCount < 1 {
		return fmt.Errorf("SHARD_COUNT must be at least 1, got %d", c.ShardCount)
	}
	if c.ShardID < 0 || c.ShardID >= c.ShardCount {
		return fmt.Errorf("SHARD_ID must be in [0, %d), got %d", c.ShardCount, c.ShardID)
	}

	if c.Environment != "test" {
		if c.DiscordToken == "" {
			return fmt.Errorf("DISCORD_TOKEN is required")
		}
		if c.DatabaseURL == "" && c.DatabaseHost == "" {
			return fmt.Errorf("DATABASE_URL or DB_HOST is required")
		}
	}

	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = parsed
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	config := defaults()
	config.Environment = "test"
	return config
}
