package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Retention RetentionConfig `mapstructure:"retention"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Students  StudentsConfig  `mapstructure:"students"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// Timezone decides which calendar day a timestamp belongs to.
	Timezone string `mapstructure:"timezone"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	MaxHeaderBytes int    `mapstructure:"max_header_bytes"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	// CORSOrigins restricts browser callers; empty allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
	LogQueries    bool   `mapstructure:"log_queries"`
}

// RetentionConfig controls the deletion of old attendance rows
type RetentionConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Years     int  `mapstructure:"years"`
	OnStartup bool `mapstructure:"on_startup"`
	// IntervalHours is the period of the background cleanup; 0 disables it.
	IntervalHours int `mapstructure:"interval_hours"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Type       string `mapstructure:"type"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// StudentsConfig holds limits for the student module
type StudentsConfig struct {
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

var config *Config

// Init initializes the configuration
func Init() {
	config = &Config{}

	// Set default values
	setDefaults()

	viper.SetEnvPrefix("CDI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal configuration from viper
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}

// Get returns the global configuration
func Get() *Config {
	if config == nil {
		Init()
	}
	return config
}

// Location resolves app.timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" || strings.EqualFold(c.App.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		log.Printf("Unknown timezone %q, using local time: %v", c.App.Timezone, err)
		return time.Local
	}
	return loc
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "cdi-tracker")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.timezone", "Local")

	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)
	viper.SetDefault("server.max_header_bytes", 1048576)
	viper.SetDefault("server.metrics_enabled", true)

	// Database defaults
	viper.SetDefault("database.path", "data/database.db")
	viper.SetDefault("database.busy_timeout_ms", 5000)
	viper.SetDefault("database.log_queries", false)

	// Retention defaults
	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.years", 2)
	viper.SetDefault("retention.on_startup", true)
	viper.SetDefault("retention.interval_hours", 24)

	// Cache defaults
	viper.SetDefault("cache.type", "none")
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl_seconds", 300)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file_path", "")

	viper.SetDefault("students.max_batch_size", 1000)
}
