package config

import (
	"fmt"
	"net"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Filename string         `yaml:"-"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Limits   LimitsConfig   `yaml:"limits"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string           `yaml:"host"`
	RateLimits      ServerRateLimits `yaml:"rate_limits"`
	Port            int              `yaml:"port"`
	ReadTimeout     time.Duration    `yaml:"read_timeout"`
	WriteTimeout    time.Duration    `yaml:"write_timeout"`
	IdleTimeout     time.Duration    `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	RequestLogging  bool             `yaml:"request_logging"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ServerRateLimits defines rate limiting configuration
type ServerRateLimits struct {
	TrustedProxyCIDRs       []string      `yaml:"trusted_proxy_cidrs"`
	TrustedProxyCIDRsParsed []*net.IPNet  // to avoid parsing every time :D
	GlobalRequestsPerMinute int           `yaml:"global_requests_per_minute"`
	PerIPRequestsPerMinute  int           `yaml:"per_ip_requests_per_minute"`
	BurstSize               int           `yaml:"burst_size"`
	HealthRequestsPerMinute int           `yaml:"health_requests_per_minute"`
	CleanupInterval         time.Duration `yaml:"cleanup_interval"`
	TrustProxyHeaders       bool          `yaml:"trust_proxy_headers"`
}

// UpstreamConfig holds configuration for the local inference server
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	ResponseTimeout   time.Duration `yaml:"response_timeout"`
	StreamBufferSize  int           `yaml:"stream_buffer_size"`
}

// LimitsConfig bounds concurrent inference work per user and per model
type LimitsConfig struct {
	MaxActiveStreamsPerUser int `yaml:"max_active_streams_per_user"`
	MaxConcurrentPerModel   int `yaml:"max_concurrent_per_model"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	Dir        string `yaml:"dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	FileOutput bool   `yaml:"file_output"`
}

// Validate checks the configuration for values we can't run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Value: c.Server.Port, Reason: "must be between 1 and 65535"}
	}
	if c.Upstream.BaseURL == "" {
		return &ValidationError{Field: "upstream.base_url", Value: c.Upstream.BaseURL, Reason: "must not be empty"}
	}
	if c.Limits.MaxActiveStreamsPerUser <= 0 {
		return &ValidationError{Field: "limits.max_active_streams_per_user", Value: c.Limits.MaxActiveStreamsPerUser, Reason: "must be at least 1"}
	}
	if c.Limits.MaxConcurrentPerModel <= 0 {
		return &ValidationError{Field: "limits.max_concurrent_per_model", Value: c.Limits.MaxConcurrentPerModel, Reason: "must be at least 1"}
	}
	return nil
}

// ValidationError describes a configuration value we refuse to start with
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}
