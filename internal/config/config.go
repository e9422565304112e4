package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thushan/porter/internal/util"
)

const (
	DefaultPort = 19861
	DefaultHost = "localhost"

	// Defaults match a typical single-box LM Studio setup
	DefaultUpstreamBaseURL = "http://localhost:1234"

	DefaultMaxActiveStreamsPerUser = 2
	DefaultMaxConcurrentPerModel   = 2
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // streaming responses must not be cut off by the server
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
			RateLimits: ServerRateLimits{
				GlobalRequestsPerMinute: 0, // disabled unless configured
				PerIPRequestsPerMinute:  0,
				BurstSize:               10,
				HealthRequestsPerMinute: 120,
				CleanupInterval:         5 * time.Minute,
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:           DefaultUpstreamBaseURL,
			ConnectionTimeout: 30 * time.Second,
			ResponseTimeout:   10 * time.Minute, // LLM generations run long
			StreamBufferSize:  8 * 1024,
		},
		Limits: LimitsConfig{
			MaxActiveStreamsPerUser: DefaultMaxActiveStreamsPerUser,
			MaxConcurrentPerModel:   DefaultMaxConcurrentPerModel,
		},
		Storage: StorageConfig{
			DatabasePath: "./porter.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			Dir:        "./logs",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			FileOutput: false,
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("PORTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have PORTER_CONFIG_FILE env var
		if configFile := os.Getenv("PORTER_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Filename = viper.ConfigFileUsed()
	config.Upstream.BaseURL = util.NormaliseBaseURL(config.Upstream.BaseURL)

	parsed, err := util.ParseTrustedCIDRs(config.Server.RateLimits.TrustedProxyCIDRs)
	if err != nil {
		return nil, err
	}
	config.Server.RateLimits.TrustedProxyCIDRsParsed = parsed

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
