// Package config loads the pillscan runtime configuration from an optional
// config file, a .env file and the process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingPredictionConfig is returned when an operation needs the
// prediction endpoint but its settings are absent.
var ErrMissingPredictionConfig = errors.New("missing prediction endpoint configuration")

// Config holds all application configuration
type Config struct {
	// Prediction endpoint
	ProjectID       string `mapstructure:"project_id"`
	Region          string `mapstructure:"region"`
	EndpointID      string `mapstructure:"endpoint_id"`
	CredentialsJSON string `mapstructure:"credentials_json"`

	// Upstream sites
	DrugsBaseURL   string        `mapstructure:"drugs_base_url"`
	OpenFDABaseURL string        `mapstructure:"openfda_base_url"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	ProxyURL       string        `mapstructure:"proxy_url"`

	// Browser and site-ID resolution
	Headless            bool          `mapstructure:"headless"`
	ResolveInitialDelay time.Duration `mapstructure:"resolve_initial_delay"`
	ResolveDelayStep    time.Duration `mapstructure:"resolve_delay_step"`
	ResolveMaxAttempts  int           `mapstructure:"resolve_max_attempts"`

	// Site-ID cache
	RedisURL   string        `mapstructure:"redis_url"`
	IDCacheTTL time.Duration `mapstructure:"id_cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Server
	ServerAddress      string  `mapstructure:"server_address"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int64   `mapstructure:"rate_limit_burst"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"project_id":            "PROJECT_ID",
	"region":                "REGION",
	"endpoint_id":           "ENDPOINT_ID",
	"credentials_json":      "GOOGLE_APPLICATION_CREDENTIALS_JSON",
	"drugs_base_url":        "DRUGS_BASE_URL",
	"openfda_base_url":      "OPENFDA_BASE_URL",
	"http_timeout":          "HTTP_TIMEOUT",
	"proxy_url":             "PILLSCAN_PROXY",
	"headless":              "HEADLESS",
	"resolve_initial_delay": "RESOLVE_INITIAL_DELAY",
	"resolve_delay_step":    "RESOLVE_DELAY_STEP",
	"resolve_max_attempts":  "RESOLVE_MAX_ATTEMPTS",
	"redis_url":             "REDIS_URL",
	"id_cache_ttl":          "ID_CACHE_TTL",
	"log_level":             "LOG_LEVEL",
	"log_format":            "LOG_FORMAT",
	"server_address":        "SERVER_ADDRESS",
	"rate_limit_per_second": "RATE_LIMIT_PER_SECOND",
	"rate_limit_burst":      "RATE_LIMIT_BURST",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("drugs_base_url", "https://www.drugs.com")
	v.SetDefault("openfda_base_url", "https://api.fda.gov")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("headless", true)
	v.SetDefault("resolve_initial_delay", time.Second)
	v.SetDefault("resolve_delay_step", time.Second)
	v.SetDefault("resolve_max_attempts", 5)
	v.SetDefault("id_cache_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("server_address", "127.0.0.1:8080")
	v.SetDefault("rate_limit_per_second", 3.0)
	v.SetDefault("rate_limit_burst", 100)
}

// Load reads configuration. configFile may be empty, in which case
// pillscan.yaml is looked up in the working directory and ignored when
// absent. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("pillscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every operation relies on.
func (c *Config) Validate() error {
	if err := validateBaseURL(c.DrugsBaseURL); err != nil {
		return fmt.Errorf("invalid DRUGS_BASE_URL: %w", err)
	}
	if err := validateBaseURL(c.OpenFDABaseURL); err != nil {
		return fmt.Errorf("invalid OPENFDA_BASE_URL: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %s", c.HTTPTimeout)
	}
	if c.ResolveInitialDelay <= 0 {
		return fmt.Errorf("RESOLVE_INITIAL_DELAY must be positive, got: %s", c.ResolveInitialDelay)
	}
	if c.ResolveDelayStep < 0 {
		return fmt.Errorf("RESOLVE_DELAY_STEP cannot be negative, got: %s", c.ResolveDelayStep)
	}
	if c.ResolveMaxAttempts < 1 {
		return fmt.Errorf("RESOLVE_MAX_ATTEMPTS must be at least 1, got: %d", c.ResolveMaxAttempts)
	}
	if err := validateLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got: %s", c.LogFormat)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got: %v", c.RateLimitPerSecond)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got: %d", c.RateLimitBurst)
	}
	return nil
}

// ValidatePrediction checks the prediction endpoint settings. Operations that
// call the endpoint run it before doing any work.
func (c *Config) ValidatePrediction() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "PROJECT_ID")
	}
	if c.Region == "" {
		missing = append(missing, "REGION")
	}
	if c.EndpointID == "" {
		missing = append(missing, "ENDPOINT_ID")
	}
	if c.CredentialsJSON == "" {
		missing = append(missing, "GOOGLE_APPLICATION_CREDENTIALS_JSON")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPredictionConfig, strings.Join(missing, ", "))
	}
	if !json.Valid([]byte(c.CredentialsJSON)) {
		return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS_JSON is not valid JSON")
	}
	return nil
}

// EndpointName returns the fully qualified prediction endpoint resource name.
func (c *Config) EndpointName() string {
	if strings.HasPrefix(c.EndpointID, "projects/") {
		return c.EndpointID
	}
	return fmt.Sprintf("projects/%s/locations/%s/endpoints/%s", c.ProjectID, c.Region, c.EndpointID)
}

// PredictionHost returns the regional API host for the prediction service.
func (c *Config) PredictionHost() string {
	return c.Region + "-aiplatform.googleapis.com:443"
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must be http or https, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host: %s", raw)
	}
	return nil
}

func validateLogLevel(logLevel string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}
