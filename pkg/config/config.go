package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FRIENDGEO_"

// DefaultCities is the ordered city list the range selector indexes into
var DefaultCities = []string{
	"baltimore",
	"buffalo",
	"el paso",
	"fayetteville",
	"portland",
	"rockford",
	"san_francisco",
	"scranton",
	"southbend",
}

// Config holds all configuration options for friendgeo
type Config struct {
	GraphAPI  GraphAPIConfig  `yaml:"graph_api" json:"graph_api"`
	Geocoder  GeocoderConfig  `yaml:"geocoder" json:"geocoder"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Star      StarConfig      `yaml:"star" json:"star"`
	Aggregate AggregateConfig `yaml:"aggregate" json:"aggregate"`
	Data      DataConfig      `yaml:"data" json:"data"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// GraphAPIConfig configures the social graph provider
type GraphAPIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"-" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// GeocoderConfig configures the geocoding provider
type GeocoderConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"-" json:"-"`
	Region  string        `yaml:"region" json:"region"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds client-side pacing and retry settings shared by both providers
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	RateLimitDelay    time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
}

// PipelineConfig holds run-wide settings
type PipelineConfig struct {
	Cities     []string `yaml:"cities" json:"cities"`
	Threads    int      `yaml:"threads" json:"threads"`
	FriendMode string   `yaml:"friend_mode" json:"friend_mode"`
}

// StarConfig holds the star cohort thresholds and cost controls
type StarConfig struct {
	Threshold        int  `yaml:"threshold" json:"threshold"`
	RequireFollowing bool `yaml:"require_following" json:"require_following"`
	SkipAbove        int  `yaml:"skip_above" json:"skip_above"`
	MaxFetch         int  `yaml:"max_fetch" json:"max_fetch"`
	SuspiciousMin    int  `yaml:"suspicious_min" json:"suspicious_min"`
}

// AggregateConfig selects how friend locations are grouped
type AggregateConfig struct {
	Granularity         string `yaml:"granularity" json:"granularity"`
	CellLevel           int    `yaml:"cell_level" json:"cell_level"`
	IncludeCountryLevel bool   `yaml:"include_country_level" json:"include_country_level"`
	StateFallback       bool   `yaml:"state_fallback" json:"state_fallback"`
}

// DataConfig locates on-disk state
type DataConfig struct {
	Dir            string `yaml:"dir" json:"dir"`
	CacheFile      string `yaml:"cache_file" json:"cache_file"`
	SharedProfiles string `yaml:"shared_profiles" json:"shared_profiles"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// MetricsConfig controls the per-run Prometheus textfile export
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Textfile string `yaml:"textfile" json:"textfile"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		GraphAPI: GraphAPIConfig{
			BaseURL: "https://api.twitterapi.io/twitter",
			Timeout: 30 * time.Second,
		},
		Geocoder: GeocoderConfig{
			BaseURL: "https://maps.googleapis.com/maps/api/geocode/json",
			Timeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			RateLimitDelay:    60 * time.Second,
		},
		Pipeline: PipelineConfig{
			Cities:     append([]string(nil), DefaultCities...),
			Threads:    1,
			FriendMode: "mutual",
		},
		Star: StarConfig{
			Threshold:        1000,
			RequireFollowing: true,
			SkipAbove:        5000,
			MaxFetch:         200,
			SuspiciousMin:    100,
		},
		Aggregate: AggregateConfig{
			Granularity: "place",
			CellLevel:   10,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// CacheFilePath returns the global geocode cache location
func (c *Config) CacheFilePath() string {
	if c.Data.CacheFile != "" {
		return c.Data.CacheFile
	}
	return filepath.Join(c.Data.Dir, "geocode-cache.jsonl")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "GRAPH_API_KEY"); v != "" {
		c.GraphAPI.APIKey = v
	}
	if v := os.Getenv(envPrefix + "GRAPH_API_URL"); v != "" {
		c.GraphAPI.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "GEOCODER_KEY"); v != "" {
		c.Geocoder.APIKey = v
	}
	if v := os.Getenv(envPrefix + "GEOCODER_URL"); v != "" {
		c.Geocoder.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(envPrefix + "CACHE_FILE"); v != "" {
		c.Data.CacheFile = v
	}
	if v := os.Getenv(envPrefix + "CITIES"); v != "" {
		c.Pipeline.Cities = splitList(v)
	}
	if v := os.Getenv(envPrefix + "THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTHREADS: %w", envPrefix, err))
		} else {
			c.Pipeline.Threads = n
		}
	}
	if v := os.Getenv(envPrefix + "REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_SECOND: %w", envPrefix, err))
		} else {
			c.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv(envPrefix + "STAR_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSTAR_THRESHOLD: %w", envPrefix, err))
		} else {
			c.Star.Threshold = n
		}
	}
	if v := os.Getenv(envPrefix + "GRANULARITY"); v != "" {
		c.Aggregate.Granularity = v
	}
	if v := os.Getenv(envPrefix + "STATE_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSTATE_FALLBACK: %w", envPrefix, err))
		} else {
			c.Aggregate.StateFallback = b
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "METRICS_TEXTFILE"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".friendgeo.yaml",
		".friendgeo.yml",
		filepath.Join(home, ".config", "friendgeo", "config.yaml"),
		filepath.Join(home, ".config", "friendgeo", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.GraphAPI.BaseURL == "" {
		errs = append(errs, errors.New("graph API base URL is required"))
	}
	if c.GraphAPI.Timeout <= 0 {
		errs = append(errs, errors.New("graph API timeout must be positive"))
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, errors.New("geocoder base URL is required"))
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.RateLimit.BaseDelay <= 0 || c.RateLimit.MaxDelay < c.RateLimit.BaseDelay {
		errs = append(errs, errors.New("backoff delays must be positive with max >= base"))
	}

	if c.Pipeline.Threads < 1 || c.Pipeline.Threads > 10 {
		errs = append(errs, errors.New("threads must be between 1 and 10"))
	}
	if len(c.Pipeline.Cities) == 0 {
		errs = append(errs, errors.New("at least one city must be configured"))
	}
	switch c.Pipeline.FriendMode {
	case "mutual", "union":
	default:
		errs = append(errs, fmt.Errorf("invalid friend mode %q", c.Pipeline.FriendMode))
	}

	if c.Star.Threshold < 0 {
		errs = append(errs, errors.New("star threshold cannot be negative"))
	}
	if c.Star.MaxFetch < 0 || c.Star.SkipAbove < 0 {
		errs = append(errs, errors.New("star fetch limits cannot be negative"))
	}

	switch c.Aggregate.Granularity {
	case "place", "state", "cell":
	default:
		errs = append(errs, fmt.Errorf("invalid granularity %q", c.Aggregate.Granularity))
	}
	if c.Aggregate.CellLevel < 0 || c.Aggregate.CellLevel > 30 {
		errs = append(errs, errors.New("cell level must be between 0 and 30"))
	}

	if c.Data.Dir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		errs = append(errs, errors.New("metrics textfile path is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the operator actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Data.Dir = v
	}
	if v, ok := flags["cache-file"].(string); ok && v != "" {
		c.Data.CacheFile = v
	}
	if v, ok := flags["threads"].(int); ok && v > 0 {
		c.Pipeline.Threads = v
	}
	if v, ok := flags["granularity"].(string); ok && v != "" {
		c.Aggregate.Granularity = v
	}
	if v, ok := flags["state-fallback"].(bool); ok {
		c.Aggregate.StateFallback = v
	}
	if v, ok := flags["friend-mode"].(string); ok && v != "" {
		c.Pipeline.FriendMode = v
	}
	if v, ok := flags["star-threshold"].(int); ok && v > 0 {
		c.Star.Threshold = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".friendgeo.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
