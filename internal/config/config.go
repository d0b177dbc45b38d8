// Package config provides configuration management for clipdex.
// Configuration is loaded from environment variables (optionally seeded from
// a .env file) with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8690
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipdex"

	// Environment variable names
	EnvPort     = "CLIPDEX_PORT"
	EnvLogLevel = "CLIPDEX_LOG_LEVEL"
	EnvDataDir  = "CLIPDEX_DATA_DIR"
	EnvAPIToken = "CLIPDEX_API_TOKEN"

	// Remote service environment variable names
	EnvAPIKey    = "CLIPDEX_API_KEY"
	EnvBaseURL   = "CLIPDEX_BASE_URL"
	EnvIndexName = "CLIPDEX_INDEX_NAME"
	EnvIndexID   = "CLIPDEX_INDEX_ID"
	EnvModelName = "CLIPDEX_MODEL_NAME"

	// Segmentation environment variable names
	EnvClipDuration    = "CLIPDEX_CLIP_DURATION"
	EnvLastClipPolicy  = "CLIPDEX_LAST_CLIP_POLICY"
	EnvIncludeOriginal = "CLIPDEX_INCLUDE_ORIGINAL"

	// Database filename
	DBFilename = "clipdex.db"

	// Remote service defaults
	DefaultBaseURL   = "https://api.twelvelabs.io/v1.3"
	DefaultModelName = "pegasus1.2"

	// Segmentation defaults
	DefaultClipDuration   = 30
	DefaultLastClipPolicy = "overlap_previous"

	// Polling defaults (seconds)
	DefaultPollInterval  = 10
	DefaultRetryBase     = 5
	DefaultRetryMax      = 60
	DefaultHTTPTimeoutS  = 120
	DefaultShutdownGrace = 10 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	APIToken() string

	APIKey() string
	BaseURL() string
	IndexName() string
	IndexID() string
	ModelName() string

	ClipDuration() int
	LastClipPolicy() string
	IncludeOriginal() bool

	PollInterval() time.Duration
	RetryBaseDelay() time.Duration
	RetryMaxDelay() time.Duration
	HTTPTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	apiToken string

	apiKey    string
	baseURL   string
	indexName string
	indexID   string
	modelName string

	clipDuration    int
	lastClipPolicy  string
	includeOriginal bool
}

// New creates a new EnvConfig with defaults and environment variable
// overrides. A .env file in the working directory is loaded first when
// present; real environment variables win over .env entries.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		baseURL:        DefaultBaseURL,
		modelName:      DefaultModelName,
		clipDuration:   DefaultClipDuration,
		lastClipPolicy: DefaultLastClipPolicy,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.apiToken = os.Getenv(EnvAPIToken)
	cfg.apiKey = os.Getenv(EnvAPIKey)

	if bu := os.Getenv(EnvBaseURL); bu != "" {
		cfg.baseURL = bu
	}

	cfg.indexName = os.Getenv(EnvIndexName)
	cfg.indexID = os.Getenv(EnvIndexID)

	if mn := os.Getenv(EnvModelName); mn != "" {
		cfg.modelName = mn
	}

	if cd := os.Getenv(EnvClipDuration); cd != "" {
		seconds, err := strconv.Atoi(cd)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvClipDuration, err)
		}
		if seconds < 1 {
			return nil, fmt.Errorf("invalid %s: clip duration must be at least 1 second", EnvClipDuration)
		}
		cfg.clipDuration = seconds
	}

	if lp := os.Getenv(EnvLastClipPolicy); lp != "" {
		cfg.lastClipPolicy = lp
	}

	if io := os.Getenv(EnvIncludeOriginal); io != "" {
		include, err := strconv.ParseBool(io)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvIncludeOriginal, err)
		}
		cfg.includeOriginal = include
	}

	return cfg, nil
}

// Port returns the local HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// APIToken returns the bearer token protecting the local status API.
// Empty means a token is generated at startup.
func (c *EnvConfig) APIToken() string {
	return c.apiToken
}

// APIKey returns the remote video-intelligence service API key
func (c *EnvConfig) APIKey() string {
	return c.apiKey
}

// BaseURL returns the remote service base URL
func (c *EnvConfig) BaseURL() string {
	return c.baseURL
}

// IndexName returns the target index name, if configured
func (c *EnvConfig) IndexName() string {
	return c.indexName
}

// IndexID returns the target index id, if configured
func (c *EnvConfig) IndexID() string {
	return c.indexID
}

// ModelName returns the indexing model used when creating indexes
func (c *EnvConfig) ModelName() string {
	return c.modelName
}

// ClipDuration returns the clip duration in seconds
func (c *EnvConfig) ClipDuration() int {
	return c.clipDuration
}

// LastClipPolicy returns the configured last-clip handling policy
func (c *EnvConfig) LastClipPolicy() string {
	return c.lastClipPolicy
}

// IncludeOriginal reports whether the whole source video is indexed
// alongside its clips
func (c *EnvConfig) IncludeOriginal() bool {
	return c.includeOriginal
}

func (c *EnvConfig) PollInterval() time.Duration {
	return DefaultPollInterval * time.Second
}

func (c *EnvConfig) RetryBaseDelay() time.Duration {
	return DefaultRetryBase * time.Second
}

func (c *EnvConfig) RetryMaxDelay() time.Duration {
	return DefaultRetryMax * time.Second
}

func (c *EnvConfig) HTTPTimeout() time.Duration {
	return DefaultHTTPTimeoutS * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
