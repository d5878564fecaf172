package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
)

// Image directory sources
const (
	SourceJSON   = "json"
	SourceSQLite = "sqlite"
)

// Match index stores
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the service configuration, loaded from defaults, an optional
// YAML file and DEDUPE_* environment variables
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Index      IndexConfig      `yaml:"index"`
	Features   FeaturesConfig   `yaml:"features"`
	Build      BuildConfig      `yaml:"build"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"` // "*" allows every origin
}

// DataConfig locates the user and image directories
type DataConfig struct {
	Users       string `yaml:"users"`        // user directory JSON file
	Images      string `yaml:"images"`       // image directory JSON file, used when ImageSource is json
	ImageSource string `yaml:"image_source"` // json or sqlite
	Database    string `yaml:"database"`     // SQLite file for the sqlite source and store
}

// IndexConfig selects where the match index is persisted. Fingerprint
// rebuilds a persisted index once the image directory changes; with it off,
// the presence of a persisted index is the only hit signal.
type IndexConfig struct {
	Store       string `yaml:"store"` // file or sqlite
	Path        string `yaml:"path"`  // match table file for the file store
	Fingerprint bool   `yaml:"fingerprint"`
}

// FeaturesConfig selects the feature detector
type FeaturesConfig struct {
	Algorithm string `yaml:"algorithm"` // sift or orb
}

// BuildConfig tunes the index build
type BuildConfig struct {
	Workers int `yaml:"workers"` // 0 picks a value from the CPU count
}

// DuplicatesConfig holds the flagging threshold
type DuplicatesConfig struct {
	Threshold int `yaml:"threshold"`
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			CORSOrigins: []string{"*"},
		},
		Data: DataConfig{
			Users:       "users.json",
			Images:      "images.json",
			ImageSource: SourceJSON,
			Database:    DefaultDatabasePath(),
		},
		Index: IndexConfig{
			Store:       StoreFile,
			Path:        "matches.json",
			Fingerprint: true,
		},
		Features: FeaturesConfig{
			Algorithm: "sift",
		},
		Duplicates: DuplicatesConfig{
			Threshold: duplicates.DefaultThreshold,
		},
	}
}

// DefaultDatabasePath returns the default path for the database file
func DefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "dedupe.db"
	}
	return filepath.Join(filepath.Dir(exePath), "dedupe.db")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then DEDUPE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("DEDUPE_HOST", &c.Server.Host)
	c.Server.Port = envInt("DEDUPE_PORT", c.Server.Port)
	if s := os.Getenv("DEDUPE_CORS_ORIGINS"); s != "" {
		c.Server.CORSOrigins = splitList(s)
	}

	envString("DEDUPE_USERS", &c.Data.Users)
	envString("DEDUPE_IMAGES", &c.Data.Images)
	envString("DEDUPE_IMAGE_SOURCE", &c.Data.ImageSource)
	envString("DEDUPE_DATABASE", &c.Data.Database)

	envString("DEDUPE_INDEX_STORE", &c.Index.Store)
	envString("DEDUPE_INDEX_PATH", &c.Index.Path)
	if s := os.Getenv("DEDUPE_INDEX_FINGERPRINT"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid DEDUPE_INDEX_FINGERPRINT '%s': %w", s, err)
		}
		c.Index.Fingerprint = b
	}

	envString("DEDUPE_ALGORITHM", &c.Features.Algorithm)
	c.Build.Workers = envInt("DEDUPE_WORKERS", c.Build.Workers)

	if s := os.Getenv("DEDUPE_THRESHOLD"); s != "" {
		threshold, err := ParseThreshold(s)
		if err != nil {
			return err
		}
		c.Duplicates.Threshold = threshold
	}
	return nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	switch strings.ToLower(c.Features.Algorithm) {
	case "sift", "orb":
	default:
		return fmt.Errorf("unknown features.algorithm '%s' (want sift or orb)", c.Features.Algorithm)
	}

	switch c.Data.ImageSource {
	case SourceJSON:
		if c.Data.Images == "" {
			return errors.New("data.images is required for the json image source")
		}
	case SourceSQLite:
	default:
		return fmt.Errorf("unknown data.image_source '%s' (want json or sqlite)", c.Data.ImageSource)
	}

	switch c.Index.Store {
	case StoreFile:
		if c.Index.Path == "" {
			return errors.New("index.path is required for the file store")
		}
	case StoreSQLite:
	default:
		return fmt.Errorf("unknown index.store '%s' (want file or sqlite)", c.Index.Store)
	}

	if c.UsesDatabase() && c.Data.Database == "" {
		return errors.New("data.database is required when sqlite is used")
	}

	if c.Data.Users == "" {
		return errors.New("data.users is required")
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers must not be negative, got %d", c.Build.Workers)
	}
	if c.Duplicates.Threshold < 0 {
		return fmt.Errorf("duplicates.threshold must not be negative, got %d", c.Duplicates.Threshold)
	}

	return nil
}

// UsesDatabase reports whether any component is backed by SQLite
func (c *Config) UsesDatabase() bool {
	return c.Data.ImageSource == SourceSQLite || c.Index.Store == StoreSQLite
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseThreshold parses and validates a duplicate threshold
func ParseThreshold(thresholdStr string) (int, error) {
	threshold, err := strconv.Atoi(strings.TrimSpace(thresholdStr))
	if err != nil || threshold < 0 {
		return 0, fmt.Errorf("invalid threshold value '%s': want a non-negative integer", thresholdStr)
	}
	return threshold, nil
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
