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

// Config holds all configuration options for xhsdl
type Config struct {
	// Browser session used for live extraction
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Incremental collection tuning
	Collect CollectConfig `yaml:"collect" json:"collect"`

	// Batch orchestration tuning
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Post persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Optional event sink
	Publish PublishConfig `yaml:"publish" json:"publish"`

	// Local control API
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig holds browser launch options
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ProxyURL          string        `yaml:"proxy_url" json:"proxy_url"`
	ControlURL        string        `yaml:"control_url" json:"control_url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	StartURL          string        `yaml:"start_url" json:"start_url"`
	Cookie            string        `yaml:"cookie" json:"-"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// CollectConfig holds the collection engine parameters
type CollectConfig struct {
	EmptyCycleThreshold int           `yaml:"empty_cycle_threshold" json:"empty_cycle_threshold"`
	MaxRecords          int           `yaml:"max_records" json:"max_records"`
	ScrollDelayMin      time.Duration `yaml:"scroll_delay_min" json:"scroll_delay_min"`
	ScrollDelayMax      time.Duration `yaml:"scroll_delay_max" json:"scroll_delay_max"`
	ExpandDelayMin      time.Duration `yaml:"expand_delay_min" json:"expand_delay_min"`
	ExpandDelayMax      time.Duration `yaml:"expand_delay_max" json:"expand_delay_max"`
	EndMarkerSelector   string        `yaml:"end_marker_selector" json:"end_marker_selector"`
}

// BatchConfig holds the batch orchestrator parameters
type BatchConfig struct {
	ReadyAttempts int           `yaml:"ready_attempts" json:"ready_attempts"`
	ReadyInterval time.Duration `yaml:"ready_interval" json:"ready_interval"`
	ItemPause     time.Duration `yaml:"item_pause" json:"item_pause"`
	SkipComments  bool          `yaml:"skip_comments" json:"skip_comments"`
}

// DownloadConfig holds media download configuration
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	Workers       int           `yaml:"workers" json:"workers"`
	ImagePause    time.Duration `yaml:"image_pause" json:"image_pause"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	SkipVideos    bool          `yaml:"skip_videos" json:"skip_videos"`
	AssetHosts    []string      `yaml:"asset_hosts" json:"asset_hosts"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// StorageConfig selects the post store backend
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

// PublishConfig configures the NATS sink. An empty URL disables it.
type PublishConfig struct {
	NATSURL string `yaml:"nats_url" json:"nats_url"`
	Subject string `yaml:"subject" json:"subject"`
}

// APIConfig configures the local control API
type APIConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultAssetHosts lists host fragments accepted for media URLs
var DefaultAssetHosts = []string{"xhscdn.com", "sns-img", "sns-webpic"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			StartURL:          "https://www.xiaohongshu.com/explore",
			NavigationTimeout: 30 * time.Second,
		},
		Collect: CollectConfig{
			EmptyCycleThreshold: 5,
			MaxRecords:          200,
			ScrollDelayMin:      2000 * time.Millisecond,
			ScrollDelayMax:      4000 * time.Millisecond,
			ExpandDelayMin:      1500 * time.Millisecond,
			ExpandDelayMax:      2500 * time.Millisecond,
			EndMarkerSelector:   ".end-container",
		},
		Batch: BatchConfig{
			ReadyAttempts: 10,
			ReadyInterval: 500 * time.Millisecond,
			ItemPause:     2500 * time.Millisecond,
		},
		Download: DownloadConfig{
			Timeout:       15 * time.Second,
			Workers:       1,
			ImagePause:    300 * time.Millisecond,
			RetryAttempts: 1,
			AssetHosts:    append([]string(nil), DefaultAssetHosts...),
		},
		Output: OutputConfig{
			Directory: "./downloads",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./downloads/xhsdl.db",
		},
		Publish: PublishConfig{
			Subject: "xhsdl.posts",
		},
		API: APIConfig{
			Addr: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("XHSDL_COOKIE"); v != "" {
		c.Browser.Cookie = v
	}
	if v := os.Getenv("XHSDL_PROXY"); v != "" {
		c.Browser.ProxyURL = v
	}
	if v := os.Getenv("XHSDL_CONTROL_URL"); v != "" {
		c.Browser.ControlURL = v
	}
	if v := os.Getenv("XHSDL_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("XHSDL_HEADLESS: %w", err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("XHSDL_MAX_RECORDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("XHSDL_MAX_RECORDS: %w", err))
		} else {
			c.Collect.MaxRecords = n
		}
	}
	if v := os.Getenv("XHSDL_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("XHSDL_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("XHSDL_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("XHSDL_NATS_URL"); v != "" {
		c.Publish.NATSURL = v
	}
	if v := os.Getenv("XHSDL_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("XHSDL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
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
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".xhsdl.yaml",
		".xhsdl.yml",
		filepath.Join(home, ".config", "xhsdl", "config.yaml"),
		filepath.Join(home, ".xhsdl.yaml"),
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

	if c.Collect.EmptyCycleThreshold <= 0 {
		errs = append(errs, errors.New("empty cycle threshold must be positive"))
	}
	if c.Collect.MaxRecords <= 0 {
		errs = append(errs, errors.New("max records must be positive"))
	}
	if c.Collect.ScrollDelayMin < 0 || c.Collect.ScrollDelayMax < c.Collect.ScrollDelayMin {
		errs = append(errs, errors.New("scroll delay range is invalid"))
	}
	if c.Collect.ExpandDelayMin < 0 || c.Collect.ExpandDelayMax < c.Collect.ExpandDelayMin {
		errs = append(errs, errors.New("expand delay range is invalid"))
	}

	if c.Batch.ReadyAttempts <= 0 {
		errs = append(errs, errors.New("ready attempts must be positive"))
	}
	if c.Batch.ReadyInterval <= 0 {
		errs = append(errs, errors.New("ready interval must be positive"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.Workers <= 0 || c.Download.Workers > 8 {
		errs = append(errs, errors.New("download workers must be between 1 and 8"))
	}
	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	switch c.Storage.Driver {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage path is required"))
	}

	if c.Publish.NATSURL != "" && c.Publish.Subject == "" {
		errs = append(errs, errors.New("publish subject is required when nats_url is set"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["proxy"].(string); ok && v != "" {
		c.Browser.ProxyURL = v
	}
	if v, ok := flags["control-url"].(string); ok && v != "" {
		c.Browser.ControlURL = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Browser.Cookie = v
	}
	if v, ok := flags["threshold"].(int); ok && v > 0 {
		c.Collect.EmptyCycleThreshold = v
	}
	if v, ok := flags["max-records"].(int); ok && v > 0 {
		c.Collect.MaxRecords = v
	}
	if v, ok := flags["skip-comments"].(bool); ok {
		c.Batch.SkipComments = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["skip-videos"].(bool); ok {
		c.Download.SkipVideos = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["storage-driver"].(string); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := flags["storage-path"].(string); ok && v != "" {
		c.Storage.Path = v
	}
	if v, ok := flags["nats-url"].(string); ok && v != "" {
		c.Publish.NATSURL = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.API.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (including .env files) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".xhsdl.env"))

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
