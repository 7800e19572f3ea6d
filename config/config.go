package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Cexintel  AppConfig       `yaml:"cexintel"`
	Collector CollectorConfig `yaml:"collector"`
	Filter    FilterConfig    `yaml:"filter"`
	Store     StoreConfig     `yaml:"store"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type CollectorConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	Tools             []string      `yaml:"tools"`
	Exchanges         []string      `yaml:"exchanges"`
	Tier1Count        int           `yaml:"tier1_count"`
	BatchSize         int           `yaml:"batch_size"`
	ExposureSweep     bool          `yaml:"exposure_sweep"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
}

type FilterConfig struct {
	GenericDomains []string `yaml:"generic_domains"`
}

type StoreConfig struct {
	Root       string `yaml:"root"`
	MirrorDir  string `yaml:"mirror_dir"`
	ArchiveDir string `yaml:"archive_dir"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type DashboardConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Address      string `yaml:"address"`
	WindowDays   int    `yaml:"window_days"`
	LookbackDays int    `yaml:"lookback_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Collector: CollectorConfig{
			BaseURL:           "https://api.x.ai/v1/responses",
			Model:             "grok-4-1-fast-reasoning",
			Timeout:           90 * time.Second,
			Tools:             []string{"web_search", "x_search"},
			BatchSize:         1,
			RequestsPerSecond: 1,
			BurstSize:         1,
		},
		Store: StoreConfig{
			Root: "data/intelligence",
		},
		Dashboard: DashboardConfig{
			WindowDays:   30,
			LookbackDays: 7,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override secrets from environment variables if available
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		config.Collector.APIKey = strings.TrimSpace(v)
	}
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Cexintel.Name == "" {
		return fmt.Errorf("cexintel.name is required")
	}

	if cfg.Cexintel.Version == "" {
		return fmt.Errorf("cexintel.version is required")
	}

	if len(cfg.Collector.Exchanges) == 0 {
		return fmt.Errorf("collector.exchanges must not be empty")
	}

	if cfg.Collector.BatchSize <= 0 {
		return fmt.Errorf("collector.batch_size must be greater than 0")
	}

	if cfg.Collector.Timeout <= 0 {
		return fmt.Errorf("collector.timeout must be greater than 0")
	}

	if cfg.Collector.Tier1Count < 0 || cfg.Collector.Tier1Count > len(cfg.Collector.Exchanges) {
		return fmt.Errorf("collector.tier1_count must be between 0 and len(collector.exchanges)")
	}

	if cfg.Store.Root == "" {
		return fmt.Errorf("store.root is required")
	}

	if cfg.Dashboard.WindowDays <= 0 {
		return fmt.Errorf("dashboard.window_days must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

// Tier1 returns the leading slice of the exchange list treated as
// tier-1 venues. A zero count means the whole list.
func (c CollectorConfig) Tier1() []string {
	if c.Tier1Count <= 0 || c.Tier1Count > len(c.Exchanges) {
		return c.Exchanges
	}
	return c.Exchanges[:c.Tier1Count]
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
