package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every key the pipeline core recognizes, validated once at
// startup. Presentation keys (verbosity, CSV export, separator) belong to the
// report renderer and live under Report.
type Config struct {
	Query      string `yaml:"query"`
	Limit      int    `yaml:"limit"`
	Workers    int    `yaml:"workers"`
	SampleFile string `yaml:"sample_file"`

	DownloadSamples  bool `yaml:"download_samples"`
	DownloadBehavior bool `yaml:"download_behavior"`

	DownloadDir string `yaml:"download_dir"`
	SamplesDir  string `yaml:"samples_dir"`
	ReportsDir  string `yaml:"reports_dir"`
	InfoDir     string `yaml:"info_dir"`
	ArtifactLog string `yaml:"artifact_log"`
	LogFile     string `yaml:"log_file"`

	Catalog CatalogConfig `yaml:"catalog"`
	Report  ReportConfig  `yaml:"report"`
}

// CatalogConfig configures the remote catalog client.
type CatalogConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// ReportConfig holds renderer-owned presentation settings.
type ReportConfig struct {
	Verbose   int    `yaml:"verbose"`
	CSV       bool   `yaml:"csv"`
	Separator string `yaml:"separator"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Limit:            20,
		Workers:          5,
		DownloadBehavior: true,
		ArtifactLog:      "artifacts.txt",
		LogFile:          "log.txt",
		Report:           ReportConfig{Separator: ";"},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults derives the directory layout from the download directory for
// any sub-directory left unset.
func (c *Config) ApplyDefaults() {
	if c.Limit == 0 {
		c.Limit = 20
	}
	if c.Workers == 0 {
		c.Workers = 5
	}
	if c.ArtifactLog == "" {
		c.ArtifactLog = "artifacts.txt"
	}
	if c.Report.Separator == "" {
		c.Report.Separator = ";"
	}
	if c.DownloadDir != "" {
		if c.SamplesDir == "" {
			c.SamplesDir = filepath.Join(c.DownloadDir, "samples")
		}
		if c.ReportsDir == "" {
			c.ReportsDir = filepath.Join(c.DownloadDir, "reports")
		}
		if c.InfoDir == "" {
			c.InfoDir = filepath.Join(c.DownloadDir, "info")
		}
	}
}

// Validate checks configuration.
func (c *Config) Validate() error {
	if c.Query == "" && c.SampleFile == "" {
		return errors.New("config: either a search query or a sample file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.Limit < 1 {
		return fmt.Errorf("config: limit must be positive, got %d", c.Limit)
	}
	if c.DownloadDir == "" {
		return errors.New("config: download directory is required")
	}
	if c.Catalog.APIKey == "" {
		return errors.New("config: catalog API key is required")
	}
	return nil
}

// EnsureDirectories creates the download directory layout.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DownloadDir, c.SamplesDir, c.ReportsDir, c.InfoDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("config: creating directory %s: %w", dir, err)
		}
	}
	return nil
}
