package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "ARXIV_HARVESTER_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	outputDirEnv   = "OUTPUT_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Arxiv      ArxivConfig      `yaml:"arxiv"`
	Output     OutputConfig     `yaml:"output"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Database   DatabaseConfig   `yaml:"database"`
	Papers     []string         `yaml:"papers"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ArxivConfig describes the upstream service endpoints and retry policy.
type ArxivConfig struct {
	APIURL         string        `yaml:"apiUrl"`
	SourceURL      string        `yaml:"sourceUrl"`
	PDFURL         string        `yaml:"pdfUrl"`
	UserAgent      string        `yaml:"userAgent"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
}

// OutputConfig decides where raw artifacts and extractions land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ExtractionConfig bounds what a single source archive may expand to.
type ExtractionConfig struct {
	MaxFileSizeBytes  int64 `yaml:"maxFileSizeBytes"`
	MaxTotalSizeBytes int64 `yaml:"maxTotalSizeBytes"`
}

// DatabaseConfig describes the optional Postgres acquisition history.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Arxiv.APIURL != "" {
		base.Arxiv.APIURL = override.Arxiv.APIURL
	}
	if override.Arxiv.SourceURL != "" {
		base.Arxiv.SourceURL = override.Arxiv.SourceURL
	}
	if override.Arxiv.PDFURL != "" {
		base.Arxiv.PDFURL = override.Arxiv.PDFURL
	}
	if override.Arxiv.UserAgent != "" {
		base.Arxiv.UserAgent = override.Arxiv.UserAgent
	}
	if override.Arxiv.RequestTimeout > 0 {
		base.Arxiv.RequestTimeout = override.Arxiv.RequestTimeout
	}
	if override.Arxiv.MaxRetries > 0 {
		base.Arxiv.MaxRetries = override.Arxiv.MaxRetries
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}

	if override.Extraction.MaxFileSizeBytes > 0 {
		base.Extraction.MaxFileSizeBytes = override.Extraction.MaxFileSizeBytes
	}
	if override.Extraction.MaxTotalSizeBytes > 0 {
		base.Extraction.MaxTotalSizeBytes = override.Extraction.MaxTotalSizeBytes
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if len(override.Papers) > 0 {
		base.Papers = override.Papers
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Arxiv: ArxivConfig{
			APIURL:         "https://export.arxiv.org/api/query",
			SourceURL:      "https://arxiv.org/src",
			PDFURL:         "https://arxiv.org/pdf",
			UserAgent:      "ArxivHarvester/1.0",
			RequestTimeout: 60 * time.Second,
			MaxRetries:     3,
		},
		Output: OutputConfig{Dir: "./data/raw"},
		Extraction: ExtractionConfig{
			MaxFileSizeBytes:  64 * 1024 * 1024,
			MaxTotalSizeBytes: 512 * 1024 * 1024,
		},
		Database: DatabaseConfig{DSN: ""},
	}
}
