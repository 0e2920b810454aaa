// Package config loads the daemon configuration from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RootConfig binds a logical root name to a directory.
type RootConfig struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Images bool   `json:"images,omitempty"`
}

// JournalConfig selects and configures the mutation journal.
type JournalConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `json:"backend"`

	// DSN is the database path (sqlite) or connection string (postgres).
	DSN string `json:"dsn"`
}

// ArchiveConfig enables archive-before-delete to an S3 bucket.
type ArchiveConfig struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	UseSSL    bool   `json:"use_ssl"`
}

// ConsulConfig enables service registration with a Consul agent.
type ConsulConfig struct {
	Address       string `json:"address"`
	Token         string `json:"token,omitempty"`
	Datacenter    string `json:"datacenter,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	CheckInterval string `json:"check_interval,omitempty"`
}

// InstallConfig configures the install-from-URL endpoint.
type InstallConfig struct {
	Enabled        bool     `json:"enabled"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
}

// Config is the full daemon configuration.
type Config struct {
	Listen     string `json:"listen"`
	LogLevel   string `json:"log_level"`
	LogFile    string `json:"log_file,omitempty"`
	TempPrefix string `json:"temp_prefix,omitempty"`

	Roots   []RootConfig   `json:"roots"`
	Journal *JournalConfig `json:"journal,omitempty"`
	Archive *ArchiveConfig `json:"archive,omitempty"`
	Consul  *ConsulConfig  `json:"consul,omitempty"`
	Install *InstallConfig `json:"install,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   "127.0.0.1:7675",
		LogLevel: "INFO",
	}
}

// Load reads and validates a configuration file. Unset fields keep their
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for contradictions before startup.
func (cfg *Config) Validate() error {
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("config: no roots defined")
	}

	seen := make(map[string]bool, len(cfg.Roots))
	for _, root := range cfg.Roots {
		if root.Name == "" || root.Path == "" {
			return fmt.Errorf("config: root requires both name and path")
		}
		if seen[root.Name] {
			return fmt.Errorf("config: duplicate root %q", root.Name)
		}
		seen[root.Name] = true
	}

	if cfg.Journal != nil {
		switch cfg.Journal.Backend {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("config: unknown journal backend %q", cfg.Journal.Backend)
		}
		if cfg.Journal.DSN == "" {
			return fmt.Errorf("config: journal requires a dsn")
		}
	}

	if cfg.Archive != nil && (cfg.Archive.Endpoint == "" || cfg.Archive.Bucket == "") {
		return fmt.Errorf("config: archive requires endpoint and bucket")
	}

	return nil
}
