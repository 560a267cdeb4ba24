package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	BundlesFile    string   `json:"bundles_file" yaml:"bundles_file" toml:"bundles_file"`
	NumRetries     int      `json:"num_retries" yaml:"num_retries" toml:"num_retries"`
	FetchTimeoutMS int      `json:"fetch_timeout_ms" yaml:"fetch_timeout_ms" toml:"fetch_timeout_ms"`
	BlockedHosts   []string `json:"blocked_hosts" yaml:"blocked_hosts" toml:"blocked_hosts"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	WatchBundles   bool     `json:"watch_bundles" yaml:"watch_bundles" toml:"watch_bundles"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
