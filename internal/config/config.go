// Package config loads brickhunt settings. Values come from built-in defaults,
// then an optional YAML file, then environment variables. Command-line flags
// are applied on top by the commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvServer    = "BRICKHUNT_SERVER"
	EnvAddr      = "BRICKHUNT_ADDR"
	EnvDB        = "BRICKHUNT_DB"
	EnvPublicURL = "BRICKHUNT_PUBLIC_URL"
	EnvLogLevel  = "BRICKHUNT_LOG_LEVEL"
	EnvLogFile   = "BRICKHUNT_LOG_FILE"
	EnvAPIKey    = "REBRICKABLE_API_KEY"
	EnvAPIURL    = "REBRICKABLE_API_URL"
)

// Config holds every setting of the client and server commands.
type Config struct {
	// Server is the base URL the client commands talk to.
	Server string `yaml:"server"`

	// Addr is the listen address of `serve`.
	Addr string `yaml:"addr"`
	// DBPath is the SQLite database file of `serve`.
	DBPath string `yaml:"db"`
	// PublicURL is the base URL used in share links. Defaults to http://<Addr>.
	PublicURL string `yaml:"public_url"`

	// APIKey is the Rebrickable API key.
	APIKey string `yaml:"api_key"`
	// APIURL overrides the Rebrickable API base URL.
	APIURL string `yaml:"api_url"`

	LogLevel string `yaml:"log_level"`
	// LogFile receives TUI logs; the terminal is owned by the interface.
	LogFile string `yaml:"log_file"`

	// RecentsPath is the recent-sessions cache file.
	RecentsPath string `yaml:"recents"`
}

// Default returns the built-in settings.
func Default() Config {
	dir := Dir()
	return Config{
		Server:      "http://localhost:8787",
		Addr:        "localhost:8787",
		DBPath:      filepath.Join(dir, "brickhunt.db"),
		LogLevel:    "info",
		LogFile:     filepath.Join(dir, "brickhunt.log"),
		RecentsPath: filepath.Join(dir, "recents.yaml"),
	}
}

// Dir returns the brickhunt directory under the user config directory.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "brickhunt")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path over the defaults, then applies the
// environment. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://" + cfg.Addr
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		EnvServer:    &c.Server,
		EnvAddr:      &c.Addr,
		EnvDB:        &c.DBPath,
		EnvPublicURL: &c.PublicURL,
		EnvLogLevel:  &c.LogLevel,
		EnvLogFile:   &c.LogFile,
		EnvAPIKey:    &c.APIKey,
		EnvAPIURL:    &c.APIURL,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}
