// Package config loads the YAML configuration: data locations, normalizer
// and scorer tables, and the named clean-up profiles.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/summaryqc/internal/cleanup"
	"github.com/TobiSchelling/summaryqc/internal/dataset"
	"github.com/TobiSchelling/summaryqc/internal/logging"
	"github.com/TobiSchelling/summaryqc/internal/quality"
	"github.com/TobiSchelling/summaryqc/internal/rules"
	"github.com/TobiSchelling/summaryqc/internal/textnorm"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// EnvConfigPath names the environment variable consulted by ResolveConfigPath.
const EnvConfigPath = "SUMMARYQC_CONFIG"

// ErrUnknownProfile is the cause of a ProfileError for a name with no entry.
var ErrUnknownProfile = errors.New("unknown profile")

var validate = validator.New()

type Config struct {
	Data       Data                       `yaml:"data"`
	Normalizer Normalizer                 `yaml:"normalizer"`
	Quality    quality.Config             `yaml:"quality"`
	Profiles   map[string]cleanup.Options `yaml:"profiles" validate:"dive"`
	Compare    Compare                    `yaml:"compare"`
	Server     Server                     `yaml:"server"`
	Logging    logging.Options            `yaml:"logging"`
}

type Data struct {
	DataDir       string          `yaml:"data_dir"`
	Columns       dataset.Columns `yaml:"columns"`
	Sources       string          `yaml:"sources"`
	SourceColumns dataset.Columns `yaml:"source_columns"`
	References    string          `yaml:"references"`
	OutputDir     string          `yaml:"output_dir"`
}

type Normalizer struct {
	Duplicates []rules.Entry `yaml:"duplicates" validate:"dive"`
}

type Compare struct {
	Baseline            string   `yaml:"baseline"`
	BaselineLeaderboard float64  `yaml:"baseline_leaderboard" validate:"gte=0"`
	Profiles            []string `yaml:"profiles"`
	Workers             int      `yaml:"workers" validate:"gte=0"`
	TopN                int      `yaml:"top_n" validate:"gte=0"`
	HTML                bool     `yaml:"html"`
}

type Server struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// ProfileError reports a profile that is missing or fails validation.
type ProfileError struct {
	Profile string
	Cause   error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile %q: %v", e.Profile, e.Cause)
}

func (e *ProfileError) Unwrap() error {
	return e.Cause
}

// ConfigDir returns the XDG config directory for summaryqc.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "summaryqc")
}

// DataDir returns the XDG data directory for summaryqc.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "summaryqc")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $SUMMARYQC_CONFIG > ~/.config/summaryqc/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if env := os.Getenv(EnvConfigPath); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", fmt.Errorf("config file from %s not found: %s", EnvConfigPath, env)
		}
		return env, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'summaryqc init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults, and validates
// the result.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Data: Data{
			Columns:       dataset.Columns{ID: "fname", Text: "summary"},
			SourceColumns: dataset.Columns{ID: "fname", Text: "dialogue"},
			OutputDir:     "output",
		},
		Normalizer: Normalizer{Duplicates: append([]rules.Entry(nil), textnorm.DefaultDuplicates...)},
		Quality:    quality.DefaultConfig(),
		Profiles:   map[string]cleanup.Options{"moderate": cleanup.DefaultOptions()},
		Compare:    Compare{Workers: 4, TopN: 10, HTML: true},
		Server:     Server{Port: 8000},
		Logging:    logging.Options{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	for _, name := range cfg.Compare.Profiles {
		if _, ok := cfg.Profiles[name]; !ok {
			return nil, fmt.Errorf("compare: %w", &ProfileError{Profile: name, Cause: ErrUnknownProfile})
		}
	}

	return cfg, nil
}

// Profile returns the named clean-up options.
func (c *Config) Profile(name string) (cleanup.Options, error) {
	opts, ok := c.Profiles[name]
	if !ok {
		return cleanup.Options{}, &ProfileError{Profile: name, Cause: ErrUnknownProfile}
	}
	if err := validate.Struct(opts); err != nil {
		return cleanup.Options{}, &ProfileError{Profile: name, Cause: err}
	}
	return opts, nil
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Data.DataDir != "" {
		return c.Data.DataDir
	}
	return DataDir()
}

// DBPath returns the run history database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "summaryqc.db")
}

// ReportsDir returns the directory for rendered run reports.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.GetDataDir(), "reports")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
