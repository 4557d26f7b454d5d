// Package config handles project configuration: defaults, the YAML project
// file and environment overrides.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the project file looked up when no path is given.
const DefaultFile = "dismap.yaml"

// Load modes for the flat-file loader.
const (
	LoadModeReplace = "replace"
	LoadModeAppend  = "append"
)

// Defaults applied when the project file and environment leave them unset.
const (
	DefaultProjectFilter   = "_IDW"
	DefaultCompanionSuffix = "_Sample_Locations"
)

// Config is passed explicitly to every component. Nothing in the pipeline
// reads ambient process state after loading.
type Config struct {
	ProjectName string `yaml:"project"`
	StorePath   string `yaml:"store"`        // DuckDB file holding the entities
	CSVDataDir  string `yaml:"csv_data_dir"` // default: "CSV Data" sibling of the store
	ExportDir   string `yaml:"export_dir"`   // default: <CSVDataDir>/Export
	JournalPath string `yaml:"journal"`      // SQLite run journal

	JournalEnabled bool `yaml:"journal_enabled"`

	// ProjectFilter selects the canonical table names the reconciliation
	// driver inspects (suffix match, e.g. "_IDW").
	ProjectFilter   string `yaml:"project_filter"`
	CompanionSuffix string `yaml:"companion_suffix"`
	LoadMode        string `yaml:"load_mode"`
	LogLevel        string `yaml:"log_level"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store path is required (set 'store' in %s or DISMAP_STORE)", DefaultFile)
	}
	if c.LoadMode != LoadModeReplace && c.LoadMode != LoadModeAppend {
		return fmt.Errorf("invalid load mode %q: must be %q or %q", c.LoadMode, LoadModeReplace, LoadModeAppend)
	}
	return nil
}

// Overrides carries command-line values. Empty fields leave the loaded
// value untouched.
type Overrides struct {
	StorePath     string
	CSVDataDir    string
	ProjectFilter string
	LoadMode      string
	LogLevel      string
	NoJournal     bool
}

// Load builds a Config from defaults, the YAML file at path, the environment
// and flags, in increasing precedence. An empty path falls back to
// DefaultFile, which may be absent.
func Load(path string, flags Overrides) (*Config, error) {
	cfg := &Config{JournalEnabled: true}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.mergeEnv()
	cfg.mergeFlags(flags)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// Relative paths in the file are relative to the file itself.
	base := filepath.Dir(path)
	for _, p := range []*string{&c.StorePath, &c.CSVDataDir, &c.ExportDir, &c.JournalPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return nil
}

func (c *Config) mergeEnv() {
	envString("DISMAP_PROJECT", &c.ProjectName)
	envString("DISMAP_STORE", &c.StorePath)
	envString("DISMAP_CSV_DATA_DIR", &c.CSVDataDir)
	envString("DISMAP_EXPORT_DIR", &c.ExportDir)
	envString("DISMAP_JOURNAL", &c.JournalPath)
	envString("DISMAP_PROJECT_FILTER", &c.ProjectFilter)
	envString("DISMAP_LOAD_MODE", &c.LoadMode)
	envString("LOG_LEVEL", &c.LogLevel)
	c.JournalEnabled = parseBoolEnvDefault("DISMAP_JOURNAL_ENABLED", c.JournalEnabled)
}

func (c *Config) mergeFlags(o Overrides) {
	for dst, v := range map[*string]string{
		&c.StorePath:     o.StorePath,
		&c.CSVDataDir:    o.CSVDataDir,
		&c.ProjectFilter: o.ProjectFilter,
		&c.LoadMode:      o.LoadMode,
		&c.LogLevel:      o.LogLevel,
	} {
		if v != "" {
			*dst = v
		}
	}
	if o.NoJournal {
		c.JournalEnabled = false
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LoadMode == "" {
		c.LoadMode = LoadModeReplace
	}
	c.LoadMode = strings.ToLower(c.LoadMode)
	if c.CompanionSuffix == "" {
		c.CompanionSuffix = DefaultCompanionSuffix
	}
	if c.ProjectFilter == "" {
		c.ProjectFilter = DefaultProjectFilter
		c.Warnings = append(c.Warnings, fmt.Sprintf("project_filter not set, using default %q", DefaultProjectFilter))
	}
	if c.StorePath == "" {
		return
	}
	if c.CSVDataDir == "" {
		c.CSVDataDir = filepath.Join(filepath.Dir(c.StorePath), "CSV Data")
	}
	if c.ExportDir == "" {
		c.ExportDir = filepath.Join(c.CSVDataDir, "Export")
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(filepath.Dir(c.StorePath), "dismap_runs.sqlite")
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
