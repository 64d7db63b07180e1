package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/focuslens/config.yaml"

// envPrefix namespaces environment overrides, e.g. FOCUSLENS_LOG_LEVEL.
const envPrefix = "focuslens"

// Config holds all focuslens configuration.
type Config struct {
	Location      string              `yaml:"location"`
	Retention     RetentionConfig     `yaml:"retention"`
	Capture       CaptureConfig       `yaml:"capture"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Stats         StatsConfig         `yaml:"stats"`
	Behavior      BehaviorConfig      `yaml:"behavior"`
	Interventions InterventionsConfig `yaml:"interventions"`
	Oracle        OracleConfig        `yaml:"oracle"`
	Storage       StorageConfig       `yaml:"storage"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type RetentionConfig struct {
	Days               int `yaml:"days"`
	SweepIntervalHours int `yaml:"sweep_interval_hours"`
}

type CaptureConfig struct {
	MinVisitSeconds      int      `yaml:"min_visit_seconds"`
	FlushIntervalSeconds int      `yaml:"flush_interval_seconds"`
	ExcludeIncognito     bool     `yaml:"exclude_incognito"`
	DenylistDomains      []string `yaml:"denylist_domains"`
	DenylistRegex        []string `yaml:"denylist_regex"`
}

// Rule maps a URL keyword to a subcategory.
type Rule struct {
	Keyword     string `yaml:"keyword"`
	Subcategory string `yaml:"subcategory"`
}

// ClassifierConfig holds the ordered rule sets. Distraction is checked
// first, then Productive, then Work.
type ClassifierConfig struct {
	Distraction []Rule `yaml:"distraction"`
	Productive  []Rule `yaml:"productive"`
	Work        []Rule `yaml:"work"`
}

type StatsConfig struct {
	TopK            int `yaml:"top_k"`
	StreakThreshold int `yaml:"streak_threshold"`
}

type BehaviorConfig struct {
	WindowSize       int `yaml:"window_size"`
	BreakGapMinutes  int `yaml:"break_gap_minutes"`
	IdleResetMinutes int `yaml:"idle_reset_minutes"`
}

type InterventionsConfig struct {
	Enabled              bool   `yaml:"enabled"`
	CooldownMinutes      int    `yaml:"cooldown_minutes"`
	TickMinutes          int    `yaml:"tick_minutes"`
	DistractionThreshold int    `yaml:"distraction_threshold"`
	FocusThreshold       int    `yaml:"focus_threshold"`
	BreakAfterMinutes    int    `yaml:"break_after_minutes"`
	GoalCheckWindow      int    `yaml:"goal_check_window"`
	QueueSize            int    `yaml:"queue_size"`
	OutcomePolicy        string `yaml:"outcome_policy"`
}

type OracleConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider"`
	URL            string `yaml:"url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AuthToken      string `yaml:"auth_token"`
	MaxRequestSize int    `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// envOverrides lists the settings that may be overridden from the
// environment. Unset variables leave the file value untouched.
type envOverrides struct {
	StoragePath     string `envconfig:"STORAGE_PATH"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
	LogFile         string `envconfig:"LOG_FILE"`
	DaemonPort      int    `envconfig:"DAEMON_PORT"`
	DaemonAuthToken string `envconfig:"DAEMON_AUTH_TOKEN"`
	OracleEnabled   *bool  `envconfig:"ORACLE_ENABLED"`
	OracleURL       string `envconfig:"ORACLE_URL"`
	OracleModel     string `envconfig:"ORACLE_MODEL"`
	Location        string `envconfig:"LOCATION"`
}

// Load reads a YAML config file at path and merges it with defaults, then
// applies environment overrides.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// ExcludeIncognito is always true regardless of config file.
	cfg.Capture.ExcludeIncognito = true

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays FOCUSLENS_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	if env.StoragePath != "" {
		cfg.Storage.Path = env.StoragePath
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.Logging.File = env.LogFile
	}
	if env.DaemonPort != 0 {
		cfg.Daemon.Port = env.DaemonPort
	}
	if env.DaemonAuthToken != "" {
		cfg.Daemon.AuthToken = env.DaemonAuthToken
	}
	if env.OracleEnabled != nil {
		cfg.Oracle.Enabled = *env.OracleEnabled
	}
	if env.OracleURL != "" {
		cfg.Oracle.URL = env.OracleURL
	}
	if env.OracleModel != "" {
		cfg.Oracle.Model = env.OracleModel
	}
	if env.Location != "" {
		cfg.Location = env.Location
	}
	return nil
}

// ResolveLocation returns the timezone used to derive calendar days.
func (c *Config) ResolveLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("loading location %q: %w", c.Location, err)
	}
	return loc, nil
}

// DBPath returns the absolute path of the SQLite database file.
func (c *Config) DBPath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	if filepath.IsAbs(c.Logging.File) || c.Logging.File[0] == '~' {
		return expandPath(c.Logging.File)
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Logging.File), nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := ApplyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return Load(path)
}
