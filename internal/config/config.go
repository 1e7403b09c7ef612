// Package config loads and validates the taskrelay TOML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendGoroutine = "goroutine"
	BackendTemporal  = "temporal"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General  General  `toml:"general"`
	Log      Log      `toml:"log"`
	API      API      `toml:"api"`
	Executor Executor `toml:"executor"`
	Poll     Poll     `toml:"poll"`
	Callback Callback `toml:"callback"`
	Runner   Runner   `toml:"runner"`
	Temporal Temporal `toml:"temporal"`
}

type General struct {
	LogLevel      string   `toml:"log_level"`
	ShutdownGrace Duration `toml:"shutdown_grace"` // wait for in-flight relays on SIGTERM
}

// Log configures an optional rotating log file in addition to stderr.
type Log struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type API struct {
	Bind          string   `toml:"bind"` // overrides port when set, e.g. "127.0.0.1:3000"
	Port          int      `toml:"port"`
	SigningSecret string   `toml:"signing_secret"`
	MaxRequestAge Duration `toml:"max_request_age"`
}

type Executor struct {
	URL              string   `toml:"url"`
	Model            string   `toml:"model"`
	WorkingDirectory string   `toml:"working_directory"`
	RequestTimeout   Duration `toml:"request_timeout"`
}

type Poll struct {
	Interval Duration `toml:"interval"`
	Timeout  Duration `toml:"timeout"`
}

type Callback struct {
	Timeout Duration `toml:"timeout"`
}

type Runner struct {
	Backend string `toml:"backend"` // "goroutine" or "temporal"
}

type Temporal struct {
	HostPort  string `toml:"host_port"`
	Namespace string `toml:"namespace"`
	TaskQueue string `toml:"task_queue"`
}

// ListenAddr returns the address the API server binds to.
func (c *Config) ListenAddr() string {
	if bind := strings.TrimSpace(c.API.Bind); bind != "" {
		return bind
	}
	return ":" + strconv.Itoa(c.API.Port)
}

// Load reads a taskrelay TOML configuration file, applies defaults and
// environment overrides, and validates the result. An empty path skips the
// file and yields a config built from defaults and the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload re-reads config from disk. It is a thin alias used by signal handlers.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// applyEnv overlays the environment variables the relay has always honoured.
// Environment values win over the file.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("GOOSE_SERVER_URL")); v != "" {
		cfg.Executor.URL = v
	}
	if v := strings.TrimSpace(getenv("EXECUTOR_URL")); v != "" {
		cfg.Executor.URL = v
	}
	if v := strings.TrimSpace(getenv("EXECUTOR_MODEL")); v != "" {
		cfg.Executor.Model = v
	}
	if v := getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.API.SigningSecret = v
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.API.Port = port
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		cfg.General.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("RELAY_BACKEND")); v != "" {
		cfg.Runner.Backend = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.ShutdownGrace.Duration == 0 {
		cfg.General.ShutdownGrace.Duration = 30 * time.Second
	}

	// Log rotation only matters when a file is configured.
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 14
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 3000
	}
	if cfg.API.MaxRequestAge.Duration == 0 {
		cfg.API.MaxRequestAge.Duration = 5 * time.Minute
	}

	if cfg.Executor.URL == "" {
		cfg.Executor.URL = "http://localhost:8765"
	}
	cfg.Executor.URL = strings.TrimRight(cfg.Executor.URL, "/")
	if cfg.Executor.Model == "" {
		cfg.Executor.Model = "bedrock-claude-opus-4-6"
	}
	if cfg.Executor.WorkingDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Executor.WorkingDirectory = wd
		}
	} else {
		cfg.Executor.WorkingDirectory = ExpandHome(cfg.Executor.WorkingDirectory)
	}
	if cfg.Executor.RequestTimeout.Duration == 0 {
		cfg.Executor.RequestTimeout.Duration = 30 * time.Second
	}

	if cfg.Poll.Interval.Duration == 0 {
		cfg.Poll.Interval.Duration = 2 * time.Second
	}
	if cfg.Poll.Timeout.Duration == 0 {
		cfg.Poll.Timeout.Duration = 600 * time.Second
	}

	if cfg.Callback.Timeout.Duration == 0 {
		cfg.Callback.Timeout.Duration = 10 * time.Second
	}

	if cfg.Runner.Backend == "" {
		cfg.Runner.Backend = BackendGoroutine
	}
	cfg.Runner.Backend = strings.ToLower(strings.TrimSpace(cfg.Runner.Backend))

	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "127.0.0.1:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "taskrelay-queue"
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Executor.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("executor.url %q must be an absolute http(s) url", cfg.Executor.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("executor.url %q has unsupported scheme %q", cfg.Executor.URL, u.Scheme)
	}

	if strings.TrimSpace(cfg.API.Bind) == "" && (cfg.API.Port < 1 || cfg.API.Port > 65535) {
		return fmt.Errorf("api.port %d out of range", cfg.API.Port)
	}

	durations := map[string]time.Duration{
		"general.shutdown_grace":   cfg.General.ShutdownGrace.Duration,
		"api.max_request_age":      cfg.API.MaxRequestAge.Duration,
		"executor.request_timeout": cfg.Executor.RequestTimeout.Duration,
		"poll.interval":            cfg.Poll.Interval.Duration,
		"poll.timeout":             cfg.Poll.Timeout.Duration,
		"callback.timeout":         cfg.Callback.Timeout.Duration,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if cfg.Poll.Interval.Duration > cfg.Poll.Timeout.Duration {
		return fmt.Errorf("poll.interval (%s) exceeds poll.timeout (%s)", cfg.Poll.Interval.Duration, cfg.Poll.Timeout.Duration)
	}

	switch cfg.Runner.Backend {
	case BackendGoroutine, BackendTemporal:
	default:
		return fmt.Errorf("runner.backend %q is not one of %q, %q", cfg.Runner.Backend, BackendGoroutine, BackendTemporal)
	}

	if cfg.Log.File != "" {
		dir := ExpandHome(filepath.Dir(cfg.Log.File))
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("log.file directory %q does not exist: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("log.file parent path %q is not a directory", dir)
		}
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
