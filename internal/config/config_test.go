package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taskrelay.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every variable applyEnv reads so the host environment
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOSE_SERVER_URL", "EXECUTOR_URL", "EXECUTOR_MODEL",
		"SLACK_SIGNING_SECRET", "PORT", "LOG_LEVEL", "RELAY_BACKEND",
	} {
		t.Setenv(key, "")
	}
}

const validConfig = `
[general]
log_level = "debug"
shutdown_grace = "10s"

[api]
port = 4000
signing_secret = "s3cret"
max_request_age = "2m"

[executor]
url = "http://goose.internal:8765/"
model = "test-model"
working_directory = "/srv/work"
request_timeout = "15s"

[poll]
interval = "1s"
timeout = "5m"

[callback]
timeout = "3s"

[runner]
backend = "temporal"

[temporal]
host_port = "temporal:7233"
namespace = "relay"
task_queue = "relay-q"
`

func TestLoadValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.General.LogLevel)
	}
	if cfg.API.Port != 4000 {
		t.Errorf("API.Port = %d, want 4000", cfg.API.Port)
	}
	if cfg.ListenAddr() != ":4000" {
		t.Errorf("ListenAddr = %q, want :4000", cfg.ListenAddr())
	}
	if cfg.API.SigningSecret != "s3cret" {
		t.Errorf("SigningSecret = %q", cfg.API.SigningSecret)
	}
	if cfg.Executor.URL != "http://goose.internal:8765" {
		t.Errorf("Executor.URL = %q, want trailing slash trimmed", cfg.Executor.URL)
	}
	if cfg.Executor.WorkingDirectory != "/srv/work" {
		t.Errorf("WorkingDirectory = %q", cfg.Executor.WorkingDirectory)
	}
	if cfg.Poll.Interval.Duration != time.Second || cfg.Poll.Timeout.Duration != 5*time.Minute {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.Callback.Timeout.Duration != 3*time.Second {
		t.Errorf("Callback.Timeout = %v", cfg.Callback.Timeout)
	}
	if cfg.Runner.Backend != BackendTemporal {
		t.Errorf("Runner.Backend = %q", cfg.Runner.Backend)
	}
	if cfg.Temporal.TaskQueue != "relay-q" {
		t.Errorf("Temporal.TaskQueue = %q", cfg.Temporal.TaskQueue)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.URL != "http://localhost:8765" {
		t.Errorf("Executor.URL = %q, want http://localhost:8765", cfg.Executor.URL)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000", cfg.API.Port)
	}
	if cfg.Poll.Interval.Duration != 2*time.Second {
		t.Errorf("Poll.Interval = %v, want 2s", cfg.Poll.Interval)
	}
	if cfg.Poll.Timeout.Duration != 600*time.Second {
		t.Errorf("Poll.Timeout = %v, want 600s", cfg.Poll.Timeout)
	}
	if cfg.Executor.RequestTimeout.Duration != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Executor.RequestTimeout)
	}
	if cfg.Runner.Backend != BackendGoroutine {
		t.Errorf("Runner.Backend = %q, want goroutine", cfg.Runner.Backend)
	}
	if cfg.API.SigningSecret != "" {
		t.Errorf("SigningSecret = %q, want empty", cfg.API.SigningSecret)
	}
	wd, _ := os.Getwd()
	if cfg.Executor.WorkingDirectory != wd {
		t.Errorf("WorkingDirectory = %q, want cwd %q", cfg.Executor.WorkingDirectory, wd)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOSE_SERVER_URL", "http://goose-legacy:1")
	t.Setenv("EXECUTOR_URL", "http://executor:9000")
	t.Setenv("SLACK_SIGNING_SECRET", "from-env")
	t.Setenv("PORT", "8080")
	t.Setenv("RELAY_BACKEND", "Goroutine")

	cfg, err := Load(writeTestConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.URL != "http://executor:9000" {
		t.Errorf("Executor.URL = %q, EXECUTOR_URL should win", cfg.Executor.URL)
	}
	if cfg.API.SigningSecret != "from-env" {
		t.Errorf("SigningSecret = %q", cfg.API.SigningSecret)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Runner.Backend != BackendGoroutine {
		t.Errorf("Runner.Backend = %q, want goroutine", cfg.Runner.Backend)
	}
}

func TestLoadGooseServerURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOSE_SERVER_URL", "http://goose:8765")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.URL != "http://goose:8765" {
		t.Errorf("Executor.URL = %q", cfg.Executor.URL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "relative executor url",
			content: "[executor]\nurl = \"localhost:8765\"\n",
			wantErr: "executor.url",
		},
		{
			name:    "unsupported scheme",
			content: "[executor]\nurl = \"ftp://goose\"\n",
			wantErr: "unsupported scheme",
		},
		{
			name:    "port out of range",
			content: "[api]\nport = 70000\n",
			wantErr: "api.port",
		},
		{
			name:    "unknown backend",
			content: "[runner]\nbackend = \"kafka\"\n",
			wantErr: "runner.backend",
		},
		{
			name:    "negative duration",
			content: "[callback]\ntimeout = \"-1s\"\n",
			wantErr: "callback.timeout",
		},
		{
			name:    "interval longer than timeout",
			content: "[poll]\ninterval = \"10m\"\ntimeout = \"1m\"\n",
			wantErr: "poll.interval",
		},
		{
			name:    "bad duration",
			content: "[poll]\ninterval = \"soon\"\n",
			wantErr: "parsing config",
		},
		{
			name:    "bad PORT env",
			env:     map[string]string{"PORT": "http"},
			wantErr: "invalid PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeTestConfig(t, tt.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestListenAddrPrefersBind(t *testing.T) {
	cfg := &Config{API: API{Bind: "127.0.0.1:9999", Port: 3000}}
	if got := cfg.ListenAddr(); got != "127.0.0.1:9999" {
		t.Fatalf("ListenAddr = %q, want bind", got)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"60s", 60 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
		{"500ms", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		var d Duration
		if err := d.UnmarshalText([]byte(tt.input)); err != nil {
			t.Errorf("UnmarshalText(%q) error: %v", tt.input, err)
			continue
		}
		if d.Duration != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.input, d.Duration, tt.want)
		}
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/relay"); got != filepath.Join(home, "relay") {
		t.Errorf("ExpandHome(~/relay) = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
	if got := ExpandHome(""); got != "" {
		t.Errorf("ExpandHome(\"\") = %q", got)
	}
}
