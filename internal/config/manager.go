package config

import (
	"fmt"
	"strings"
	"sync"
)

// ConfigManager provides thread-safe access to live configuration.
type ConfigManager interface {
	Get() *Config
	Reload() (*Config, error)
}

// RWMutexManager holds the live config behind a RWMutex. Request handlers read
// it on every call; SIGHUP swaps it.
type RWMutexManager struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// LoadManager loads path and wraps the result in a manager.
func LoadManager(path string) (*RWMutexManager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewManager(path, cfg), nil
}

// NewManager constructs a manager with an initial config.
func NewManager(path string, initial *Config) *RWMutexManager {
	return &RWMutexManager{path: path, cfg: initial}
}

// Get returns the current config pointer under a shared lock.
func (m *RWMutexManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Set replaces the current config without restart checks.
func (m *RWMutexManager) Set(cfg *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Reload loads the config again and swaps it in when only live-reloadable
// settings changed. The previous config stays active on error.
func (m *RWMutexManager) Reload() (*Config, error) {
	loaded, err := Reload(m.path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := CheckReload(m.cfg, loaded); err != nil {
		return nil, err
	}
	m.cfg = loaded
	return loaded, nil
}

// CheckReload rejects changes to settings that are bound at start-up.
func CheckReload(oldCfg, newCfg *Config) error {
	if oldCfg == nil || newCfg == nil {
		return fmt.Errorf("invalid config state during reload")
	}

	if oldCfg.ListenAddr() != newCfg.ListenAddr() {
		return fmt.Errorf("api listen address changed (%q -> %q) and requires restart", oldCfg.ListenAddr(), newCfg.ListenAddr())
	}
	if oldCfg.Runner.Backend != newCfg.Runner.Backend {
		return fmt.Errorf("runner.backend changed (%q -> %q) and requires restart", oldCfg.Runner.Backend, newCfg.Runner.Backend)
	}
	if oldCfg.Executor != newCfg.Executor {
		return fmt.Errorf("executor settings changed and require restart")
	}
	if oldCfg.Poll != newCfg.Poll || oldCfg.Callback != newCfg.Callback {
		return fmt.Errorf("poll/callback settings changed and require restart")
	}
	if oldCfg.Temporal != newCfg.Temporal {
		return fmt.Errorf("temporal settings changed and require restart")
	}
	if strings.TrimSpace(oldCfg.Log.File) != strings.TrimSpace(newCfg.Log.File) {
		return fmt.Errorf("log.file changed (%q -> %q) and requires restart", oldCfg.Log.File, newCfg.Log.File)
	}
	return nil
}

var _ ConfigManager = (*RWMutexManager)(nil)
