package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
)

// Config represents the application configuration.
type Config struct {
	// Compositor forces a specific adapter instead of auto-detection.
	// Accepted values: hyprland, sway, niri, river, wayfire, wayland, x11, auto.
	Compositor string `json:"compositor" yaml:"compositor"`

	// ShiftPixels is the parallax translation applied per workspace step.
	ShiftPixels float64 `json:"shift_pixels" yaml:"shift_pixels"`

	// TagPolicy selects how multi-tag states map to an offset:
	// focused, highest, lowest, or none.
	TagPolicy string `json:"tag_policy" yaml:"tag_policy"`

	Grid  GridConfig  `json:"grid" yaml:"grid"`
	Retry RetryConfig `json:"retry" yaml:"retry"`
	API   APIConfig   `json:"api" yaml:"api"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// GridConfig describes the Wayfire workspace grid dimensions.
type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RetryConfig bounds the compositor socket dialer.
type RetryConfig struct {
	Attempts int `json:"attempts" yaml:"attempts"`
	DelayMS  int `json:"delay_ms" yaml:"delay_ms"`
}

// APIConfig controls the optional status/event HTTP server.
type APIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// Manager handles loading, access and persistence of the configuration.
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager creates a configuration manager. When configFile is empty the
// default location under the user config dir is used; a missing file is not
// an error, defaults apply.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{config: Defaults()}

	if configFile == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		configFile = filepath.Join(configDir, "parallaxd", "config.yaml")
	}
	m.configPath = configFile

	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Compositor:  "auto",
		ShiftPixels: 200,
		TagPolicy:   "focused",
		Grid:        GridConfig{Width: 3, Height: 3},
		Retry:       RetryConfig{Attempts: 30, DelayMS: 500},
		API:         APIConfig{Enabled: false, Port: 9280},
		LogLevel:    "info",
	}
}

func (m *Manager) load() error {
	log := logger.WithComponent("config")

	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")

	defaults := Defaults()
	v.SetDefault("compositor", defaults.Compositor)
	v.SetDefault("shift_pixels", defaults.ShiftPixels)
	v.SetDefault("tag_policy", defaults.TagPolicy)
	v.SetDefault("grid.width", defaults.Grid.Width)
	v.SetDefault("grid.height", defaults.Grid.Height)
	v.SetDefault("retry.attempts", defaults.Retry.Attempts)
	v.SetDefault("retry.delay_ms", defaults.Retry.DelayMS)
	v.SetDefault("api.enabled", defaults.API.Enabled)
	v.SetDefault("api.port", defaults.API.Port)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", m.configPath).Msg("no config file, using defaults")
		} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Str("path", m.configPath).Msg("no config file, using defaults")
		} else {
			return fmt.Errorf("failed to read config %s: %w", m.configPath, err)
		}
	}

	cfg := &Config{
		Compositor:  v.GetString("compositor"),
		ShiftPixels: v.GetFloat64("shift_pixels"),
		TagPolicy:   v.GetString("tag_policy"),
		Grid: GridConfig{
			Width:  v.GetInt("grid.width"),
			Height: v.GetInt("grid.height"),
		},
		Retry: RetryConfig{
			Attempts: v.GetInt("retry.attempts"),
			DelayMS:  v.GetInt("retry.delay_ms"),
		},
		API: APIConfig{
			Enabled: v.GetBool("api.enabled"),
			Port:    v.GetInt("api.port"),
		},
		LogLevel: v.GetString("log_level"),
	}

	if cfg.Grid.Width < 1 {
		cfg.Grid.Width = defaults.Grid.Width
	}
	if cfg.Grid.Height < 1 {
		cfg.Grid.Height = defaults.Grid.Height
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = 1
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// GetConfigPath returns the path the manager reads from and writes to.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetLogLevel overrides the configured log level.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// SetCompositor overrides the configured compositor selection.
func (m *Manager) SetCompositor(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Compositor = name
}

// Save writes the current configuration back to disk as YAML.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := *m.config
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
