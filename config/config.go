package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Camera backends.
const (
	BackendScreen = "screen"
	BackendOpenCV = "opencv"
	BackendNone   = "none"
)

// Environment overrides.
const (
	EnvAPIURL = "LEAFSCAN_API_URL"
	EnvListen = "LEAFSCAN_LISTEN"
)

type CameraConfig struct {
	Backend  string `json:"backend" toml:"backend" yaml:"backend"`
	Index    int    `json:"index" toml:"index" yaml:"index"`
	Node     string `json:"node" toml:"node" yaml:"node"`
	Width    int    `json:"width" toml:"width" yaml:"width"`
	Height   int    `json:"height" toml:"height" yaml:"height"`
	FPS      int    `json:"fps" toml:"fps" yaml:"fps"`
	Handheld bool   `json:"handheld" toml:"handheld" yaml:"handheld"`

	// Screen backend capture rectangle; zero size captures the whole screen.
	RegionX int `json:"region_x" toml:"region_x" yaml:"region_x"`
	RegionY int `json:"region_y" toml:"region_y" yaml:"region_y"`
	RegionW int `json:"region_w" toml:"region_w" yaml:"region_w"`
	RegionH int `json:"region_h" toml:"region_h" yaml:"region_h"`
}

// Region returns the screen capture rectangle, or nil for the full screen.
func (c CameraConfig) Region() *image.Rectangle {
	if c.RegionW <= 0 || c.RegionH <= 0 {
		return nil
	}
	r := image.Rect(c.RegionX, c.RegionY, c.RegionX+c.RegionW, c.RegionY+c.RegionH)
	return &r
}

type APIConfig struct {
	BaseURL        string `json:"base_url" toml:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
	CacheSize      int    `json:"cache_size" toml:"cache_size" yaml:"cache_size"`
}

type ServerConfig struct {
	Listen       string `json:"listen" toml:"listen" yaml:"listen"`
	PreviewFPS   int    `json:"preview_fps" toml:"preview_fps" yaml:"preview_fps"`
	PreviewWidth int    `json:"preview_width" toml:"preview_width" yaml:"preview_width"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Path    string `json:"path" toml:"path" yaml:"path"`
}

// Config holds runtime configuration. Fields may be loaded from a TOML, YAML or
// JSON file and overridden by the environment and command-line flags.
type Config struct {
	Debug   bool          `json:"debug" toml:"debug" yaml:"debug"`
	Camera  CameraConfig  `json:"camera" toml:"camera" yaml:"camera"`
	API     APIConfig     `json:"api" toml:"api" yaml:"api"`
	Server  ServerConfig  `json:"server" toml:"server" yaml:"server"`
	History HistoryConfig `json:"history" toml:"history" yaml:"history"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Backend: BackendScreen,
			Width:   1280,
			Height:  720,
			FPS:     30,
		},
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
			CacheSize:      64,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8080",
			PreviewFPS:   10,
			PreviewWidth: 480,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(xdg.DataHome, "leafscan", "history.db"),
		},
	}
}

// DefaultPath returns the config file location under the XDG config home.
func DefaultPath() string {
	p, err := xdg.ConfigFile(filepath.Join("leafscan", "config.toml"))
	if err != nil {
		return "config.toml"
	}
	return p
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	switch c.Camera.Backend {
	case BackendScreen, BackendOpenCV, BackendNone:
	default:
		c.Camera.Backend = BackendScreen
	}
	if c.Camera.Index < 0 {
		c.Camera.Index = 0
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		c.Camera.Width, c.Camera.Height = 1280, 720
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 120 {
		c.Camera.FPS = 30
	}
	if c.Camera.RegionW < 0 || c.Camera.RegionH < 0 {
		c.Camera.RegionW, c.Camera.RegionH = 0, 0
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000"
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.API.CacheSize <= 0 {
		c.API.CacheSize = 64
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
	if c.Server.PreviewFPS <= 0 || c.Server.PreviewFPS > 30 {
		c.Server.PreviewFPS = 10
	}
	if c.Server.PreviewWidth < 64 {
		c.Server.PreviewWidth = 480
	}
	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = filepath.Join(xdg.DataHome, "leafscan", "history.db")
	}
	return nil
}

// ApplyEnvOverrides applies LEAFSCAN_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
}

// Load reads configuration from path, choosing the format by extension. A
// missing file yields DefaultConfig(). On decode error it returns defaults
// with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			_ = cfg.Validate()
			return cfg, nil
		}
		return cfg, err
	}
	if err := decode(path, data, cfg); err != nil {
		return DefaultConfig(), err
	}
	cfg.ApplyEnvOverrides()
	_ = cfg.Validate()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to path in the format implied by its
// extension, creating parent directories.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return err
		}
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		_ = enc.Close()
	default:
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
