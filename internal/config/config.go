// Package config handles part viewer configuration loading.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Server  ServerConfig  `yaml:"server"`
	Window  WindowConfig  `yaml:"window"`
	Logging LoggingConfig `yaml:"logging"`
}

// RenderConfig holds raster output settings for captured views.
type RenderConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Padding int `yaml:"padding"`
}

// ViewerConfig holds view cache behavior settings.
type ViewerConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// ServerConfig holds part-management backend connection settings.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WindowConfig holds display window settings.
type WindowConfig struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	VSync  bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Width:   800,
			Height:  600,
			Padding: 40,
		},
		Viewer: ViewerConfig{
			IdleTimeout: 5 * time.Minute,
		},
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: 15 * time.Second,
		},
		Window: WindowConfig{
			Width:  900,
			Height: 700,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
