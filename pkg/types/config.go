// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EngineBackend selects the standard conversion engine.
type EngineBackend string

const (
	// BackendAuto uses the native engine for the formats it handles and
	// falls back to the markitdown binary, then the container image.
	BackendAuto       EngineBackend = "auto"
	BackendMarkitdown EngineBackend = "markitdown"
	BackendContainer  EngineBackend = "container"
	BackendNative     EngineBackend = "native"
)

// EngineConfig holds settings for the standard conversion path.
type EngineConfig struct {
	// Backend selects the engine: auto, markitdown, container, or native.
	Backend EngineBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// MarkitdownBin is the markitdown executable; empty means look it up on PATH.
	MarkitdownBin string `json:"markitdown_bin,omitempty" yaml:"markitdown_bin,omitempty" mapstructure:"markitdown_bin"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// DocIntelConfig holds settings for the Document Intelligence path.
type DocIntelConfig struct {
	// APIKey authenticates against the Document Intelligence resource.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// APIVersion is the REST API version (default 2024-11-30).
	APIVersion string `json:"api_version" yaml:"api_version" mapstructure:"api_version"`

	// Model is the analysis model (default prebuilt-layout).
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// PollInterval is the delay between analysis status polls (default 1s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// Timeout bounds a whole analysis, including polling (default 5m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on throttled responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// HistoryConfig holds settings for the conversion history database.
type HistoryConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxRecent caps the recent files list (default 10).
	MaxRecent int `json:"max_recent" yaml:"max_recent" mapstructure:"max_recent"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings for the CLI.
type Config struct {
	Engine   EngineConfig   `json:"engine" yaml:"engine" mapstructure:"engine"`
	DocIntel DocIntelConfig `json:"docintel" yaml:"docintel" mapstructure:"docintel"`
	History  HistoryConfig  `json:"history" yaml:"history" mapstructure:"history"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}
