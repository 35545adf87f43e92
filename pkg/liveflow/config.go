package liveflow

import (
	"github.com/ghalamif/LiveFlow/internal/adapters/replay"
	"github.com/ghalamif/LiveFlow/internal/adapters/sink"
	"github.com/ghalamif/LiveFlow/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// BufferConfig controls where and for how long raw samples are kept.
	BufferConfig = config.BufferConfig
	// AggregationConfig selects passthrough, windowed average or repeat.
	AggregationConfig = config.AggregationConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// PostgresConfig enables the history sink.
	PostgresConfig = config.PostgresConfig
	// PubSubConfig publishes emitted samples to a Google Cloud Pub/Sub topic.
	PubSubConfig = sink.PubSubConfig
	// ReplayConfig points the built-in collector at a recorded buffer file.
	ReplayConfig = replay.Config
	// LogConfig sets the zerolog level and output format.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ReadConfig loads YAML from disk and applies defaults without validating.
// Apply overrides, then call Config.Validate.
func ReadConfig(path string) (*Config, error) {
	return config.Read(path)
}

// ParseConfig decodes, defaults and validates YAML held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
