package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/LiveFlow/internal/adapters/aggregator"
	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
	"github.com/ghalamif/LiveFlow/internal/adapters/replay"
	"github.com/ghalamif/LiveFlow/internal/adapters/sink"
)

type Config struct {
	Station     string            `yaml:"station"`
	Buffer      BufferConfig      `yaml:"buffer"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	PubSub      sink.PubSubConfig `yaml:"pubsub"`
	Replay      replay.Config     `yaml:"replay"`
	Log         LogConfig         `yaml:"log"`
}

type BufferConfig struct {
	Dir            string        `yaml:"dir"`
	RetentionHours float64       `yaml:"retention_hours"`
	SaveInterval   time.Duration `yaml:"save_interval"`
}

type AggregationConfig struct {
	Mode            aggregator.Mode `yaml:"mode"`
	TimespanSeconds int             `yaml:"timespan_seconds"`
	// Pointers so an explicit false survives the defaults.
	MaxRainRate      *bool `yaml:"max_rain_rate"`
	RunningTotalRain *bool `yaml:"running_total_rain"`
	Repeat           bool  `yaml:"repeat"`
	// ReplayMinutes of buffered history are pushed through the aggregators
	// after a reset. Negative disables replay.
	ReplayMinutes int `yaml:"replay_minutes"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
	// RateLimit caps /healthz and /current requests per client and minute.
	// Negative disables the limit.
	RateLimit int `yaml:"rate_limit"`
}

// PostgresConfig enables the history sink when ConnString is set.
type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read decodes the file at path and applies defaults without validating, so
// callers can apply overrides before calling Validate.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode is Parse without validation.
func Decode(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Buffer.Dir == "" {
		c.Buffer.Dir = defaultCacheDir()
	} else {
		c.Buffer.Dir = expandHome(c.Buffer.Dir)
	}
	if c.Buffer.RetentionHours == 0 {
		c.Buffer.RetentionHours = livebuffer.DefaultRetention.Hours()
	}
	if c.Buffer.SaveInterval == 0 {
		c.Buffer.SaveInterval = livebuffer.DefaultSaveInterval
	}
	if c.Aggregation.Mode == "" {
		c.Aggregation.Mode = aggregator.ModeNone
	}
	if c.Aggregation.TimespanSeconds == 0 {
		c.Aggregation.TimespanSeconds = 60
	}
	if c.Aggregation.MaxRainRate == nil {
		c.Aggregation.MaxRainRate = boolPtr(true)
	}
	if c.Aggregation.RunningTotalRain == nil {
		c.Aggregation.RunningTotalRain = boolPtr(true)
	}
	if c.Aggregation.ReplayMinutes == 0 {
		c.Aggregation.ReplayMinutes = 2
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Metrics.RateLimit == 0 {
		c.Metrics.RateLimit = 120
	}
	if c.Postgres.Table == "" {
		c.Postgres.Table = sink.DefaultTable
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Station) == "" {
		errs = append(errs, errors.New("station is required"))
	}
	if c.Buffer.RetentionHours < 0 {
		errs = append(errs, errors.New("buffer.retention_hours must be positive"))
	}
	if c.Buffer.SaveInterval < 0 {
		errs = append(errs, errors.New("buffer.save_interval must be positive"))
	}
	if !c.Aggregation.Mode.Valid() {
		errs = append(errs, fmt.Errorf("aggregation.mode %q is not one of none, average, repeat", c.Aggregation.Mode))
	}
	if c.Aggregation.TimespanSeconds < 0 {
		errs = append(errs, errors.New("aggregation.timespan_seconds must be positive"))
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		errs = append(errs, errors.New("pubsub.project_id is required when pubsub.topic is set"))
	}
	if c.Replay.Speed < 0 {
		errs = append(errs, errors.New("replay.speed must not be negative"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c *Config) BufferOptions() livebuffer.Config {
	return livebuffer.Config{
		Dir:          c.Buffer.Dir,
		Retention:    time.Duration(c.Buffer.RetentionHours * float64(time.Hour)),
		SaveInterval: c.Buffer.SaveInterval,
	}
}

func (c *Config) AggregatorOptions() aggregator.Options {
	return aggregator.Options{
		Mode:             c.Aggregation.Mode,
		Timespan:         time.Duration(c.Aggregation.TimespanSeconds) * time.Second,
		MaxRainRate:      *c.Aggregation.MaxRainRate,
		RunningTotalRain: *c.Aggregation.RunningTotalRain,
		Repeat:           c.Aggregation.Repeat,
	}
}

// ReplayWindow is how much buffered history is replayed after a reset.
func (c *Config) ReplayWindow() time.Duration {
	if c.Aggregation.ReplayMinutes < 0 {
		return 0
	}
	return time.Duration(c.Aggregation.ReplayMinutes) * time.Minute
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "data", "cache")
	}
	return filepath.Join(dir, "liveflow")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func boolPtr(v bool) *bool { return &v }
