package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/LiveFlow/internal/adapters/aggregator"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
station: sb
buffer:
  dir: ` + dir + `
replay:
  path: recording.dat
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Aggregation.Mode != aggregator.ModeNone {
		t.Fatalf("expected aggregation off by default, got %s", cfg.Aggregation.Mode)
	}
	opts := cfg.AggregatorOptions()
	if opts.Timespan != time.Minute {
		t.Fatalf("expected default timespan 1m, got %s", opts.Timespan)
	}
	if !opts.MaxRainRate || !opts.RunningTotalRain {
		t.Fatalf("expected max rain rate and running total on by default, got %+v", opts)
	}
	if cfg.ReplayWindow() != 2*time.Minute {
		t.Fatalf("expected replay window 2m, got %s", cfg.ReplayWindow())
	}
	buf := cfg.BufferOptions()
	if buf.Retention != time.Hour || buf.SaveInterval != 5*time.Minute || buf.Dir != dir {
		t.Fatalf("unexpected buffer options %+v", buf)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Metrics.RateLimit != 120 {
		t.Fatalf("expected default rate limit 120, got %d", cfg.Metrics.RateLimit)
	}
	if cfg.Postgres.Table != "live_history" {
		t.Fatalf("expected default table live_history, got %s", cfg.Postgres.Table)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.Replay.Path != "recording.dat" {
		t.Fatalf("expected replay path, got %q", cfg.Replay.Path)
	}
}

func TestParseKeepsExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
station: kh
buffer:
  retention_hours: 0.5
  save_interval: 30s
aggregation:
  mode: average
  timespan_seconds: 300
  max_rain_rate: false
  running_total_rain: false
  repeat: true
  replay_minutes: -1
replay:
  path: "-"
  speed: 10
  restamp: true
log:
  level: debug
  format: console
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	opts := cfg.AggregatorOptions()
	want := aggregator.Options{
		Mode:     aggregator.ModeAverage,
		Timespan: 5 * time.Minute,
		Repeat:   true,
	}
	if opts != want {
		t.Fatalf("expected %+v, got %+v", want, opts)
	}
	if cfg.ReplayWindow() != 0 {
		t.Fatalf("expected replay disabled, got %s", cfg.ReplayWindow())
	}
	buf := cfg.BufferOptions()
	if buf.Retention != 30*time.Minute || buf.SaveInterval != 30*time.Second {
		t.Fatalf("unexpected buffer options %+v", buf)
	}
	if !cfg.Replay.Restamp || cfg.Replay.Speed != 10 {
		t.Fatalf("unexpected replay config %+v", cfg.Replay)
	}
}

func TestParseExpandsHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := Parse([]byte("station: sb\nbuffer:\n  dir: ~/weather\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Buffer.Dir != filepath.Join(home, "weather") {
		t.Fatalf("expected expanded dir, got %s", cfg.Buffer.Dir)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	_, err := Parse([]byte(`
aggregation:
  mode: median
pubsub:
  topic: live
log:
  level: loud
  format: xml
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"station is required", "aggregation.mode", "pubsub.project_id", "log.level", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadDefersValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("aggregation:\n  mode: average\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "station is required") {
		t.Fatalf("expected Load to reject a config without station, got %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.Aggregation.TimespanSeconds != 60 {
		t.Fatalf("defaults not applied: %+v", cfg.Aggregation)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error before the station is set")
	}
	cfg.Station = "sb"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate with station: %v", err)
	}
}
