package liveflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithLogger(zerolog.Nop()), WithoutMetricsServer()))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	col := &stubCollector{}
	sink := &stubSink{}
	obs := &stubObservability{}

	rt, err := flow.
		StreamIN(
			StreamInCollector(col),
			StreamInObservability(&stubObservability{}),
		).
		StreamOUT(
			StreamOutSink(sink),
			StreamOutCallback("cb", func([]Sample) error { return nil }),
			StreamOutObservability(obs),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.collector != col {
		t.Fatalf("expected custom collector to be wired")
	}
	if len(rt.sinks) != 2 || rt.sinks[0] != sink || rt.sinks[1].Name() != "cb" {
		t.Fatalf("expected custom and callback sinks to be wired, got %d sinks", len(rt.sinks))
	}
	if rt.obs != obs {
		t.Fatalf("expected the last observability option to win")
	}
}

func TestFlowRunUsesStreamOutOptions(t *testing.T) {
	flow, err := ConfFromConfig(testConfig(t))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	pub := NewPublisher(1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, liveSample(0, 21)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	pub.Close()

	var got []Sample
	err = flow.
		Options(WithLogger(zerolog.Nop()), WithoutMetricsServer()).
		StreamIN(StreamInCollector(pub)).
		Run(ctx, StreamOutCallback("stdout", func(batch []Sample) error {
			got = append(got, batch...)
			return nil
		}))
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Temperature != 21 {
		t.Fatalf("unexpected samples %+v", got)
	}
}

func TestConfRequiresReadableConfig(t *testing.T) {
	if _, err := Conf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	var f *Flow
	if _, err := f.StreamOUT(); err == nil {
		t.Fatal("expected error for nil flow")
	}
}

func TestConfValidatesAfterOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("buffer:\n  dir: "+t.TempDir()+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Conf(path); err == nil {
		t.Fatal("expected error for config without station")
	}
	flow, err := Conf(path, ForStation("HOME1"))
	if err != nil {
		t.Fatalf("Conf with ForStation returned error: %v", err)
	}
	if flow.Config().Station != "HOME1" {
		t.Fatalf("station = %q", flow.Config().Station)
	}
}

func TestFlowOptionsEditConfig(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg,
		ForStation("HOME2"),
		Aggregate(ModeAverage, 5*time.Minute),
		Repeat(),
	)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	flow.StreamIN(StreamInReplay("-", 4))
	StreamOutPostgres("postgres://localhost/weather", "")(flow)

	if cfg.Station != "HOME2" {
		t.Fatalf("station = %q", cfg.Station)
	}
	if cfg.Aggregation.Mode != ModeAverage || cfg.Aggregation.TimespanSeconds != 300 || !cfg.Aggregation.Repeat {
		t.Fatalf("unexpected aggregation %+v", cfg.Aggregation)
	}
	if cfg.Replay.Path != "-" || cfg.Replay.Speed != 4 {
		t.Fatalf("unexpected replay %+v", cfg.Replay)
	}
	if cfg.Postgres.ConnString != "postgres://localhost/weather" || cfg.Postgres.Table != "live_history" {
		t.Fatalf("unexpected postgres %+v", cfg.Postgres)
	}
	if len(flow.opts) != 0 {
		t.Fatalf("config options must not add runtime options, got %d", len(flow.opts))
	}
}

func TestAggregateKeepsTimespanWhenZero(t *testing.T) {
	cfg := testConfig(t)
	cfg.Aggregation.TimespanSeconds = 90

	if _, err := ConfFromConfig(cfg, Aggregate(ModeNone, 0), ForStation("")); err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if cfg.Aggregation.Mode != ModeNone || cfg.Aggregation.TimespanSeconds != 90 {
		t.Fatalf("unexpected aggregation %+v", cfg.Aggregation)
	}
	if cfg.Station == "" {
		t.Fatal("empty station code must not clear the configured station")
	}
}
