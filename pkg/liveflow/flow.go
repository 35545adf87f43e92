package liveflow

import (
	"context"
	"fmt"
	"time"
)

// Flow builds a Runtime step by step:
//
//	flow, _ := liveflow.Conf("config.yaml", liveflow.ForStation("HOME1"))
//	flow.StreamIN(liveflow.StreamInReplay("today.dat", 10)).
//		Run(ctx, liveflow.StreamOutCallback("chart", draw))
//
// Options that touch configuration edit the Config the Flow was built from.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption adjusts the Flow right after the configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures where samples come from.
type StreamInOption func(*Flow)

// StreamOutOption configures where emitted samples go.
type StreamOutOption func(*Flow)

// Conf loads the YAML file at path, applies opts and validates the result,
// so options such as ForStation can fill in what the file leaves out.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	f, err := ConfFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ConfFromConfig starts a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	f.apply(opts)
	return f, nil
}

func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options adds raw RuntimeOption values.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the sink options and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and runs it until ctx is done or the collector is
// exhausted.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		f.appendOptions(opts...)
	}
}

// ForStation overrides the configured station code.
func ForStation(code string) FlowOption {
	return func(f *Flow) {
		if code != "" {
			f.cfg.Station = code
		}
	}
}

// Aggregate selects the aggregation mode and window length. A zero timespan
// keeps the configured one.
func Aggregate(mode AggregationMode, timespan time.Duration) FlowOption {
	return func(f *Flow) {
		f.cfg.Aggregation.Mode = mode
		if timespan > 0 {
			f.cfg.Aggregation.TimespanSeconds = int(timespan / time.Second)
		}
	}
}

// Repeat puts a repeater in front of the configured aggregator so quiet
// stations keep producing samples.
func Repeat() FlowOption {
	return func(f *Flow) {
		f.cfg.Aggregation.Repeat = true
	}
}

// StreamInCollector replaces the replay collector with col, e.g. a station
// driver or a Publisher.
func StreamInCollector(col Collector) StreamInOption {
	return func(f *Flow) {
		if col != nil {
			f.appendOptions(WithCollector(col))
		}
	}
}

// StreamInReplay plays a recorded buffer file ("-" for stdin). speed scales
// the recorded spacing; zero replays as fast as possible.
func StreamInReplay(path string, speed float64) StreamInOption {
	return func(f *Flow) {
		f.cfg.Replay.Path = path
		f.cfg.Replay.Speed = speed
	}
}

func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutPostgres stores emitted samples in table, or the default
// live_history table when table is empty.
func StreamOutPostgres(connString, table string) StreamOutOption {
	return func(f *Flow) {
		f.cfg.Postgres.ConnString = connString
		if table != "" {
			f.cfg.Postgres.Table = table
		}
	}
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return func(f *Flow) {
		f.appendOptions(WithSink(NewCallbackSink(name, fn)))
	}
}

func (f *Flow) apply(opts []FlowOption) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
