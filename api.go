package liveflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	base "github.com/ghalamif/LiveFlow/pkg/liveflow"
)

// Re-exported errors for convenience.
var (
	ErrRuntimeClosed     = base.ErrRuntimeClosed
	ErrRuntimeNotStarted = base.ErrRuntimeNotStarted
	ErrNoCollector       = base.ErrNoCollector
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrPublisherClosed   = base.ErrPublisherClosed
)

// Type aliases so consumers can import github.com/ghalamif/LiveFlow directly.
type (
	Config            = base.Config
	BufferConfig      = base.BufferConfig
	AggregationConfig = base.AggregationConfig
	MetricsConfig     = base.MetricsConfig
	PostgresConfig    = base.PostgresConfig
	PubSubConfig      = base.PubSubConfig
	ReplayConfig      = base.ReplayConfig
	LogConfig         = base.LogConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Publisher         = base.Publisher
	LatestSink        = base.LatestSink
	Sample            = base.Sample
	DavisData         = base.DavisData
	ExtraSensors      = base.ExtraSensors
	HardwareType      = base.HardwareType
	AggregationMode   = base.AggregationMode
	SampleBatchSink   = base.SampleBatchSink
	Collector         = base.Collector
	Sink              = base.Sink
	StationSink       = base.StationSink
	Observability     = base.Observability
	Field             = base.Field
	BufferStats       = base.BufferStats
)

const (
	HardwareGeneric    = base.HardwareGeneric
	HardwareFineOffset = base.HardwareFineOffset
	HardwareDavis      = base.HardwareDavis

	ModeNone    = base.ModeNone
	ModeAverage = base.ModeAverage
	ModeRepeat  = base.ModeRepeat
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ReadConfig(path string) (*Config, error) {
	return base.ReadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func ForStation(code string) FlowOption {
	return base.ForStation(code)
}

func Aggregate(mode AggregationMode, timespan time.Duration) FlowOption {
	return base.Aggregate(mode, timespan)
}

func Repeat() FlowOption {
	return base.Repeat()
}

func StreamInReplay(path string, speed float64) StreamInOption {
	return base.StreamInReplay(path, speed)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutPostgres(connString, table string) StreamOutOption {
	return base.StreamOutPostgres(connString, table)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(log zerolog.Logger) RuntimeOption {
	return base.WithLogger(log)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithoutMetricsServer() RuntimeOption {
	return base.WithoutMetricsServer()
}

// Sink adapters.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	return base.NewChannelSink(name, buffer)
}

func NewLatestSink(name string) *LatestSink {
	return base.NewLatestSink(name)
}

// External producers.
func NewPublisher(buffer int) *Publisher {
	return base.NewPublisher(buffer)
}
