package liveflow

import (
	"github.com/ghalamif/LiveFlow/internal/adapters/aggregator"
	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// Sample is one live observation as it flows through the pipeline.
type Sample = domain.Sample

// DavisData holds the fields only Davis stations report.
type DavisData = domain.DavisData

// ExtraSensors are the optional Davis soil, leaf and extra channels.
type ExtraSensors = domain.ExtraSensors

// HardwareType identifies the station family that produced a sample.
type HardwareType = domain.HardwareType

const (
	HardwareGeneric    = domain.HardwareGeneric
	HardwareFineOffset = domain.HardwareFineOffset
	HardwareDavis      = domain.HardwareDavis
)

// AggregationMode selects the aggregator chain.
type AggregationMode = aggregator.Mode

const (
	ModeNone    = aggregator.ModeNone
	ModeAverage = aggregator.ModeAverage
	ModeRepeat  = aggregator.ModeRepeat
)

// Collector streams samples from any data source into the pipeline.
type Collector = ports.Collector

// Sink consumes batches of emitted samples.
type Sink = ports.Sink

// StationSink is a Sink told about station switches.
type StationSink = ports.StationSink

// Observability receives structured logs and metric updates.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// BufferStats describes the live buffer of the connected station.
type BufferStats = ports.LiveBufferStats
