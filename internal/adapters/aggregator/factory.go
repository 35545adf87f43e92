package aggregator

import (
	"fmt"
	"time"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

type Mode string

const (
	ModeNone    Mode = "none"
	ModeAverage Mode = "average"
	ModeRepeat  Mode = "repeat"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeAverage, ModeRepeat:
		return true
	}
	return false
}

// Options selects and configures the aggregator chain.
type Options struct {
	Mode             Mode
	Timespan         time.Duration
	MaxRainRate      bool
	RunningTotalRain bool
	// Repeat puts a Repeater in front of the none/average aggregator so the
	// output keeps flowing while the station is quiet.
	Repeat bool
}

// Chain feeds the output of a repeater into another aggregator.
type Chain struct {
	head  *Repeater
	inner ports.Aggregator
}

func (c *Chain) Incoming(s domain.Sample) { c.head.Incoming(s) }

func (c *Chain) Reset() {
	c.head.Reset()
	c.inner.Reset()
}

func (c *Chain) Flush() { c.inner.Flush() }

// New builds the aggregator described by opts, emitting into emit.
func New(opts Options, sched ports.Scheduler, emit ports.Emitter, obs ports.Observability) (ports.Aggregator, error) {
	var inner ports.Aggregator
	switch opts.Mode {
	case ModeNone, "":
		inner = NewPassthrough(opts.RunningTotalRain, emit, obs)
	case ModeAverage:
		inner = NewAveraged(opts.Timespan, opts.MaxRainRate, opts.RunningTotalRain, emit, obs)
	case ModeRepeat:
		return NewRepeater(sched, emit, obs), nil
	default:
		return nil, fmt.Errorf("unknown aggregation mode %q", opts.Mode)
	}

	if !opts.Repeat {
		return inner, nil
	}
	return &Chain{
		head:  NewRepeater(sched, inner.Incoming, obs),
		inner: inner,
	}, nil
}

var _ ports.Aggregator = (*Chain)(nil)
