package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/LiveFlow/internal/adapters/aggregator"
	"github.com/ghalamif/LiveFlow/internal/adapters/scheduler"
	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

type Options struct {
	Station    string
	Aggregator aggregator.Options
	// ReplayWindow of buffered samples is fed through the aggregators again
	// after every reset. Zero disables replay.
	ReplayWindow time.Duration
	// Backlog is the capacity of the collector channel.
	Backlog int
}

// LivePipeline routes raw samples into the live buffer and through the
// aggregator chain to the sinks. Every method must run on the goroutine that
// runs the scheduler's callbacks.
type LivePipeline struct {
	sched   ports.Scheduler
	agg     ports.Aggregator
	buffer  ports.LiveBuffer
	sinks   []ports.Sink
	obs     ports.Observability
	station string
	replay  time.Duration
	backlog int

	pending  []domain.Sample
	batching bool
}

func New(opts Options, sched ports.Scheduler, buffer ports.LiveBuffer, sinks []ports.Sink, obs ports.Observability) (*LivePipeline, error) {
	p := &LivePipeline{
		sched:   sched,
		buffer:  buffer,
		sinks:   sinks,
		obs:     obs,
		station: opts.Station,
		replay:  opts.ReplayWindow,
		backlog: opts.Backlog,
	}
	if p.backlog <= 0 {
		p.backlog = 256
	}

	agg, err := aggregator.New(opts.Aggregator, sched, p.collect, obs)
	if err != nil {
		return nil, err
	}
	p.agg = agg
	return p, nil
}

// Handle processes one genuine sample from the collector.
func (p *LivePipeline) Handle(s domain.Sample) {
	p.obs.IncCounter(ports.MetricSamplesReceived, 1)
	p.buffer.LiveData(s)
	p.batch(func() { p.agg.Incoming(s) })
}

// ConnectStation switches the monitored station. Aggregator state is dropped,
// the station's buffer is loaded and its recent history replayed.
func (p *LivePipeline) ConnectStation(code string) {
	p.station = code
	p.agg.Reset()
	p.buffer.ConnectStation(code)
	for _, sk := range p.sinks {
		if ss, ok := sk.(ports.StationSink); ok {
			ss.ConnectStation(code)
		}
	}
	p.obs.LogInfo("station_connected", ports.Field{Key: "station", Value: code})
	p.replayHistory()
}

// Reset clears the aggregators and replays recent history, as after a
// station switch but without touching the buffer.
func (p *LivePipeline) Reset() {
	p.agg.Reset()
	p.replayHistory()
}

func (p *LivePipeline) Station() string { return p.station }

func (p *LivePipeline) BufferedSamples() []domain.Sample { return p.buffer.Data() }

func (p *LivePipeline) BufferStats() ports.LiveBufferStats { return p.buffer.Stats() }

// Shutdown emits any partial aggregation window, cancels timers and persists
// the buffer.
func (p *LivePipeline) Shutdown() error {
	p.batch(p.agg.Flush)
	p.agg.Reset()
	if err := p.buffer.Close(); err != nil {
		return fmt.Errorf("close live buffer: %w", err)
	}
	return nil
}

// Run connects the configured station on loop, starts col and feeds its
// samples into the pipeline until ctx is cancelled or a collector exposing
// Done() finishes. loop must be the scheduler the pipeline was built with
// and must not be running yet.
func (p *LivePipeline) Run(ctx context.Context, loop *scheduler.Loop, col ports.Collector) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(loopCtx) }()

	if err := loop.Call(ctx, func() { p.ConnectStation(p.station) }); err != nil {
		return err
	}

	ch := make(chan domain.Sample, p.backlog)
	if err := col.Start(ctx, ch); err != nil {
		stopLoop()
		<-loopErr
		return fmt.Errorf("start collector: %w", err)
	}

	var finished <-chan struct{}
	if f, ok := col.(interface{ Done() <-chan struct{} }); ok {
		finished = f.Done()
	}

	post := func(s domain.Sample) { loop.Post(func() { p.Handle(s) }) }
feed:
	for {
		select {
		case <-ctx.Done():
			break feed
		case s := <-ch:
			post(s)
		case <-finished:
			for {
				select {
				case s := <-ch:
					post(s)
				default:
					break feed
				}
			}
		}
	}

	var errs []error
	if err := col.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop collector: %w", err))
	}
	var shutdownErr error
	if err := loop.Call(context.Background(), func() { shutdownErr = p.Shutdown() }); err != nil {
		errs = append(errs, err)
	}
	if shutdownErr != nil {
		errs = append(errs, shutdownErr)
	}
	stopLoop()
	<-loopErr
	return errors.Join(errs...)
}

func (p *LivePipeline) replayHistory() {
	if p.replay <= 0 {
		return
	}
	history := p.buffer.Since(p.sched.Now().Add(-p.replay))
	if len(history) == 0 {
		return
	}
	p.batch(func() {
		for _, s := range history {
			p.agg.Incoming(s)
		}
	})
	p.obs.LogDebug("history_replayed",
		ports.Field{Key: "station", Value: p.station},
		ports.Field{Key: "samples", Value: len(history)})
}

// batch collects everything fn makes the aggregators emit into one sink write.
func (p *LivePipeline) batch(fn func()) {
	p.batching = true
	fn()
	p.batching = false
	p.deliver()
}

// collect is the aggregator emitter. Emissions outside a batch, such as
// repeater ticks, are delivered right away.
func (p *LivePipeline) collect(s domain.Sample) {
	p.pending = append(p.pending, s)
	if !p.batching {
		p.deliver()
	}
}

func (p *LivePipeline) deliver() {
	if len(p.pending) == 0 {
		return
	}
	out := p.pending
	p.pending = nil

	p.obs.IncCounter(ports.MetricSamplesEmitted, float64(len(out)))
	for _, sk := range p.sinks {
		if err := sk.WriteBatch(out); err != nil {
			p.obs.IncCounter(ports.MetricSinkErrors, 1)
			p.obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: sk.Name()},
				ports.Field{Key: "samples", Value: len(out)})
		}
	}
}
