package liveflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
	"github.com/ghalamif/LiveFlow/internal/adapters/observability"
	"github.com/ghalamif/LiveFlow/internal/adapters/replay"
	"github.com/ghalamif/LiveFlow/internal/adapters/scheduler"
	"github.com/ghalamif/LiveFlow/internal/adapters/sink"
	"github.com/ghalamif/LiveFlow/internal/app/pipeline"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

var (
	// ErrRuntimeClosed is returned once Run has finished, or when Run is
	// called a second time.
	ErrRuntimeClosed = errors.New("liveflow: runtime closed")
	// ErrRuntimeNotStarted is returned by control calls made before Run.
	ErrRuntimeNotStarted = errors.New("liveflow: runtime not started")
	// ErrNoCollector is returned when neither a collector option nor a replay
	// path is configured.
	ErrNoCollector = errors.New("liveflow: no collector configured")
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sinks         []Sink
	observability Observability
	logger        *zerolog.Logger
	registry      *prometheus.Registry
	noMetrics     bool
}

// WithCollector injects the sample producer, replacing the replay collector.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink adds a sink. Without any sink, emitted samples are logged.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithObservability replaces the zerolog + Prometheus backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(log zerolog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = &log
	}
}

// WithRegistry registers the runtime metrics with reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithoutMetricsServer keeps Run from listening on Config.Metrics.Addr. The
// router stays available through Handler.
func WithoutMetricsServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noMetrics = true
	}
}

// Runtime wires collector → live buffer / aggregators → sinks on a single
// event loop and exposes lifecycle hooks for embedding LiveFlow in any Go
// service.
type Runtime struct {
	cfg       *Config
	log       zerolog.Logger
	session   string
	obs       ports.Observability
	registry  *prometheus.Registry
	loop      *scheduler.Loop
	pipeline  *pipeline.LivePipeline
	collector ports.Collector
	sinks     []ports.Sink
	latest    *LatestSink
	closers   []io.Closer

	serveMetrics bool
	metricsSrv   *http.Server
	metricsAddr  atomic.Value

	started atomic.Bool
	closed  atomic.Bool
}

// NewRuntime bootstraps the default adapters (replay collector, file backed
// live buffer, Postgres, Pub/Sub and log sinks, zerolog + Prometheus
// observability).
// RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	session := uuid.NewString()
	var log zerolog.Logger
	if overrides.logger != nil {
		log = *overrides.logger
	} else {
		l, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		log = l
	}
	log = log.With().Str("session", session).Logger()

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(log, reg)
	}

	col := overrides.collector
	if col == nil {
		if cfg.Replay.Path == "" {
			return nil, ErrNoCollector
		}
		rc, err := replay.NewCollector(cfg.Replay, obs)
		if err != nil {
			return nil, err
		}
		col = rc
	}

	rt := &Runtime{
		cfg:          cfg,
		log:          log,
		session:      session,
		obs:          obs,
		registry:     reg,
		collector:    col,
		sinks:        append([]ports.Sink(nil), overrides.sinks...),
		latest:       NewLatestSink("latest"),
		serveMetrics: !overrides.noMetrics,
	}

	if cfg.Postgres.ConnString != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pg, err := sink.OpenPostgres(ctx, cfg.Postgres.ConnString, cfg.Postgres.Table,
			sink.WithPostgresObservability(obs))
		if err == nil {
			if err = pg.EnsureSchema(ctx); err != nil {
				pg.Close()
			}
		}
		cancel()
		if err != nil {
			return nil, err
		}
		rt.sinks = append(rt.sinks, pg)
		rt.closers = append(rt.closers, pg)
	}
	if cfg.PubSub.Topic != "" {
		ps, err := sink.NewPubSubSink(context.Background(), cfg.PubSub, obs)
		if err != nil {
			rt.closeResources()
			return nil, err
		}
		rt.sinks = append(rt.sinks, ps)
		rt.closers = append(rt.closers, ps)
	}
	if len(rt.sinks) == 0 {
		rt.sinks = append(rt.sinks, sink.NewLogSink(log))
	}

	rt.loop = scheduler.NewLoop(0)
	buffer := livebuffer.New(cfg.BufferOptions(), rt.loop, obs)
	p, err := pipeline.New(pipeline.Options{
		Station:      cfg.Station,
		Aggregator:   cfg.AggregatorOptions(),
		ReplayWindow: cfg.ReplayWindow(),
	}, rt.loop, buffer, append(rt.sinks, rt.latest), obs)
	if err != nil {
		rt.closeResources()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}

// Session identifies this runtime in logs.
func (r *Runtime) Session() string { return r.session }

// Registry holds the runtime's Prometheus metrics.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

// Run starts the metrics server and the pipeline and blocks until ctx is
// cancelled or the collector runs out of samples. The runtime cannot be
// restarted.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrRuntimeClosed
	}
	r.log.Info().
		Str("station", r.cfg.Station).
		Str("mode", string(r.cfg.Aggregation.Mode)).
		Int("sinks", len(r.sinks)).
		Msg("runtime starting")

	if r.serveMetrics {
		if err := r.startMetrics(); err != nil {
			r.closed.Store(true)
			r.closeResources()
			return err
		}
	}

	err := r.pipeline.Run(ctx, r.loop, r.collector)
	r.closed.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs := []error{err}
	if r.metricsSrv != nil {
		if e := r.metricsSrv.Shutdown(shutdownCtx); e != nil && !errors.Is(e, http.ErrServerClosed) {
			errs = append(errs, e)
		}
	}
	errs = append(errs, r.closeResources())

	r.log.Info().Msg("runtime stopped")
	return errors.Join(errs...)
}

// ConnectStation switches the monitored station while Run is active.
func (r *Runtime) ConnectStation(ctx context.Context, code string) error {
	return r.call(ctx, func() { r.pipeline.ConnectStation(code) })
}

// Reset drops aggregator state and replays recent buffered history.
func (r *Runtime) Reset(ctx context.Context) error {
	return r.call(ctx, r.pipeline.Reset)
}

// BufferedSamples returns the raw samples currently held for the connected
// station, oldest first.
func (r *Runtime) BufferedSamples(ctx context.Context) ([]Sample, error) {
	var out []Sample
	err := r.call(ctx, func() { out = r.pipeline.BufferedSamples() })
	return out, err
}

func (r *Runtime) BufferStats(ctx context.Context) (BufferStats, error) {
	var out BufferStats
	err := r.call(ctx, func() { out = r.pipeline.BufferStats() })
	return out, err
}

// Latest returns the newest sample emitted to the sinks.
func (r *Runtime) Latest() (Sample, bool) {
	return r.latest.Latest()
}

// MetricsAddr is the address the metrics server listens on, or "" when it is
// not running.
func (r *Runtime) MetricsAddr() string {
	if v, ok := r.metricsAddr.Load().(string); ok {
		return v
	}
	return ""
}

func (r *Runtime) call(ctx context.Context, fn func()) error {
	if !r.started.Load() {
		return ErrRuntimeNotStarted
	}
	if r.closed.Load() {
		return ErrRuntimeClosed
	}
	err := r.loop.Call(ctx, fn)
	if errors.Is(err, scheduler.ErrLoopStopped) {
		return ErrRuntimeClosed
	}
	return err
}

func (r *Runtime) startMetrics() error {
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	r.metricsAddr.Store(ln.Addr().String())

	r.metricsSrv = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := r.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Msg("metrics server exited")
		}
	}()
	return nil
}

func (r *Runtime) closeResources() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
