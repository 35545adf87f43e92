package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ghalamif/LiveFlow/internal/ports"
)

// PromObs logs through zerolog and keeps the pipeline's Prometheus metrics.
type PromObs struct {
	log      zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

// NewPromObs registers the LiveFlow metrics with reg. A nil reg means the
// default Prometheus registerer.
func NewPromObs(log zerolog.Logger, reg prometheus.Registerer) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		ports.MetricSamplesReceived:  counter(ports.MetricSamplesReceived, "Genuine samples received from the collector."),
		ports.MetricSamplesEmitted:   counter(ports.MetricSamplesEmitted, "Samples emitted by the aggregator chain to sinks."),
		ports.MetricSyntheticSamples: counter(ports.MetricSyntheticSamples, "Samples synthesized by the repeater."),
		ports.MetricBufferAppends:    counter(ports.MetricBufferAppends, "Live buffer saves that appended to the existing file."),
		ports.MetricBufferRewrites:   counter(ports.MetricBufferRewrites, "Live buffer saves that rewrote the whole file."),
		ports.MetricBufferSaveErrors: counter(ports.MetricBufferSaveErrors, "Live buffer saves or loads that failed."),
		ports.MetricRecordsDropped:   counter(ports.MetricRecordsDropped, "Persisted records discarded while loading."),
		ports.MetricSinkErrors:       counter(ports.MetricSinkErrors, "Sink writes that returned an error."),
		ports.MetricStormRainResets:  counter(ports.MetricStormRainResets, "Storm rain counter resets detected."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.MetricBufferEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ports.MetricBufferEntries,
			Help: "Samples currently held by the live buffer.",
		}),
	}

	for _, c := range counters {
		reg.MustRegister(c)
	}
	for _, g := range gauges {
		reg.MustRegister(g)
	}

	return &PromObs{log: log, counters: counters, gauges: gauges}
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	withFields(p.log.Debug(), fields).Msg(msg)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.log.Info(), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Error().Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func withFields(e *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

var _ ports.Observability = (*PromObs)(nil)
