package aggregator

import (
	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// Passthrough forwards every sample as received. For Davis hardware the storm
// rain field is rewritten to a delta unless running totals are requested.
type Passthrough struct {
	emit  ports.Emitter
	obs   ports.Observability
	storm stormTracker
}

func NewPassthrough(runningTotalRain bool, emit ports.Emitter, obs ports.Observability) *Passthrough {
	return &Passthrough{
		emit:  emit,
		obs:   obs,
		storm: newStormTracker(runningTotalRain),
	}
}

func (p *Passthrough) Incoming(s domain.Sample) {
	if s.IsDavis() {
		rain, wentBack := p.storm.observe(s.Davis.StormRain, s.Davis.StormDateValid)
		if wentBack {
			p.obs.IncCounter(ports.MetricStormRainResets, 1)
		}
		s.Davis.StormRain = rain
	}
	p.emit(s)
}

func (p *Passthrough) Reset() {
	p.storm.reset()
}

func (p *Passthrough) Flush() {}

var _ ports.Aggregator = (*Passthrough)(nil)
