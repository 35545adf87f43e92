package aggregator

import (
	"time"

	"github.com/guregu/null"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// aggregationState accumulates one window. It is replaced as a whole when a
// window is emitted.
type aggregationState struct {
	anchor  time.Time
	samples int
	genuine int

	temperature         float64
	indoorTemperature   float64
	apparentTemperature float64
	windChill           float64
	dewPoint            float64
	humidity            float64
	indoorHumidity      float64
	pressure            float64
	windSpeed           float64
	gustWindSpeed       float64
	windDirection       float64

	davisSamples          int
	consoleBatteryVoltage float64
	uvIndex               float64
	solarRadiation        float64
	rainRate              float64 // max or sum, depending on maxRainRate
	stormRain             float64 // per-sample deltas summed over the window
	stormLast             float64 // value for the newest sample
	extraSum              [domain.ExtraSensorCount]float64
	extraCount            [domain.ExtraSensorCount]int

	last domain.Sample
}

// Averaged emits the mean of every sample received in contiguous windows of
// a fixed timespan. The very first sample is emitted as is so consumers get
// a point immediately.
type Averaged struct {
	timespan    time.Duration
	maxRainRate bool
	emit        ports.Emitter
	obs         ports.Observability

	started bool
	state   aggregationState
	storm   stormTracker
}

func NewAveraged(timespan time.Duration, maxRainRate, runningTotalRain bool, emit ports.Emitter, obs ports.Observability) *Averaged {
	if timespan <= 0 {
		timespan = time.Minute
	}
	return &Averaged{
		timespan:    timespan,
		maxRainRate: maxRainRate,
		emit:        emit,
		obs:         obs,
		storm:       newStormTracker(runningTotalRain),
	}
}

func (a *Averaged) Incoming(s domain.Sample) {
	if !a.started {
		a.started = true
		a.state = aggregationState{anchor: s.Timestamp.Truncate(a.timespan)}
		a.emit(s)
		a.fold(s)
		// The raw first point carries the storm total; later windows
		// report rain relative to it.
		a.state.stormRain = 0
		return
	}

	end := a.state.anchor.Add(a.timespan)
	if !s.Timestamp.Before(end) {
		a.emit(a.finish())
		next := end
		if gap := s.Timestamp.Sub(end); gap >= a.timespan {
			next = end.Add(gap / a.timespan * a.timespan)
		}
		a.state = aggregationState{anchor: next}
	}
	a.fold(s)
}

// Flush emits the current window if it holds any samples and moves on to the
// next window.
func (a *Averaged) Flush() {
	if !a.started || a.state.samples == 0 {
		return
	}
	next := a.state.anchor.Add(a.timespan)
	a.emit(a.finish())
	a.state = aggregationState{anchor: next}
}

func (a *Averaged) Reset() {
	a.started = false
	a.state = aggregationState{}
	a.storm.reset()
}

func (a *Averaged) fold(s domain.Sample) {
	st := &a.state
	st.samples++
	if !s.Synthetic {
		st.genuine++
	}
	st.temperature += s.Temperature
	st.indoorTemperature += s.IndoorTemperature
	st.apparentTemperature += s.ApparentTemperature
	st.windChill += s.WindChill
	st.dewPoint += s.DewPoint
	st.humidity += s.Humidity
	st.indoorHumidity += s.IndoorHumidity
	st.pressure += s.Pressure
	st.windSpeed += s.WindSpeed
	st.gustWindSpeed += s.GustWindSpeed
	st.windDirection += s.WindDirection
	st.last = s

	if !s.IsDavis() {
		return
	}
	st.davisSamples++
	st.consoleBatteryVoltage += s.Davis.ConsoleBatteryVoltage
	st.uvIndex += s.Davis.UVIndex
	st.solarRadiation += s.Davis.SolarRadiation
	if a.maxRainRate {
		if s.Davis.RainRate > st.rainRate {
			st.rainRate = s.Davis.RainRate
		}
	} else {
		st.rainRate += s.Davis.RainRate
	}
	// Every sample goes through the tracker so a storm that ends and
	// restarts inside one window still counts its rain.
	rain, wentBack := a.storm.observe(s.Davis.StormRain, s.Davis.StormDateValid)
	if wentBack {
		a.obs.IncCounter(ports.MetricStormRainResets, 1)
	}
	st.stormRain += rain
	st.stormLast = rain

	extra := s.Davis.Extra
	for i, ch := range extra.Channels() {
		if ch.Valid {
			st.extraSum[i] += ch.Float64
			st.extraCount[i]++
		}
	}
}

// finish converts the current window into a sample. Callers guarantee at
// least one folded sample.
func (a *Averaged) finish() domain.Sample {
	st := &a.state
	n := float64(st.samples)

	out := domain.Sample{
		Timestamp:           st.anchor,
		HardwareType:        st.last.HardwareType,
		IndoorDataAvailable: st.last.IndoorDataAvailable,
		Temperature:         st.temperature / n,
		IndoorTemperature:   st.indoorTemperature / n,
		ApparentTemperature: st.apparentTemperature / n,
		WindChill:           st.windChill / n,
		DewPoint:            st.dewPoint / n,
		Humidity:            st.humidity / n,
		IndoorHumidity:      st.indoorHumidity / n,
		Pressure:            st.pressure / n,
		WindSpeed:           st.windSpeed / n,
		GustWindSpeed:       st.gustWindSpeed / n,
		WindDirection:       st.windDirection / n,
		Synthetic:           st.genuine == 0,
	}

	if !out.IsDavis() || st.davisSamples == 0 {
		return out
	}

	d := float64(st.davisSamples)
	last := st.last.Davis
	out.Davis = domain.DavisData{
		StormStartDate:        last.StormStartDate,
		StormDateValid:        last.StormDateValid,
		BarometerTrend:        last.BarometerTrend,
		ForecastIcon:          last.ForecastIcon,
		ForecastRule:          last.ForecastRule,
		TxBatteryStatus:       last.TxBatteryStatus,
		ConsoleBatteryVoltage: st.consoleBatteryVoltage / d,
		UVIndex:               st.uvIndex / d,
		SolarRadiation:        st.solarRadiation / d,
		RainRate:              st.rainRate,
	}
	if !a.maxRainRate {
		out.Davis.RainRate = st.rainRate / d
	}

	out.Davis.StormRain = st.stormRain
	if a.storm.runningTotal {
		out.Davis.StormRain = st.stormLast
	}

	for i, ch := range out.Davis.Extra.Channels() {
		if st.extraCount[i] > 0 {
			*ch = null.FloatFrom(st.extraSum[i] / float64(st.extraCount[i]))
		}
	}
	return out
}

var _ ports.Aggregator = (*Averaged)(nil)
