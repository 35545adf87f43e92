package sink

import (
	"github.com/rs/zerolog"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// LogSink writes each emitted sample as one structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("sink", "log").Logger()}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) WriteBatch(samples []domain.Sample) error {
	for _, s := range samples {
		e := l.log.Info().
			Time("ts", s.Timestamp).
			Str("hw", s.HardwareType.String()).
			Bool("synthetic", s.Synthetic).
			Float64("temperature", s.Temperature).
			Float64("humidity", s.Humidity).
			Float64("pressure", s.Pressure).
			Float64("wind_speed", s.WindSpeed).
			Float64("gust_wind_speed", s.GustWindSpeed).
			Float64("wind_direction", s.WindDirection)
		if s.IsDavis() {
			e = e.Float64("storm_rain", s.Davis.StormRain).
				Float64("rain_rate", s.Davis.RainRate)
		}
		e.Msg("sample")
	}
	return nil
}

var _ ports.Sink = (*LogSink)(nil)
