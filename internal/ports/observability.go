package ports

type Observability interface {
	LogDebug(msg string, fields ...Field)
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by Observability implementations.
const (
	MetricSamplesReceived  = "liveflow_samples_received_total"
	MetricSamplesEmitted   = "liveflow_samples_emitted_total"
	MetricSyntheticSamples = "liveflow_synthetic_samples_total"
	MetricBufferEntries    = "liveflow_buffer_entries"
	MetricBufferAppends    = "liveflow_buffer_appends_total"
	MetricBufferRewrites   = "liveflow_buffer_rewrites_total"
	MetricBufferSaveErrors = "liveflow_buffer_save_errors_total"
	MetricRecordsDropped   = "liveflow_buffer_records_dropped_total"
	MetricSinkErrors       = "liveflow_sink_errors_total"
	MetricStormRainResets  = "liveflow_storm_rain_resets_total"
)
