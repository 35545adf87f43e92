package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/LiveFlow/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(zerolog.Nop(), reg)

	obs.IncCounter(ports.MetricSamplesReceived, 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(obs.counters[ports.MetricSamplesReceived]))

	obs.IncCounter(ports.MetricSyntheticSamples, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.counters[ports.MetricSyntheticSamples]))

	obs.SetGauge(ports.MetricBufferEntries, 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(obs.gauges[ports.MetricBufferEntries]))

	// Unknown names are ignored.
	obs.IncCounter("does_not_exist", 1)
	obs.SetGauge("does_not_exist", 1)

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestPromObsLogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObs(zerolog.New(&buf), prometheus.NewRegistry())

	obs.LogError("buffer_save_failed", errors.New("disk full"),
		ports.Field{Key: "station", Value: "sb"})

	out := buf.String()
	assert.Contains(t, out, `"message":"buffer_save_failed"`)
	assert.Contains(t, out, `"error":"disk full"`)
	assert.Contains(t, out, `"station":"sb"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	_, err = NewLogger(&buf, "loud", "json")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)

	buf.Reset()
	log, err = NewLogger(&buf, "", "console")
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
