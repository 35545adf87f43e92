package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
	"github.com/ghalamif/LiveFlow/internal/domain"
)

func TestDumpPrintsBufferFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ST1.dat")
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	content := livebuffer.EncodeRecord(domain.Sample{Timestamp: base, Temperature: 21.5, Humidity: 40}) +
		"garbage\n" +
		livebuffer.EncodeRecord(domain.Sample{
			Timestamp:    base.Add(time.Minute),
			HardwareType: domain.HardwareDavis,
			Temperature:  22,
			Davis:        domain.DavisData{RainRate: 1.5, StormRain: 3.2},
		})
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	dumpFile = path
	t.Cleanup(func() { dumpFile = "" })

	var out bytes.Buffer
	dumpCmd.SetOut(&out)
	require.NoError(t, runDump(dumpCmd, nil))

	text := out.String()
	assert.Contains(t, text, "21.5")
	assert.Contains(t, text, "3.2")
	assert.Contains(t, text, "2 samples from "+path+" (1 invalid records skipped)")
	assert.Equal(t, 4, strings.Count(text, "\n"))
}

func TestDumpMissingFile(t *testing.T) {
	dumpFile = filepath.Join(t.TempDir(), "missing.dat")
	t.Cleanup(func() { dumpFile = "" })

	err := runDump(dumpCmd, nil)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateReportsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "station: ST1\nbuffer:\n  dir: " + t.TempDir() + "\naggregation:\n  mode: average\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	configPath = path
	t.Cleanup(func() { configPath = "./config.yaml" })

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	require.NoError(t, runValidate(validateCmd, nil))
	assert.Contains(t, out.String(), "station=ST1 mode=average")
}

func TestPrintStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","station":"ST1","buffered":3}`))
		case "/metrics":
			_, _ = w.Write([]byte(strings.Join([]string{
				"# TYPE liveflow_samples_received_total counter",
				"liveflow_samples_received_total 12",
				"# TYPE liveflow_buffer_entries gauge",
				"liveflow_buffer_entries 3",
				"# TYPE go_info gauge",
				`go_info{version="go1.24"} 1`,
				"",
			}, "\n")))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := printStats(context.Background(), srv.Client(), srv.URL, &out)
	require.NoError(t, err)

	line := out.String()
	assert.Contains(t, line, "status=ok station=ST1")
	assert.Contains(t, line, "received=12")
	assert.Contains(t, line, "buffered=3")
	assert.Contains(t, line, "sink_errors=0")
	assert.NotContains(t, line, "last_save")
}

func TestPrintStatsRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := printStats(context.Background(), srv.Client(), srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestRunFlagsApplyBeforeValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buffer:\n  dir: "+t.TempDir()+"\n"), 0o644))

	configPath = path
	t.Cleanup(func() {
		configPath = "./config.yaml"
		runStation = ""
		runReplayPath = ""
	})

	_, err := loadRunConfig(runCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station is required")

	runStation = "ST2"
	runReplayPath = "-"
	cfg, err := loadRunConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "ST2", cfg.Station)
	assert.Equal(t, "-", cfg.Replay.Path)
}
