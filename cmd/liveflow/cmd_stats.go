package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var (
	statsURL      string
	statsInterval time.Duration
	statsOnce     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Poll a running pipeline and print live counters",
	Long:  `Read /healthz and /metrics from a running pipeline and print a summary line.`,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsURL, "url", "http://localhost:9100", "base URL of the metrics server")
	statsCmd.Flags().DurationVar(&statsInterval, "interval", 2*time.Second, "refresh interval")
	statsCmd.Flags().BoolVar(&statsOnce, "once", false, "print a single snapshot and exit")
	rootCmd.AddCommand(statsCmd)
}

// Counters shown by stats, in print order.
var statsMetrics = []struct {
	name  string
	label string
}{
	{"liveflow_samples_received_total", "received"},
	{"liveflow_samples_emitted_total", "emitted"},
	{"liveflow_synthetic_samples_total", "synthetic"},
	{"liveflow_buffer_entries", "buffered"},
	{"liveflow_buffer_save_errors_total", "save_errors"},
	{"liveflow_sink_errors_total", "sink_errors"},
}

type healthSnapshot struct {
	Status   string    `json:"status"`
	Station  string    `json:"station"`
	LastSave time.Time `json:"last_save"`
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(statsURL, "/")
	out := cmd.OutOrStdout()

	if statsOnce {
		return printStats(ctx, client, base, out)
	}

	fmt.Fprintf(out, "Streaming stats from %s (Ctrl+C to stop)\n", base)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printStats(ctx, client, base, out); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
			}
		}
	}
}

func printStats(ctx context.Context, client *http.Client, base string, w io.Writer) error {
	var health healthSnapshot
	if err := getJSON(ctx, client, base+"/healthz", &health); err != nil {
		return err
	}
	values, err := scrape(ctx, client, base+"/metrics")
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] status=%s station=%s", time.Now().Format(time.RFC3339), health.Status, health.Station)
	for _, m := range statsMetrics {
		fmt.Fprintf(&b, " %s=%.0f", m.label, values[m.name])
	}
	if !health.LastSave.IsZero() {
		fmt.Fprintf(&b, " last_save=%s", health.LastSave.Local().Format(time.TimeOnly))
	}
	_, err = fmt.Fprintln(w, b.String())
	return err
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	resp, err := get(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// scrape parses a Prometheus text exposition into metric name -> value. Only
// unlabelled counters and gauges are kept.
func scrape(ctx context.Context, client *http.Client, url string) (map[string]float64, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	values := make(map[string]float64, len(families))
	for name, mf := range families {
		metrics := mf.GetMetric()
		if len(metrics) != 1 {
			continue
		}
		switch {
		case metrics[0].GetCounter() != nil:
			values[name] = metrics[0].GetCounter().GetValue()
		case metrics[0].GetGauge() != nil:
			values[name] = metrics[0].GetGauge().GetValue()
		}
	}
	return values, nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// healthz answers 503 with a valid body while the pipeline is stopping.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}
