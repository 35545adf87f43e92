package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	liveflow "github.com/ghalamif/LiveFlow"
	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
)

var (
	dumpStation string
	dumpFile    string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print a station's persisted live buffer",
	Long: `Decode the live buffer file of a station and print one line per sample,
oldest first. Invalid records are counted and skipped.`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpStation, "station", "", "station code, defaults to the configured station")
	dumpCmd.Flags().StringVar(&dumpFile, "file", "", "buffer file to read instead of resolving it from the config")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	path := dumpFile
	if path == "" {
		cfg, err := liveflow.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		station := dumpStation
		if station == "" {
			station = cfg.Station
		}
		path = livebuffer.FilePath(cfg.Buffer.Dir, station)
	}

	samples, dropped, err := livebuffer.ReadFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printSamples(out, samples); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d samples from %s", len(samples), path)
	if dropped > 0 {
		fmt.Fprintf(out, " (%d invalid records skipped)", dropped)
	}
	fmt.Fprintln(out)
	return nil
}

func printSamples(w io.Writer, samples []liveflow.Sample) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tHW\tTEMP\tHUM\tPRESS\tWIND\tGUST\tDIR\tRAIN RATE\tSTORM")
	for _, s := range samples {
		rainRate, storm := "-", "-"
		if s.IsDavis() {
			rainRate = fmt.Sprintf("%.1f", s.Davis.RainRate)
			storm = fmt.Sprintf("%.1f", s.Davis.StormRain)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.0f\t%.1f\t%.1f\t%.1f\t%.0f\t%s\t%s\n",
			s.Timestamp.Local().Format(time.DateTime),
			s.HardwareType,
			s.Temperature,
			s.Humidity,
			s.Pressure,
			s.WindSpeed,
			s.GustWindSpeed,
			s.WindDirection,
			rainRate,
			storm,
		)
	}
	return tw.Flush()
}
