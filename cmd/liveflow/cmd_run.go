package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	liveflow "github.com/ghalamif/LiveFlow"
)

var (
	configPath     string
	runStation     string
	runReplayPath  string
	runReplaySpeed float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the live pipeline",
	Long: `Load the configuration, connect to the station and stream live samples
until interrupted or until the replay file is exhausted.`,
	RunE: runPipeline,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long:  `Load and validate a configuration file without starting the pipeline.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to the configuration file")

	runCmd.Flags().StringVar(&runStation, "station", "", "override the configured station code")
	runCmd.Flags().StringVar(&runReplayPath, "replay", "", "replay samples from a buffer file (- for stdin)")
	runCmd.Flags().Float64Var(&runReplaySpeed, "speed", 0, "replay speed multiplier, 0 plays as fast as possible")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	flow, err := liveflow.ConfFromConfig(cfg)
	if err != nil {
		return err
	}
	err = flow.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadRunConfig applies the command line overrides before validating, so
// --station can supply a station the file leaves out.
func loadRunConfig(cmd *cobra.Command) (*liveflow.Config, error) {
	cfg, err := liveflow.ReadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %s: %w", configPath, err)
	}
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *liveflow.Config) {
	if runStation != "" {
		cfg.Station = runStation
	}
	if runReplayPath != "" {
		cfg.Replay.Path = runReplayPath
	}
	if cmd.Flags().Changed("speed") {
		cfg.Replay.Speed = runReplaySpeed
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := liveflow.LoadConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config %s ok: station=%s mode=%s buffer=%s\n",
		configPath, cfg.Station, cfg.Aggregation.Mode, cfg.Buffer.Dir)
	return nil
}
