// Command schedtrace converts a perf sched recording into Chrome Trace
// Event JSON, viewable in Perfetto or chrome://tracing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"schedtrace/internal/archive"
	"schedtrace/internal/config"
	"schedtrace/internal/engine"
	"schedtrace/internal/eventstream"
	"schedtrace/internal/recfilter"
	"schedtrace/internal/timewindow"
	"schedtrace/internal/traceevent"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedtrace <input> <output>",
		Short: "Convert a perf sched recording to Chrome Trace Event JSON",
		Long: `schedtrace reads a recording archive (a tar holding the process
snapshot and the perf script dump, optionally gzip/zstd/xz compressed)
and writes a JSON trace document for Perfetto or chrome://tracing.`,
		Args:          cobra.ExactArgs(2),
		RunE:          runConvert,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.Float64P("skip", "s", 0, "seconds of data to skip")
	flags.Float64P("duration", "d", 0, "seconds of data to process (0 = all)")
	flags.Float64P("wait", "w", 3, "threshold in ms for the waiting track")
	flags.StringP("filter", "f", "", "record filter expression")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	filter, err := recfilter.Compile(cfg.FilterExpr)
	if err != nil {
		return err
	}

	rec, err := archive.Open(args[0])
	if err != nil {
		return err
	}
	defer rec.Close()

	eng := engine.New(cfg.WaitThresholdMS, rec.Snapshot.IsKernel, logger)
	window := timewindow.New(cfg.SkipSeconds, cfg.DurationSeconds)
	if err := eventstream.New(eng, window, filter, logger).Run(rec.Data); err != nil {
		return err
	}
	events := eng.Finalize()

	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := traceevent.WriteDocument(out, events); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	logger.Info("wrote trace document",
		zap.String("path", args[1]), zap.Int("events", len(events)))
	return nil
}

// loadConfig reads the environment configuration and lets explicitly set
// flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("skip") {
		cfg.SkipSeconds, _ = flags.GetFloat64("skip")
	}
	if flags.Changed("duration") {
		cfg.DurationSeconds, _ = flags.GetFloat64("duration")
	}
	if flags.Changed("wait") {
		cfg.WaitThresholdMS, _ = flags.GetFloat64("wait")
	}
	if flags.Changed("filter") {
		cfg.FilterExpr, _ = flags.GetString("filter")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
