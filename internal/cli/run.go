package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/conduit/internal/runlog"
	"github.com/roach88/conduit/internal/sim"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Producers int
	Consumers int
	Items     int
	Capacity  int
	Jitter    bool
	Scenario  string
	Database  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a producer/consumer simulation",
		Long: `Run a simulation against the bounded exchange.

A fleet of producer goroutines pushes integer-pair items through the
exchange to a fleet of consumer goroutines; the run report verifies that
every item arrived exactly once and that every consumer saw end-of-stream.

The fleet is configured by flags, or by a YAML scenario file which takes
precedence over the fleet flags.

Example:
  conduit run --producers 2 --consumers 5 --items 30 --capacity 8
  conduit run --scenario scenarios/smoke.yaml --db ./runs.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Producers, "producers", 2, "number of producer goroutines")
	cmd.Flags().IntVar(&opts.Consumers, "consumers", 5, "number of consumer goroutines")
	cmd.Flags().IntVar(&opts.Items, "items", 30, "items each producer pushes")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 8, "exchange buffer capacity")
	cmd.Flags().BoolVar(&opts.Jitter, "jitter", false, "add random scheduling jitter")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a YAML scenario file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite run log")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := sim.Config{
		Producers:        opts.Producers,
		Consumers:        opts.Consumers,
		ItemsPerProducer: opts.Items,
		Capacity:         opts.Capacity,
		Jitter:           opts.Jitter,
	}
	if opts.Scenario != "" {
		scenario, err := LoadScenario(opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		cfg = scenario.Config()
	}
	cfg.Logger = logger

	// Setup signal handling so Ctrl-C cancels the run instead of leaving
	// blocked goroutines behind. Use the command's context if available
	// (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := sim.Run(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "simulation failed", err)
	}

	if opts.Database != "" {
		store, err := runlog.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open run log", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Error("error closing run log", "error", closeErr)
			}
		}()
		if err := store.Record(ctx, report); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Info("run recorded", "run", report.RunID, "db", opts.Database)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(report); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}

	// A report that fails its own invariants is a run failure, distinct
	// from a command error.
	if err := report.Check(); err != nil {
		return WrapExitError(ExitFailure, "run failed verification", err)
	}
	return nil
}
