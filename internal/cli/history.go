package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/conduit/internal/runlog"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded simulation runs",
		Long: `List runs recorded in a run log, newest first.

Example:
  conduit history --db ./runs.db
  conduit history --db ./runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run log (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	// History never creates a database: a missing path is a command
	// error, not an empty listing.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "run log not found", err)
	}

	store, err := runlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run log", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := store.List(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(runs); err != nil {
		return WrapExitError(ExitCommandError, "failed to render runs", err)
	}
	return nil
}
