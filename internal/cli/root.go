// Package cli implements ladderctl, the admin command line for the ladder.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository/sqlite"
	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for ladderctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ladderctl",
		Short: "Administer the Scrappers Cup ladder",
		Long:  "Rebuild, verify and repair the poison ladder stored in a SQLite database.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := logger.InitWith(logger.Options{Output: cmd.ErrOrStderr()}); err != nil {
				return err
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "ladder.db", "path to SQLite database")

	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))

	return cmd
}

// openService opens the database and starts a service over it without the
// startup rebuild. The returned func stops the service and closes the store.
func openService(ctx context.Context, opts *RootOptions) (*service.Service, func(), error) {
	st, err := sqlite.Open(ctx, opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	svc := service.New(
		service.WithStore(st),
		service.WithRebuildOnStart(false),
		service.WithLogger(logger.Named("ladderctl")),
	)
	if err := svc.Start(ctx); err != nil {
		_ = st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start service", err)
	}
	return svc, func() {
		svc.Stop()
		_ = st.Close()
	}, nil
}
