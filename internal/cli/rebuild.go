package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Replay the timeline and commit ranks and audits",
		Long: `Replay every timeline event from baseline ranks and commit the resulting
ranks and audit fields in one batch. Running it twice changes nothing.

Examples:
  ladderctl rebuild --db ./ladder.db
  ladderctl rebuild --db ./ladder.db --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := openService(ctx, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.RebuildAll(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "rebuild failed", err)
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, res, func(w io.Writer) {
				fmt.Fprintf(w, "Rebuild complete: %d events replayed, %d competitors updated, %d skipped.\n",
					res.EventsReplayed, res.UpdatedCompetitors, len(res.Skipped))
				for _, s := range res.Skipped {
					fmt.Fprintf(w, "  skipped %s (%s): %s\n", s.EventID, s.Kind, s.Reason)
				}
			})
		},
	}
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Repair stored ranks to a dense 1..N",
		Long: `Rewrite stored ranks to 1..N keeping their relative order. Ties keep
creation order. This is a repair for damaged data and is not part of replay.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := openService(ctx, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			changed, err := svc.Normalize(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "normalize failed", err)
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, map[string]int{"changed": changed}, func(w io.Writer) {
				fmt.Fprintf(w, "Normalized: %d competitors changed.\n", changed)
			})
		},
	}
}
