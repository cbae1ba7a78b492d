package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/domain/types"
)

// LeaderboardOptions holds flags for the leaderboard command.
type LeaderboardOptions struct {
	*RootOptions
	All bool
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaderboardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the active leaderboard",
		Long: `Print active competitors in ladder order with their dense display rank.
With --all, inactive competitors are listed too.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := openService(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeFn()

			var entries []types.Entry
			if opts.All {
				entries, err = svc.Roster(ctx)
			} else {
				entries, err = svc.GetActiveLeaderboard(ctx)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read leaderboard", err)
			}
			if entries == nil {
				entries = []types.Entry{}
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, entries, func(w io.Writer) {
				printEntries(w, entries)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include inactive competitors")
	return cmd
}

func printEntries(w io.Writer, entries []types.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No competitors.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRANK\tID\tNAME\tACTIVE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%t\n", e.DisplayRank, e.CurrentRank, e.CompetitorID, e.Name, e.Active)
	}
	_ = tw.Flush()
}
