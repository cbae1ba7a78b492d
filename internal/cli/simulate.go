package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/simulate"
)

// Default simulation settings.
const (
	defaultSimCompetitors = 16
	defaultSimContests    = 500
	defaultWorkersFactor  = 2
	defaultSimTimeout     = 30 * time.Second
	defaultSimDeadline    = 10 * time.Minute
)

// NewSimulateCommand creates the simulate command. It talks to a running
// server and ignores --db.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	cfg := &simulate.Config{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a running server with random contests and verify the ladder",
		Long: `Create sim players if needed, submit random contests concurrently, then
check the roster is a permutation, the leaderboard is dense and a repeated
rebuild changes nothing.

Examples:
  ladderctl simulate --url http://localhost:9080 --contests 2000 --workers 16`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Verbose = opts.Verbose
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultSimDeadline)
			defer cancel()

			stats, err := simulate.Run(ctx, cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "simulation failed", err)
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Submitted %d contests (%d recorded, %d pending, %d failed) over %d competitors in %s.\n",
					stats.ContestsSubmitted, stats.ContestsRecorded, stats.ContestsPending,
					stats.ContestsFailed, stats.RosterSize, stats.Duration.Round(time.Millisecond))
			})
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	cmd.Flags().IntVar(&cfg.Competitors, "competitors", defaultSimCompetitors, "minimum roster size")
	cmd.Flags().IntVar(&cfg.Contests, "contests", defaultSimContests, "number of contests to submit")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersFactor, "number of concurrent submitters")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultSimTimeout, "HTTP request timeout")
	cmd.Flags().StringVar(&cfg.Token, "token", "", "bearer token for mutating routes")
	cmd.Flags().StringVar(&cfg.Actor, "actor", "simulator", "X-Actor header when no token is given")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
