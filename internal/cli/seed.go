package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/seed"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File  string
	Actor string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import competitors, contests and adjustments from YAML",
		Long: `Import a YAML seed file. Competitors join the ladder in listed order,
then contests and adjustments are recorded as if entered by hand.

Examples:
  ladderctl seed --db ./ladder.db --file roster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := seed.Load(opts.File)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load seed file", err)
			}

			ctx := cmd.Context()
			svc, closeFn, err := openService(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := seed.Apply(ctx, svc, f, opts.Actor)
			if err != nil {
				return WrapExitError(ExitCommandError, "seed failed", err)
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, sum, func(w io.Writer) {
				fmt.Fprintf(w, "Seeded %d competitors, %d contests, %d adjustments.\n",
					sum.Competitors, sum.Contests, sum.Adjustments)
			})
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "path to YAML seed file (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&opts.Actor, "actor", "seed", "actor recorded on seeded writes")
	return cmd
}
