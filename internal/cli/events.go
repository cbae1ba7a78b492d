package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// EventRow is one timeline row in command output.
type EventRow struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	TS      time.Time `json:"ts"`
	OldRank int       `json:"old_rank"`
	NewRank int       `json:"new_rank"`
	Note    string    `json:"note"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the timeline with the audit of the last rebuild",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := openService(ctx, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			events, err := svc.Timeline(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read timeline", err)
			}
			rows := make([]EventRow, 0, len(events))
			for _, e := range events {
				rows = append(rows, newEventRow(e))
			}
			return emit(cmd.OutOrStdout(), opts.Format, true, rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TS\tKIND\tID\tOLD\tNEW\tNOTE")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
						r.TS.Format(time.RFC3339), r.Kind, r.ID, r.OldRank, r.NewRank, r.Note)
				}
				_ = tw.Flush()
			})
		},
	}
}

func newEventRow(e model.Event) EventRow {
	return EventRow{
		ID:      e.ID,
		Kind:    string(e.Kind()),
		TS:      e.Timestamp.UTC(),
		OldRank: e.Audit.OldRank,
		NewRank: e.Audit.NewRank,
		Note:    e.Audit.Note,
	}
}
