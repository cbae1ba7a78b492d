package cli

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository/sqlite"
	"github.com/mcronin4/scrappers-cup/internal/domain/ladder"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// Drift is one competitor whose stored rank differs from the replay.
type Drift struct {
	CompetitorID string `json:"competitor_id"`
	Stored       int    `json:"stored"`
	Replayed     int    `json:"replayed"`
}

// VerifyResult holds the verify report.
type VerifyResult struct {
	Events        int     `json:"events"`
	Skipped       int     `json:"skipped"`
	Deterministic bool    `json:"deterministic"`
	Permutation   bool    `json:"permutation"`
	InSync        bool    `json:"in_sync"`
	Drift         []Drift `json:"drift,omitempty"`
}

// OK reports whether every check passed.
func (r VerifyResult) OK() bool { return r.Deterministic && r.Permutation && r.InSync }

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check stored ranks against a dry-run replay",
		Long: `Replay the timeline twice without writing, check both replays agree, check
stored ranks are a permutation of 1..N, and compare them with the replay.

Exit codes:
  0 - All checks passed
  1 - Verification failed
  2 - Command error`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := sqlite.Open(ctx, opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer func() { _ = st.Close() }()

			result, err := verify(ctx, st)
			if err != nil {
				return err
			}
			if err := emit(cmd.OutOrStdout(), opts.Format, result.OK(), result, func(w io.Writer) {
				printVerify(w, result)
			}); err != nil {
				return err
			}
			if !result.OK() {
				return NewExitError(ExitFailure, "verification failed")
			}
			return nil
		},
	}
}

func verify(ctx context.Context, st *sqlite.Store) (VerifyResult, error) {
	engine := rebuild.New(st, rebuild.WithLogger(logger.Named("verify")))

	first, err := engine.Replay(ctx)
	if err != nil {
		return VerifyResult{}, WrapExitError(ExitCommandError, "replay failed", err)
	}
	second, err := engine.Replay(ctx)
	if err != nil {
		return VerifyResult{}, WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := VerifyResult{
		Events:  first.Applied + len(first.Skipped),
		Skipped: len(first.Skipped),
		Deterministic: reflect.DeepEqual(first.Roster, second.Roster) &&
			reflect.DeepEqual(first.Audits, second.Audits),
		Permutation: ladder.IsPermutation(first.Competitors),
	}

	stored := make(map[string]int, len(first.Competitors))
	for _, c := range first.Competitors {
		stored[c.ID] = c.CurrentRank
	}
	for _, u := range first.Ranks() {
		if stored[u.CompetitorID] != u.CurrentRank {
			result.Drift = append(result.Drift, Drift{
				CompetitorID: u.CompetitorID,
				Stored:       stored[u.CompetitorID],
				Replayed:     u.CurrentRank,
			})
		}
	}
	result.InSync = len(result.Drift) == 0
	return result, nil
}

func printVerify(w io.Writer, r VerifyResult) {
	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAILED"
	}
	fmt.Fprintf(w, "Events:        %d (%d skipped)\n", r.Events, r.Skipped)
	fmt.Fprintf(w, "Deterministic: %s\n", mark(r.Deterministic))
	fmt.Fprintf(w, "Permutation:   %s\n", mark(r.Permutation))
	fmt.Fprintf(w, "In sync:       %s\n", mark(r.InSync))
	for _, d := range r.Drift {
		fmt.Fprintf(w, "  %s stored %d, replay %d\n", d.CompetitorID, d.Stored, d.Replayed)
	}
}
