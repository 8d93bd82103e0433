package cli

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/evarconv/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	ProblemID string // optional - specific problem only
}

// ReplayProblemResult holds the replay result for a single problem.
type ReplayProblemResult struct {
	ProblemID string `json:"problem_id"`
	Problem   string `json:"problem"`
	Sessions  int    `json:"sessions"`
	Outcome   string `json:"outcome"`
	Stable    bool   `json:"stable"`
	Divergent string `json:"divergent,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Problems  []ReplayProblemResult `json:"problems"`
	Total     int                   `json:"total"`
	AllStable bool                  `json:"all_stable"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Check that journaled problems were always solved the same way",
		Long: `Group the journal's sessions by problem and check that every attempt
at a problem reached the same outcome and, when it unified, the same
assignments.

Exit codes:
  0 - Every problem is stable
  1 - Some problem was answered differently (differences detected)
  2 - Command error (database not found, etc.)`,
		Example: `  evarconv replay --db ./evarconv.db
  evarconv replay --db ./evarconv.db --problem 3f9c...
  evarconv replay --db ./evarconv.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: journal.path)")
	cmd.Flags().StringVar(&opts.ProblemID, "problem", "", "replay specific problem only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openJournal(formatter, opts.journalPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	var problems []string
	if opts.ProblemID != "" {
		problems = []string{opts.ProblemID}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		problems = lo.Uniq(lo.Map(sessions, func(s store.Session, _ int) string { return s.ProblemID }))
	}

	result := ReplayResult{
		Problems:  make([]ReplayProblemResult, 0, len(problems)),
		AllStable: true,
	}
	for _, id := range problems {
		h, err := st.GetProblemHistory(ctx, id)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to replay problem %s: %v", id, err), nil)
		}
		if len(h.Sessions) == 0 {
			continue
		}
		first := h.Sessions[0]
		result.Problems = append(result.Problems, ReplayProblemResult{
			ProblemID: id,
			Problem:   fmt.Sprintf("%s %s %s", first.Left, convSymbol(first.Conv), first.Right),
			Sessions:  len(h.Sessions),
			Outcome:   first.Outcome,
			Stable:    h.Stable,
			Divergent: h.Divergent,
		})
		if !h.Stable {
			result.AllStable = false
		}
		formatter.VerboseLog("Replayed %s: %d session(s)", id, len(h.Sessions))
	}
	result.Total = len(result.Problems)

	unstable := lo.CountBy(result.Problems, func(p ReplayProblemResult) bool { return !p.Stable })
	msg := fmt.Sprintf("%d of %d problem(s) unstable", unstable, result.Total)

	if formatter.JSON() {
		var failure *CLIError
		if !result.AllStable {
			failure = &CLIError{Code: ErrCodeUnstable, Message: msg}
		}
		if err := formatter.Result(result.AllStable, result, failure); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllStable {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return
	}
	for _, p := range result.Problems {
		if p.Stable {
			fmt.Fprintf(w, "✓ %s  %s (%d session(s))\n", p.Outcome, p.Problem, p.Sessions)
		} else {
			fmt.Fprintf(w, "✗ %s  %s (diverged at session %s)\n", p.Outcome, p.Problem, p.Divergent)
		}
	}
	fmt.Fprintln(w)
	if result.AllStable {
		fmt.Fprintf(w, "All %d problem(s) stable\n", result.Total)
	} else {
		fmt.Fprintf(w, "Unstable problems detected\n")
	}
}
