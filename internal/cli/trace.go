package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evarconv/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	List     bool
	Rule     string // optional - filter to one rule
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session     store.Session      `json:"session"`
	Assignments []store.Assignment `json:"assignments"`
	Trace       []store.TraceRow   `json:"trace"`
	Stats       TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	MaxDepth    int            `json:"max_depth"`
	Rules       map[string]int `json:"rules"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "Show how a journaled problem was solved",
		Long: `Print the rule trace of a journaled session, indented by recursion
depth, followed by the assignments it produced. The session may be given
by any unambiguous id prefix. With --list, print every session instead.`,
		Example: `  evarconv trace --db ./evarconv.db --list
  evarconv trace --db ./evarconv.db 0190a1b2
  evarconv trace --db ./evarconv.db 0190a1b2 --rule meta-inst --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runTrace(cmd.Context(), opts, prefix, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: journal.path)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list journaled sessions")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "show only events of this rule")

	return cmd
}

// openJournal opens an existing journal. Unlike store.Open it does not
// create a missing database.
func openJournal(formatter *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, "no journal: pass --db or set journal.path", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	return st, nil
}

func runTrace(ctx context.Context, opts *TraceOptions, prefix string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openJournal(formatter, opts.journalPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.List {
		return listSessions(ctx, formatter, st)
	}
	if prefix == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "a session id is required unless --list is given", nil)
	}

	sess, err := st.FindSession(ctx, prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no session matches %q", prefix), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	rec, err := st.ReadRecord(ctx, sess.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}

	result := buildTraceResult(rec, opts.Rule)
	if formatter.JSON() {
		return formatter.Result(true, result, nil)
	}
	outputTraceText(formatter, result)
	return nil
}

func buildTraceResult(rec store.Record, rule string) TraceResult {
	result := TraceResult{
		Session:     rec.Session,
		Assignments: rec.Assignments,
		Trace:       []store.TraceRow{},
		Stats:       TraceStats{Rules: make(map[string]int)},
	}
	if result.Assignments == nil {
		result.Assignments = []store.Assignment{}
	}
	for _, row := range rec.Trace {
		result.Stats.Rules[row.Rule]++
		result.Stats.MaxDepth = max(result.Stats.MaxDepth, row.Depth)
		if rule == "" || row.Rule == rule {
			result.Trace = append(result.Trace, row)
		}
	}
	result.Stats.TotalEvents = len(rec.Trace)
	return result
}

func outputTraceText(formatter *OutputFormatter, r TraceResult) {
	w := formatter.Writer
	s := r.Session
	fmt.Fprintf(w, "Session %s\n", s.ID)
	if s.Scenario != "" {
		fmt.Fprintf(w, "  scenario: %s\n", s.Scenario)
	}
	fmt.Fprintf(w, "  problem:  %s %s %s\n", s.Left, convSymbol(s.Conv), s.Right)
	fmt.Fprintf(w, "  outcome:  %s (%d step(s), %d memo hit(s))\n", s.Outcome, s.Steps, s.MemoHits)
	if s.Fallback {
		fmt.Fprintln(w, "  solved by the fallback solver")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Trace:")
	if len(r.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, row := range r.Trace {
		line := strings.Repeat("  ", row.Depth) + row.Rule
		if row.Detail != "" {
			line += "  " + row.Detail
		}
		fmt.Fprintf(w, "  [%d] %s\n", row.Seq, line)
	}

	if len(r.Assignments) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Assignments:")
		for _, a := range r.Assignments {
			fmt.Fprintf(w, "  ?%d := %s\n", a.Evar, a.Body)
		}
	}
}

// listSessions prints every session in journal order.
func listSessions(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	if formatter.JSON() {
		return formatter.Result(true, sessions, nil)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions found in database.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(formatter.Writer, "%s  %-9s  %s %s %s\n", s.ID, s.Outcome, s.Left, convSymbol(s.Conv), s.Right)
	}
	return nil
}
