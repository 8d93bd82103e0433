package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kr/pretty"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/evarconv/internal/harness"
	"github.com/roach88/evarconv/internal/store"
	"github.com/roach88/evarconv/internal/unify"
)

// UnifyOptions holds flags for the unify command.
type UnifyOptions struct {
	*RootOptions
	Signature string
	Vars      []string
	Evars     []string
	Conv      string
	Trace     bool
	Debug     bool
	Metrics   bool
	DBPath    string
}

// UnifyResult is the JSON payload of the unify command.
type UnifyResult struct {
	Session     string             `json:"session"`
	ProblemID   string             `json:"problem_id"`
	Outcome     string             `json:"outcome"`
	Steps       int                `json:"steps"`
	MemoHits    int                `json:"memo_hits"`
	Fallback    bool               `json:"fallback"`
	Assignments map[string]string  `json:"assignments,omitempty"`
	Trace       []unify.TraceEvent `json:"trace,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// NewUnifyCommand creates the unify command.
func NewUnifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "unify <left> <right>",
		Short: "Unify two terms",
		Long: `Decide one problem left = right (or left <= right with --conv leq)
over a signature, and print the evar assignments that solve it.

Local variables are declared with --var, in order:
  --var "x:nat"            x : nat
  --var "y:nat:=S x"       y : nat := S x

Evars are declared with --evar and referenced as ?name:
  --evar "e:nat"           ?e may use every local variable
  --evar "e[x]:nat"        ?e may use only x

Exit codes:
  0 - Terms unified
  1 - Terms not unifiable, fuel exhausted, or invariant violated
  2 - Command error (bad signature, declarations or terms)`,
		Example: `  evarconv unify --sig nat.cue --var "x:nat" --evar "e:nat" "S ?e" "S (S x)"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnify(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Signature, "sig", "", "CUE signature file or directory (required)")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "local variable name:type[:=body], outermost first")
	cmd.Flags().StringArrayVar(&opts.Evars, "evar", nil, "evar name[ctx,...]:type")
	cmd.Flags().StringVar(&opts.Conv, "conv", "eq", "conversion: eq, leq or geq")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the rule trace")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "dump the final evar map to stderr")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report engine counters")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal the session in this database (default: journal.path)")
	_ = cmd.MarkFlagRequired("sig")

	return cmd
}

func runUnify(ctx context.Context, opts *UnifyOptions, left, right string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := LoadSignature(opts.Signature); err != nil {
		return outputLoadError(formatter, err)
	}

	scenario, err := buildScenario(opts, left, right)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, err.Error(), nil)
	}
	if err := scenario.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, err.Error(), nil)
	}

	runOpts := []harness.Option{
		harness.WithConfig(opts.engineConfig()),
		harness.WithLogger(opts.logger()),
		harness.WithSessionIDs(unify.UUIDv7Generator{}),
	}
	if db := opts.journalPath(opts.DBPath); db != "" {
		st, err := store.Open(db)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer st.Close()
		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		runOpts = append(runOpts, harness.WithJournal(st), harness.WithSequencer(unify.NewClockAt(last)))
	}

	var em *engineMetrics
	if opts.Metrics {
		em = newEngineMetrics()
		runOpts = append(runOpts, em.option())
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if len(result.Problems) == 0 {
		// The problem could not be read; the harness says why.
		return formatter.Fail(ExitCommandError, ErrCodeParse, strings.Join(result.Errors, "; "), nil)
	}
	pr := result.Problems[0]

	if opts.Debug && pr.Sigma != nil {
		pretty.Fprintf(formatter.GetErrWriter(), "%# v\n", pr.Sigma)
	}
	var totals map[string]float64
	if em != nil {
		if totals, err = em.totals(); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}
	return outputUnifyResult(formatter, pr, opts.Trace, totals)
}

// buildScenario turns the command line into a one-problem scenario.
func buildScenario(opts *UnifyOptions, left, right string) (*harness.Scenario, error) {
	s := &harness.Scenario{
		Name:        "unify",
		Description: "command line problem",
		Signature:   opts.Signature,
		Problems:    []harness.Problem{{Left: left, Right: right, Conv: opts.Conv}},
	}
	for _, v := range opts.Vars {
		d, err := parseVarFlag(v)
		if err != nil {
			return nil, err
		}
		s.Context = append(s.Context, d)
	}
	for _, e := range opts.Evars {
		d, err := parseEvarFlag(e)
		if err != nil {
			return nil, err
		}
		s.Evars = append(s.Evars, d)
	}
	return s, nil
}

// parseVarFlag reads "name:type" or "name:type:=body".
func parseVarFlag(s string) (harness.Decl, error) {
	name, rest, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return harness.Decl{}, fmt.Errorf("--var %q: expected name:type", s)
	}
	typ, body, _ := strings.Cut(rest, ":=")
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return harness.Decl{}, fmt.Errorf("--var %q: missing type", s)
	}
	return harness.Decl{Name: name, Type: typ, Body: strings.TrimSpace(body)}, nil
}

// parseEvarFlag reads "name:type" or "name[x,y]:type". An empty bracket
// list gives the evar an empty context.
func parseEvarFlag(s string) (harness.EvarDecl, error) {
	head, typ, ok := strings.Cut(s, ":")
	typ = strings.TrimSpace(typ)
	if !ok || typ == "" {
		return harness.EvarDecl{}, fmt.Errorf("--evar %q: expected name:type", s)
	}
	d := harness.EvarDecl{Type: typ}
	name, ctx, hasCtx := strings.Cut(head, "[")
	d.Name = strings.TrimSpace(name)
	if d.Name == "" {
		return harness.EvarDecl{}, fmt.Errorf("--evar %q: missing name", s)
	}
	if hasCtx {
		list, ok := strings.CutSuffix(strings.TrimSpace(ctx), "]")
		if !ok {
			return harness.EvarDecl{}, fmt.Errorf("--evar %q: unterminated context", s)
		}
		d.Context = []string{}
		for _, v := range strings.Split(list, ",") {
			if v = strings.TrimSpace(v); v != "" {
				d.Context = append(d.Context, v)
			}
		}
	}
	return d, nil
}

// outcomeError maps a failed outcome to its error code.
func outcomeError(outcome string) string {
	switch outcome {
	case store.OutcomeFuel:
		return ErrCodeFuel
	case store.OutcomeInvariant:
		return ErrCodeInvariant
	default:
		return ErrCodeNotUnifiable
	}
}

func outputUnifyResult(formatter *OutputFormatter, pr harness.ProblemResult, showTrace bool, metrics map[string]float64) error {
	ok := pr.Outcome == store.OutcomeUnified
	data := UnifyResult{
		Session:     pr.Session,
		ProblemID:   pr.ProblemID,
		Outcome:     pr.Outcome,
		Steps:       pr.Steps,
		MemoHits:    pr.MemoHits,
		Fallback:    pr.Fallback,
		Assignments: pr.Assignments,
		Metrics:     metrics,
	}
	if showTrace {
		data.Trace = pr.Trace
	}
	msg := fmt.Sprintf("%s %s %s: %s", pr.Left, convSymbol(pr.Conv), pr.Right, pr.Outcome)

	if formatter.JSON() {
		var failure *CLIError
		if !ok {
			failure = &CLIError{Code: outcomeError(pr.Outcome), Message: msg}
		}
		if err := formatter.Result(ok, data, failure); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if ok {
			fmt.Fprintf(w, "✓ %s\n", msg)
		} else {
			fmt.Fprintf(w, "✗ %s\n", msg)
		}
		for _, name := range sortedKeys(pr.Assignments) {
			fmt.Fprintf(w, "  ?%s := %s\n", name, pr.Assignments[name])
		}
		fmt.Fprintf(w, "  session %s, %d step(s), %d memo hit(s)\n", pr.Session, pr.Steps, pr.MemoHits)
		if showTrace {
			fmt.Fprintln(w)
			printTrace(formatter, pr.Trace)
		}
		if metrics != nil {
			printMetrics(w, metrics)
		}
	}

	if !ok {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

func convSymbol(conv string) string {
	switch conv {
	case "leq":
		return "<="
	case "geq":
		return ">="
	default:
		return "="
	}
}

// printTrace writes trace events indented by depth.
func printTrace(formatter *OutputFormatter, trace []unify.TraceEvent) {
	for _, ev := range trace {
		line := strings.Repeat("  ", ev.Depth) + ev.Rule
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Fprintf(formatter.Writer, "  %s\n", line)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
