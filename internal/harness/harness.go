package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/compiler"
	"github.com/roach88/evarconv/internal/config"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/store"
	"github.com/roach88/evarconv/internal/syntax"
	"github.com/roach88/evarconv/internal/term"
	"github.com/roach88/evarconv/internal/testutil"
	"github.com/roach88/evarconv/internal/unify"
)

// Harness runs scenarios against a configured engine.
type Harness struct {
	cfg     config.Config
	journal *store.Store
	ids     unify.SessionIDGenerator
	clock   unify.Sequencer
	logger  *slog.Logger
	extra   []unify.Option
}

// Option configures a run.
type Option func(*Harness)

// WithConfig sets the base engine configuration. Scenario options are
// applied on top of it. Default: config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(h *Harness) { h.cfg = *cfg }
}

// WithJournal records every problem as a session in st.
func WithJournal(st *store.Store) Option {
	return func(h *Harness) { h.journal = st }
}

// WithSessionIDs sets the session id generator.
// Default: <scenario name>-1, <scenario name>-2, ...
func WithSessionIDs(g unify.SessionIDGenerator) Option {
	return func(h *Harness) { h.ids = g }
}

// WithSequencer sets the clock stamping sessions and trace events.
// Default: a fresh deterministic clock per run.
func WithSequencer(s unify.Sequencer) Option {
	return func(h *Harness) { h.clock = s }
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...unify.Option) Option {
	return func(h *Harness) { h.extra = append(h.extra, opts...) }
}

// scope is the compiled state of a scenario.
type scope struct {
	sig      *env.Signature
	env      *env.Env
	evars    map[string]int
	names    map[int]string
	sigma    *evd.Map
	registry *canonical.Registry
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the signature and read the context and evar declarations
// 2. Build an engine from the configuration and scenario options
// 3. Run each problem, threading the evar map through unified problems
// 4. Check outcomes, assignments and assertions
// 5. Journal each problem when a store is configured
//
// A malformed scenario is returned as an error; unmet expectations are
// reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		cfg:    *config.Default(),
		ids:    testutil.NewSequentialSessionGenerator(scenario.Name),
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	sc, err := h.load(scenario)
	if err != nil {
		return nil, err
	}

	cfg := scenario.Options.apply(h.cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	engOpts := append(cfg.Options(),
		unify.WithRegistry(sc.registry),
		unify.WithSessionIDs(h.ids),
		unify.WithSequencer(h.clock),
		unify.WithLogger(h.logger),
	)
	eng := unify.New(append(engOpts, h.extra...)...)

	result := NewResult(scenario.Name)
	for i, p := range scenario.Problems {
		pr, err := h.runProblem(ctx, eng, sc, scenario, i, p, result)
		if err != nil {
			return nil, err
		}
		if pr != nil {
			result.Problems = append(result.Problems, *pr)
		}
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"problems", len(result.Problems),
		"pass", result.Pass,
	)
	return result, nil
}

// load compiles the signature and declares the context and evars.
func (h *Harness) load(s *Scenario) (*scope, error) {
	compiled, err := compiler.LoadSignature(s.Signature)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	sig := compiled.Sig

	var lctx term.Context
	for _, d := range s.Context {
		typ, err := syntax.Parse(syntax.Scope{Sig: sig, Ctx: lctx}, d.Type)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: context %s: type: %w", s.Name, d.Name, err)
		}
		decl := term.Decl{Name: d.Name, Type: typ}
		if d.Body != "" {
			if decl.Body, err = syntax.Parse(syntax.Scope{Sig: sig, Ctx: lctx}, d.Body); err != nil {
				return nil, fmt.Errorf("scenario %s: context %s: body: %w", s.Name, d.Name, err)
			}
		}
		lctx = append(lctx, decl)
	}

	sc := &scope{
		sig:      sig,
		env:      env.New(sig, lctx),
		evars:    make(map[string]int, len(s.Evars)),
		names:    make(map[int]string, len(s.Evars)),
		sigma:    evd.New(),
		registry: compiled.Registry,
	}
	for _, ev := range s.Evars {
		ectx := evarContext(lctx, ev.Context)
		typ, err := syntax.Parse(sc.syntaxScope(ectx, sc.sigma), ev.Type)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: evar %s: type: %w", s.Name, ev.Name, err)
		}
		var id int
		sc.sigma, id = sc.sigma.NewEvar(ectx, typ, "scenario:"+ev.Name)
		sc.evars[ev.Name] = id
		sc.names[id] = ev.Name
	}
	return sc, nil
}

// evarContext keeps the entries of lctx named in names, in context order.
// nil names selects the whole context.
func evarContext(lctx term.Context, names []string) term.Context {
	if names == nil {
		return lctx
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	out := term.Context{}
	for _, d := range lctx {
		if keep[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func (sc *scope) syntaxScope(ctx term.Context, sigma *evd.Map) syntax.Scope {
	return syntax.Scope{Sig: sc.sig, Ctx: ctx, Evars: sc.evars, Sigma: sigma}
}

// runProblem runs one problem. A nil ProblemResult with a nil error means
// the problem could not be read; the reason is already in result.
func (h *Harness) runProblem(ctx context.Context, eng *unify.Engine, sc *scope, s *Scenario, i int, p Problem, result *Result) (*ProblemResult, error) {
	lctx := sc.env.Named()
	left, err := syntax.Parse(sc.syntaxScope(lctx, sc.sigma), p.Left)
	if err != nil {
		result.AddError(fmt.Sprintf("problem %d: left: %v", i, err))
		return nil, nil
	}
	right, err := syntax.Parse(sc.syntaxScope(lctx, sc.sigma), p.Right)
	if err != nil {
		result.AddError(fmt.Sprintf("problem %d: right: %v", i, err))
		return nil, nil
	}
	conv, _ := unify.ParseConv(p.Conv)

	problemID, err := term.ProblemID(lctx, left, right, conv.String())
	if err != nil {
		return nil, fmt.Errorf("problem %d: %w", i, err)
	}

	// Get seq ONCE; the engine stamps trace events after it.
	seq := h.clock.Next()
	res, uerr := eng.UnifyTrace(ctx, sc.env, sc.sigma, left, right, conv)
	outcome, err := classify(uerr)
	if err != nil {
		return nil, fmt.Errorf("problem %d: %w", i, err)
	}

	pr := &ProblemResult{
		Index:     i,
		Session:   res.Session,
		ProblemID: problemID,
		Left:      p.Left,
		Right:     p.Right,
		Conv:      conv.String(),
		Outcome:   outcome,
		Expected:  p.expect(),
		Steps:     res.Steps,
		MemoHits:  res.MemoHits,
		Fallback:  res.Fallback,
		Trace:     res.Trace,
		Sigma:     res.Sigma,
	}

	var defined []int
	if outcome == store.OutcomeUnified {
		defined = newlyDefined(sc.sigma, res.Sigma)
		pr.Assignments = make(map[string]string, len(defined))
		for _, id := range defined {
			if name, ok := sc.names[id]; ok {
				pr.Assignments[name] = sc.print(res.Sigma, id)
			}
		}
	}

	if outcome != pr.Expected {
		msg := fmt.Sprintf("problem %d: expected %s, got %s", i, pr.Expected, outcome)
		if uerr != nil {
			msg += fmt.Sprintf(" (%v)", uerr)
		}
		result.AddError(msg)
	} else if outcome == store.OutcomeUnified {
		for _, msg := range sc.checkAssignments(i, p, res.Sigma) {
			result.AddError(msg)
		}
	}
	for _, msg := range EvaluateAssertions(*pr, p.Assertions) {
		result.AddError(msg)
	}

	if h.journal != nil {
		if err := h.record(ctx, sc, s, pr, seq, res.Sigma, defined); err != nil {
			return nil, fmt.Errorf("problem %d: %w", i, err)
		}
	}

	if outcome == store.OutcomeUnified {
		sc.sigma = res.Sigma
	}
	h.logger.Debug("problem completed",
		"scenario", s.Name,
		"problem", i,
		"session", pr.Session,
		"outcome", outcome,
		"steps", pr.Steps,
	)
	return pr, nil
}

// classify maps a unification error to a journal outcome. Errors that are
// not outcomes, such as cancellation, are returned.
func classify(err error) (string, error) {
	switch {
	case err == nil:
		return store.OutcomeUnified, nil
	case unify.IsFuelExhausted(err):
		return store.OutcomeFuel, nil
	case unify.IsInvariantError(err):
		return store.OutcomeInvariant, nil
	case errors.Is(err, unify.ErrNotUnifiable):
		return store.OutcomeFailed, nil
	}
	return "", err
}

// checkAssignments compares the expected bodies with the solutions in sigma.
func (sc *scope) checkAssignments(i int, p Problem, sigma *evd.Map) []string {
	names := make([]string, 0, len(p.Assignments))
	for name := range p.Assignments {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		id := sc.evars[name]
		info, _ := sigma.Info(id)
		if !info.Defined() {
			failures = append(failures, fmt.Sprintf("problem %d: ?%s is undefined", i, name))
			continue
		}
		want, err := syntax.Parse(sc.syntaxScope(info.Ctx, sigma), p.Assignments[name])
		if err != nil {
			failures = append(failures, fmt.Sprintf("problem %d: assignment ?%s: %v", i, name, err))
			continue
		}
		got := sigma.NfEvar(info.Body)
		if !term.Equal(sigma.NfEvar(want), got) {
			failures = append(failures, fmt.Sprintf("problem %d: ?%s: expected %s, got %s",
				i, name, p.Assignments[name], sc.print(sigma, id)))
		}
	}
	return failures
}

// print renders the instantiated body of a defined evar.
func (sc *scope) print(sigma *evd.Map, id int) string {
	info, _ := sigma.Info(id)
	pr := syntax.Printer{Sig: sc.sig, EvarNames: sc.names, Taken: info.Ctx.Names()}
	return pr.Print(sigma.NfEvar(info.Body))
}

// newlyDefined lists the evars defined in after but not in before.
func newlyDefined(before, after *evd.Map) []int {
	var ids []int
	for _, id := range after.DefinedIDs() {
		if !before.IsDefined(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// record journals one problem.
func (h *Harness) record(ctx context.Context, sc *scope, s *Scenario, pr *ProblemResult, seq int64, sigma *evd.Map, defined []int) error {
	rec := store.Record{
		Session: store.Session{
			ID:        pr.Session,
			ProblemID: pr.ProblemID,
			Scenario:  s.Name,
			Left:      pr.Left,
			Right:     pr.Right,
			Conv:      pr.Conv,
			Outcome:   pr.Outcome,
			Steps:     pr.Steps,
			MemoHits:  pr.MemoHits,
			Fallback:  pr.Fallback,
			Seq:       seq,
		},
	}
	for _, id := range defined {
		info, _ := sigma.Info(id)
		a, err := store.NewAssignment(id, sc.print(sigma, id), sigma.NfEvar(info.Body))
		if err != nil {
			return err
		}
		rec.Assignments = append(rec.Assignments, a)
	}
	for _, ev := range pr.Trace {
		rec.Trace = append(rec.Trace, store.TraceRow{
			Seq:    ev.Seq,
			Depth:  ev.Depth,
			Rule:   ev.Rule,
			Detail: ev.Detail,
		})
	}
	return h.journal.WriteRecord(ctx, rec)
}
