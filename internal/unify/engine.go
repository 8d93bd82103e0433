package unify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
)

// DefaultFuel is the default number of unification steps per top-level call.
const DefaultFuel = 10000

// Fallback is a simpler solver tried when the main algorithm fails.
// It is not consulted after fuel exhaustion or an invariant violation.
type Fallback interface {
	Unify(e *env.Env, sigma *evd.Map, t1, t2 term.Term) (*evd.Map, bool)
}

// Engine unifies terms. It holds configuration only; every call runs in
// its own session, so an Engine may be shared between goroutines.
type Engine struct {
	oracle   reduce.Oracle
	registry *canonical.Registry
	ts       reduce.Transparency
	fallback Fallback

	aggressive      bool
	superAggressive bool
	memo            bool
	fuel            int

	marker string
	effect Effect

	logger  *slog.Logger
	ids     SessionIDGenerator
	seq     Sequencer
	metrics *Metrics
	reg     prometheus.Registerer
}

// Option configures an Engine.
type Option func(*Engine)

// WithOracle sets the reduction oracle. Default: reduce.NewMachine().
func WithOracle(o reduce.Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithRegistry sets the canonical structure registry.
func WithRegistry(r *canonical.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithTransparency sets which definitions may be unfolded. Default: all.
func WithTransparency(ts reduce.Transparency) Option {
	return func(e *Engine) { e.ts = ts }
}

// WithAggressive toggles aggressive pruning (default on). It also lets
// Meta-Same prune positions whose entries are not both variables.
func WithAggressive(on bool) Option {
	return func(e *Engine) { e.aggressive = on }
}

// WithSuperAggressive toggles the specialization strategy (default off).
func WithSuperAggressive(on bool) Option {
	return func(e *Engine) { e.superAggressive = on }
}

// WithMemo toggles the session failure cache (default on).
func WithMemo(on bool) Option {
	return func(e *Engine) { e.memo = on }
}

// WithFuel bounds the unification steps of one top-level call.
// Non-positive values select DefaultFuel.
func WithFuel(n int) Option {
	return func(e *Engine) { e.fuel = n }
}

// WithRunMarker enables the effect rule for applications of the constant
// name to exactly three arguments.
func WithRunMarker(name string, eff Effect) Option {
	return func(e *Engine) {
		e.marker = name
		e.effect = eff
	}
}

// WithFallback sets the solver tried after an ordinary failure.
func WithFallback(f Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSessionIDs sets the session id generator. Default: UUIDv7Generator.
func WithSessionIDs(g SessionIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithSequencer sets the clock stamping trace events. Default: NewClock().
func WithSequencer(s Sequencer) Option {
	return func(e *Engine) { e.seq = s }
}

// WithRegisterer registers the engine's Prometheus collectors with reg.
// Without it the collectors exist but are not registered anywhere.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.reg = reg }
}

// WithMetrics shares m with other engines. It takes precedence over
// WithRegisterer.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		oracle:     reduce.NewMachine(),
		registry:   canonical.NewRegistry(),
		ts:         reduce.Full(),
		aggressive: true,
		memo:       true,
		fuel:       DefaultFuel,
		ids:        UUIDv7Generator{},
		seq:        NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fuel <= 0 {
		e.fuel = DefaultFuel
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(e.reg)
	}
	return e
}

// Result describes one top-level call.
type Result struct {
	Session string
	Sigma   *evd.Map
	Trace   []TraceEvent
	// Steps is the fuel spent.
	Steps    int
	MemoHits int
	// Fallback is set when the fallback solver produced Sigma.
	Fallback bool
}

// Unify decides t1 = t2 (or t1 <= t2) in e, returning the extended evar
// map. Failure satisfies errors.Is(err, ErrNotUnifiable); caller misuse is
// reported as an *InvariantError. sigma itself is never modified.
func (eng *Engine) Unify(ctx context.Context, e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, error) {
	res, err := eng.UnifyTrace(ctx, e, sigma, t1, t2, conv)
	if err != nil {
		return nil, err
	}
	return res.Sigma, nil
}

// UnifyTrace is Unify that also returns the session's rule trace.
// The Result is non-nil even when err is not.
func (eng *Engine) UnifyTrace(ctx context.Context, e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (res *Result, err error) {
	s := eng.newSession(ctx)
	res = &Result{Session: s.id}
	eng.metrics.calls.Inc()
	eng.logger.Debug("unify start", "session", s.id, "conv", conv.String())

	outcome := "failed"
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InvariantError)
			if !ok {
				panic(r)
			}
			outcome = "invariant"
			res.Sigma = nil
			err = ie
		}
		res.Trace = s.trace
		res.Steps = s.steps
		res.MemoHits = s.memoHits
		eng.metrics.outcomes.WithLabelValues(outcome).Inc()
		eng.metrics.steps.Observe(float64(s.steps))
		eng.logger.Debug("unify done",
			"session", s.id,
			"outcome", outcome,
			"steps", s.steps,
			"memo_hits", s.memoHits,
		)
	}()

	out, ok := s.unify(e, sigma, t1, t2, conv)
	switch {
	case ok:
		outcome = "unified"
		res.Sigma = out
		return res, nil
	case s.cancelled != nil:
		outcome = "cancelled"
		return res, fmt.Errorf("unify: %w", s.cancelled)
	case s.exhausted:
		outcome = "fuel"
		return res, &FuelExhaustedError{Session: s.id, Steps: s.steps, Limit: eng.fuel}
	}

	if eng.fallback != nil {
		if out, ok := eng.fallback.Unify(e, sigma, t1, t2); ok {
			outcome = "fallback"
			s.record("fallback", describe(t1))
			res.Sigma = out
			res.Fallback = true
			return res, nil
		}
	}
	return res, ErrNotUnifiable
}
