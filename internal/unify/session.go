package unify

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	set "github.com/hashicorp/go-set/v3"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// TraceEvent is one successful rule application. Events are recorded when
// the rule finishes, so children precede their parent.
type TraceEvent struct {
	Seq    int64
	Depth  int
	Rule   string
	Detail string
}

// problemKey identifies a sub-problem in the failure cache.
type problemKey struct {
	stamp uint64
	env   uint64
	left  uint64
	right uint64
	conv  Conv
}

// Hash folds the key. Two different problems with the same hash are
// treated as the same failure, which can only make the engine give up
// earlier.
func (k *problemKey) Hash() uint64 {
	var buf [8*4 + 2]byte
	binary.LittleEndian.PutUint64(buf[0:], k.stamp)
	binary.LittleEndian.PutUint64(buf[8:], k.env)
	binary.LittleEndian.PutUint64(buf[16:], k.left)
	binary.LittleEndian.PutUint64(buf[24:], k.right)
	buf[32] = byte(k.conv.Pb)
	if k.conv.Swapped {
		buf[33] = 1
	}
	return xxhash.Sum64(buf[:])
}

// session is the state of one top-level call.
//
// The failure cache and the fuel counter are scoped to the session, so
// independent calls never observe each other.
type session struct {
	eng *Engine
	ctx context.Context
	id  string

	cache    *set.HashSet[*problemKey, uint64]
	memoHits int

	steps     int
	exhausted bool
	cancelled error

	depth int
	trace []TraceEvent
}

func (eng *Engine) newSession(ctx context.Context) *session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &session{
		eng:   eng,
		ctx:   ctx,
		id:    eng.ids.Generate(),
		cache: set.NewHashSet[*problemKey, uint64](0),
	}
}

// tick consumes one unit of fuel. Once fuel runs out, or the context is
// done, every further tick fails.
func (s *session) tick() bool {
	if s.exhausted || s.cancelled != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.cancelled = err
		return false
	}
	s.steps++
	if s.steps > s.eng.fuel {
		s.exhausted = true
		s.eng.logger.Warn("unification fuel exhausted",
			"session", s.id,
			"limit", s.eng.fuel,
		)
		return false
	}
	return true
}

// live reports whether the session may still make progress.
func (s *session) live() bool {
	return !s.exhausted && s.cancelled == nil
}

func (s *session) key(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) *problemKey {
	return &problemKey{
		stamp: sigma.Stamp(),
		env:   e.Key(),
		left:  term.Hash(t1),
		right: term.Hash(t2),
		conv:  conv,
	}
}

func (s *session) failedBefore(k *problemKey) bool {
	if !s.eng.memo || !s.cache.Contains(k) {
		return false
	}
	s.memoHits++
	s.eng.metrics.memoHits.Inc()
	return true
}

func (s *session) rememberFailure(k *problemKey) {
	if s.eng.memo && s.live() {
		s.cache.Insert(k)
	}
}

// record appends a successful rule application to the trace. The depth is
// that of the problem the rule solved, 0 for the top-level one.
func (s *session) record(rule, detail string) {
	ev := TraceEvent{Seq: s.eng.seq.Next(), Depth: max(s.depth-1, 0), Rule: rule, Detail: detail}
	s.trace = append(s.trace, ev)
	s.eng.metrics.rules.WithLabelValues(rule).Inc()
	s.eng.logger.Debug("rule applied",
		"session", s.id,
		"rule", rule,
		"depth", ev.Depth,
		"detail", detail,
	)
}

// attempt is one way of solving the current problem.
type attempt func() (*evd.Map, bool)

// first runs attempts in order and returns the first success.
func first(attempts ...attempt) (*evd.Map, bool) {
	for _, a := range attempts {
		if out, ok := a(); ok {
			return out, true
		}
	}
	return nil, false
}

// chain threads sigma through steps, stopping at the first failure.
func chain(sigma *evd.Map, steps ...func(*evd.Map) (*evd.Map, bool)) (*evd.Map, bool) {
	for _, step := range steps {
		var ok bool
		if sigma, ok = step(sigma); !ok {
			return nil, false
		}
	}
	return sigma, true
}

// rule runs a and records name on success. Events recorded by a failed
// attempt are dropped, so the trace only shows the final derivation.
func (s *session) rule(name, detail string, a attempt) attempt {
	return func() (*evd.Map, bool) {
		if !s.live() {
			return nil, false
		}
		mark := len(s.trace)
		out, ok := a()
		if !ok {
			s.trace = s.trace[:mark]
			return nil, false
		}
		s.record(name, detail)
		return out, true
	}
}
