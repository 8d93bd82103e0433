package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/store"
	"github.com/roach88/evarconv/internal/testutil"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *Scenario, opts ...Option) *Result {
	t.Helper()
	result, err := Run(t.Context(), s, opts...)
	require.NoError(t, err)
	return result
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"patterns", "pruning", "canonical", "failures", "fuel"} {
		t.Run(name, func(t *testing.T) {
			result := run(t, loadScenario(t, name))
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Problems, len(loadScenario(t, name).Problems))
		})
	}
}

func TestRun_Outcomes(t *testing.T) {
	result := run(t, loadScenario(t, "failures"))
	outcomes := make([]string, len(result.Problems))
	for i, p := range result.Problems {
		outcomes[i] = p.Outcome
	}
	assert.Equal(t, []string{"failed", "failed", "invariant", "unified"}, outcomes)
	assert.Equal(t, map[string]string{"o": "y"}, result.Problems[3].Assignments)

	fuel := run(t, loadScenario(t, "fuel"))
	assert.Equal(t, store.OutcomeFuel, fuel.Problems[0].Outcome)
	assert.Equal(t, 4, fuel.Problems[0].Steps)
}

func TestRun_SessionsAreNumberedPerScenario(t *testing.T) {
	result := run(t, loadScenario(t, "patterns"))
	require.Len(t, result.Problems, 5)
	assert.Equal(t, "patterns-1", result.Problems[0].Session)
	assert.Equal(t, "patterns-5", result.Problems[4].Session)

	fixed := run(t, loadScenario(t, "patterns"), WithSessionIDs(testutil.NewFixedSessionGenerator("s")))
	assert.Equal(t, "s", fixed.Problems[2].Session)
}

func TestRun_ThreadsSolutionsBetweenProblems(t *testing.T) {
	s := loadScenario(t, "failures")
	// ?o is solved by the last problem; a follow-up sees the solution.
	s.Problems = append(s.Problems, Problem{Left: "f ?o", Right: "f y", Assertions: []Assertion{
		{Type: AssertTraceAbsent, Rule: "meta-inst"},
	}})
	result := run(t, s)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Problems[4].Assignments)
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	s := loadScenario(t, "patterns")
	s.Problems = s.Problems[:2]
	s.Problems[0].Assignments = map[string]string{"p": "fun (a : nat) (b : nat) => h b a"}
	s.Problems[1].Expect = store.OutcomeFailed

	result := run(t, s)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "problem 0: ?p: expected")
	assert.Contains(t, result.Errors[0], "got fun (x : nat) => fun (y : nat) => h x y")
	assert.Contains(t, result.Errors[1], "problem 1: expected failed, got unified")
}

func TestRun_ReportsUnreadableProblems(t *testing.T) {
	s := loadScenario(t, "patterns")
	s.Problems = []Problem{{Left: "?nosuch", Right: "O"}, {Left: "O", Right: "O"}}

	result := run(t, s)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "problem 0: left")
	assert.Len(t, result.Problems, 1, "the readable problem still runs")
}

func TestRun_ScenarioOptions(t *testing.T) {
	s := loadScenario(t, "patterns")
	off := false
	s.Options.Aggressive = &off
	s.Problems = s.Problems[3:4]
	s.Problems[0].Expect = store.OutcomeFailed
	s.Problems[0].Assignments = nil
	s.Problems[0].Assertions = nil

	result := run(t, s)
	assert.True(t, result.Pass, "without pruning the non-pattern fails: %v", result.Errors)

	on := true
	s.Options.SuperAggressive = &on
	_, err := Run(t.Context(), s)
	assert.ErrorContains(t, err, "requires engine.aggressive")
}

func TestRun_BadContextIsAnError(t *testing.T) {
	s := loadScenario(t, "patterns")
	s.Context = append(s.Context, Decl{Name: "z", Type: "nosuch"})
	_, err := Run(t.Context(), s)
	assert.ErrorContains(t, err, "context z: type")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := Run(ctx, loadScenario(t, "patterns"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Journal(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := t.Context()

	result := run(t, loadScenario(t, "patterns"), WithJournal(st))
	require.True(t, result.Pass)

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 5)
	assert.Equal(t, "patterns", sessions[0].Scenario)
	assert.Equal(t, result.Problems[0].ProblemID, sessions[0].ProblemID)

	rec, err := st.ReadRecord(ctx, "patterns-1")
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeUnified, rec.Session.Outcome)
	require.Len(t, rec.Assignments, 1)
	assert.Equal(t, "fun (x : nat) => fun (y : nat) => h x y", rec.Assignments[0].Body)
	require.Len(t, rec.Trace, 1)
	assert.Equal(t, "meta-inst", rec.Trace[0].Rule)
	assert.Greater(t, rec.Trace[0].Seq, rec.Session.Seq)

	// A second run over the same journal answers every problem the same way.
	again := run(t, loadScenario(t, "patterns"), WithJournal(st),
		WithSessionIDs(testutil.NewSequentialSessionGenerator("again")))
	require.True(t, again.Pass)
	for _, p := range again.Problems {
		h, err := st.GetProblemHistory(ctx, p.ProblemID)
		require.NoError(t, err)
		assert.Len(t, h.Sessions, 2)
		assert.True(t, h.Stable, "problem %d diverged at %s", p.Index, h.Divergent)
	}
}

func traceSeqs(r *Result) []int64 {
	var seqs []int64
	for _, p := range r.Problems {
		for _, ev := range p.Trace {
			seqs = append(seqs, ev.Seq)
		}
	}
	return seqs
}

func TestRun_ClockResetReplaysSeqs(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	first := run(t, loadScenario(t, "patterns"), WithSequencer(clock))
	require.NotEmpty(t, traceSeqs(first))

	clock.Reset()
	second := run(t, loadScenario(t, "patterns"), WithSequencer(clock))
	assert.Equal(t, traceSeqs(first), traceSeqs(second))
}

func TestRun_ClockContinuesJournal(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := t.Context()

	run(t, loadScenario(t, "patterns"), WithJournal(st))
	last, err := st.GetLastSeq(ctx)
	require.NoError(t, err)
	require.Positive(t, last)

	again := run(t, loadScenario(t, "pruning"), WithJournal(st),
		WithSequencer(testutil.NewDeterministicClockAt(last)))
	for _, seq := range traceSeqs(again) {
		assert.Greater(t, seq, last)
	}

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	// Sessions are listed by seq: every pruning session follows the patterns ones.
	require.Len(t, sessions, len(again.Problems)+5)
	for _, s := range sessions[5:] {
		assert.Equal(t, "pruning", s.Scenario)
	}
}
