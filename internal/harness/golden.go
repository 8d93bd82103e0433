package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden form of a scenario run. It keeps what must
// not change between runs: outcomes, rule sequences and solutions.
// Session ids, seqs and step counts are left out.
type TraceSnapshot struct {
	Scenario string            `json:"scenario"`
	Problems []ProblemSnapshot `json:"problems"`
}

// ProblemSnapshot is the golden form of one problem.
type ProblemSnapshot struct {
	Left        string            `json:"left"`
	Right       string            `json:"right"`
	Conv        string            `json:"conv"`
	Outcome     string            `json:"outcome"`
	Rules       []string          `json:"rules"`
	Assignments map[string]string `json:"assignments,omitempty"`
}

// Snapshot builds the golden form of r.
func Snapshot(r *Result) TraceSnapshot {
	snap := TraceSnapshot{Scenario: r.Scenario, Problems: make([]ProblemSnapshot, len(r.Problems))}
	for i, p := range r.Problems {
		snap.Problems[i] = ProblemSnapshot{
			Left:        p.Left,
			Right:       p.Right,
			Conv:        p.Conv,
			Outcome:     p.Outcome,
			Rules:       p.Rules(),
			Assignments: p.Assignments,
		}
	}
	return snap
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing
// newline. Map keys are sorted by encoding/json.
func MarshalSnapshot(snap TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(Snapshot(result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
