package store

import (
	"fmt"

	"github.com/roach88/evarconv/internal/term"
)

// Outcomes recorded for a session.
const (
	OutcomeUnified   = "unified"
	OutcomeFailed    = "failed"
	OutcomeFuel      = "fuel"
	OutcomeInvariant = "invariant"
)

// Session is one recorded top-level call. Left and Right hold the printed
// terms; ProblemID groups sessions that solved the same problem.
type Session struct {
	ID        string
	ProblemID string
	Scenario  string
	Left      string
	Right     string
	Conv      string
	Outcome   string
	Steps     int
	MemoHits  int
	Fallback  bool
	Seq       int64
}

// Assignment is an evar definition produced by a session.
// Body is printed; Canonical is the RFC 8785 JSON of the term.
type Assignment struct {
	Evar      int
	Body      string
	Canonical string
}

// TraceRow is one recorded rule application.
type TraceRow struct {
	Seq    int64
	Depth  int
	Rule   string
	Detail string
}

// Record is everything written for one session.
type Record struct {
	Session     Session
	Assignments []Assignment
	Trace       []TraceRow
}

// NewAssignment builds the assignment of evar to t, where body is t as the
// caller printed it.
func NewAssignment(evar int, body string, t term.Term) (Assignment, error) {
	canonical, err := marshalTerm(t)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{Evar: evar, Body: body, Canonical: canonical}, nil
}

// marshalTerm converts a term to canonical JSON TEXT for storage.
func marshalTerm(t term.Term) (string, error) {
	data, err := term.MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("marshal term: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
