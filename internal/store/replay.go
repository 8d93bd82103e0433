package store

import (
	"context"
	"fmt"
)

// ProblemHistory summarizes every recorded attempt at one problem.
type ProblemHistory struct {
	ProblemID string
	Sessions  []Session
	// Stable is set when every session agrees on the outcome and, for
	// unified sessions, on the canonical assignments.
	Stable bool
	// Divergent names the first session that disagreed with the first one.
	Divergent string
}

// GetProblemHistory collects the sessions of a problem and checks that the
// engine answered it the same way every time. A problem with no sessions
// is trivially stable.
func (s *Store) GetProblemHistory(ctx context.Context, problemID string) (ProblemHistory, error) {
	h := ProblemHistory{ProblemID: problemID, Stable: true}
	sessions, err := s.SessionsForProblem(ctx, problemID)
	if err != nil {
		return h, fmt.Errorf("get problem history: %w", err)
	}
	h.Sessions = sessions
	if len(sessions) < 2 {
		return h, nil
	}

	base, err := s.assignmentKey(ctx, sessions[0].ID)
	if err != nil {
		return h, fmt.Errorf("get problem history: %w", err)
	}
	for _, sess := range sessions[1:] {
		if sess.Outcome != sessions[0].Outcome {
			h.Stable, h.Divergent = false, sess.ID
			return h, nil
		}
		key, err := s.assignmentKey(ctx, sess.ID)
		if err != nil {
			return h, fmt.Errorf("get problem history: %w", err)
		}
		if key != base {
			h.Stable, h.Divergent = false, sess.ID
			return h, nil
		}
	}
	return h, nil
}

// assignmentKey concatenates a session's canonical assignments in evar order.
func (s *Store) assignmentKey(ctx context.Context, sessionID string) (string, error) {
	as, err := s.ReadAssignments(ctx, sessionID)
	if err != nil {
		return "", err
	}
	key := ""
	for _, a := range as {
		key += fmt.Sprintf("%d=%s;", a.Evar, a.Canonical)
	}
	return key, nil
}

// GetLastSeq returns the highest seq recorded in sessions or trace rows.
// Returns 0 for an empty journal.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM sessions
			UNION ALL
			SELECT seq FROM trace
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
