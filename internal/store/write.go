package store

import (
	"context"
	"fmt"
)

// WriteRecord inserts a session with its assignments and trace in one
// transaction. Uses ON CONFLICT DO NOTHING for idempotency - recording
// the same session twice leaves the first copy in place.
func (s *Store) WriteRecord(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	sess := rec.Session
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, problem_id, scenario, left_term, right_term, conv, outcome, steps, memo_hits, fallback, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.ProblemID,
		sess.Scenario,
		sess.Left,
		sess.Right,
		sess.Conv,
		sess.Outcome,
		sess.Steps,
		sess.MemoHits,
		boolToInt(sess.Fallback),
		sess.Seq,
	)
	if err != nil {
		return fmt.Errorf("write session %s: %w", sess.ID, err)
	}

	for _, a := range rec.Assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (session_id, evar, body, canonical)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, evar) DO NOTHING
		`, sess.ID, a.Evar, a.Body, a.Canonical)
		if err != nil {
			return fmt.Errorf("write assignment ?%d: %w", a.Evar, err)
		}
	}

	for _, row := range rec.Trace {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trace (session_id, seq, depth, rule, detail)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, seq) DO NOTHING
		`, sess.ID, row.Seq, row.Depth, row.Rule, row.Detail)
		if err != nil {
			return fmt.Errorf("write trace %d: %w", row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write record: commit: %w", err)
	}
	return nil
}
