package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sessionColumns = `id, problem_id, scenario, left_term, right_term, conv, outcome, steps, memo_hits, fallback, seq`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess     Session
		fallback int
	)
	err := row.Scan(
		&sess.ID,
		&sess.ProblemID,
		&sess.Scenario,
		&sess.Left,
		&sess.Right,
		&sess.Conv,
		&sess.Outcome,
		&sess.Steps,
		&sess.MemoHits,
		&fallback,
		&sess.Seq,
	)
	if err != nil {
		return Session{}, err
	}
	sess.Fallback = fallback != 0
	return sess, nil
}

// ReadSession retrieves a single session by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ReadRecord retrieves a session with its assignments and trace.
// Returns sql.ErrNoRows if the session does not exist.
func (s *Store) ReadRecord(ctx context.Context, id string) (Record, error) {
	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		return Record{}, err
	}
	assignments, err := s.ReadAssignments(ctx, id)
	if err != nil {
		return Record{}, err
	}
	trace, err := s.ReadTrace(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return Record{Session: sess, Assignments: assignments, Trace: trace}, nil
}

// ListSessions returns every session ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// SessionsForProblem returns the sessions recorded for one problem id.
func (s *Store) SessionsForProblem(ctx context.Context, problemID string) ([]Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE problem_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, problemID)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadAssignments returns the assignments of a session ordered by evar id.
func (s *Store) ReadAssignments(ctx context.Context, sessionID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT evar, body, canonical
		FROM assignments
		WHERE session_id = ?
		ORDER BY evar ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.Evar, &a.Body, &a.Canonical); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// ReadTrace returns the rule applications of a session ordered by seq.
func (s *Store) ReadTrace(ctx context.Context, sessionID string) ([]TraceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, depth, rule, detail
		FROM trace
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	out := []TraceRow{}
	for rows.Next() {
		var r TraceRow
		if err := rows.Scan(&r.Seq, &r.Depth, &r.Rule, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return out, nil
}

// FindSession resolves a session id or a unique prefix of one.
// Returns sql.ErrNoRows if nothing matches.
func (s *Store) FindSession(ctx context.Context, prefix string) (Session, error) {
	sessions, err := s.querySessions(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE substr(id, 1, ?) = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
		LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return Session{}, err
	}
	switch len(sessions) {
	case 0:
		return Session{}, sql.ErrNoRows
	case 1:
		return sessions[0], nil
	}
	return Session{}, fmt.Errorf("session prefix %q is ambiguous", prefix)
}
