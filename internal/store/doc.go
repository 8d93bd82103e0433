// Package store provides the SQLite session journal.
//
// Every top-level unification call can be recorded with:
//   - Sessions: the problem, its outcome and the fuel spent
//   - Assignments: the evar definitions the call produced
//   - Trace: the rules that fired, in completion order
//
// # Patterns
//
// Idempotent writes
//   - Session ids are unique; re-recording a session is a no-op
//   - Assignments and trace rows are keyed by (session_id, evar) and
//     (session_id, seq) and inserted with ON CONFLICT DO NOTHING
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - LastSeq lets a new engine clock continue where the journal stopped
//
// Deterministic reads
//   - Every list query ends in ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Problems are identified by term.ProblemID, a SHA-256 over canonical
// JSON, so the same problem recorded from different runs groups together.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
