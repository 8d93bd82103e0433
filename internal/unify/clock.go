package unify

import "sync/atomic"

// Sequencer stamps trace events. Clock is the default; tests may inject a
// resettable one.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Every recorded rule application
// gets a strictly increasing seq, so traces order deterministically
// without wall-clock time.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to continue a journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
