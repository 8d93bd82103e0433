package testutil

import (
	"fmt"
	"sync"
)

// FixedSessionGenerator returns the same session id every time, so
// journals and golden traces are byte-identical across runs.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id.
// An empty id becomes "test-session-default".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate implements unify.SessionIDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}

// SequentialSessionGenerator returns prefix-1, prefix-2, ... so that each
// problem of a scenario gets a distinct but reproducible session id.
type SequentialSessionGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialSessionGenerator creates a generator over prefix.
func NewSequentialSessionGenerator(prefix string) *SequentialSessionGenerator {
	return &SequentialSessionGenerator{prefix: prefix}
}

// Generate implements unify.SessionIDGenerator.
func (g *SequentialSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
