package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Cycle is a chain of constants whose definitions lead back to the first.
type Cycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// dependencyGraph maps a constant to the constants its declaration mentions.
type dependencyGraph map[string][]string

// walk states of a constant during AnalyzeCycles.
const (
	unvisited = iota
	onPath
	finished
)

// AnalyzeCycles finds definitional cycles among constants.
//
// Constants are walked depth-first in name order. Reaching a constant that
// is still on the current path closes a cycle, reported as the path from
// that constant back to itself. Every such edge yields one Cycle, so the
// result is deterministic for a given graph. An acyclic graph returns an
// empty list.
func AnalyzeCycles(graph dependencyGraph) []Cycle {
	cycles := []Cycle{}
	state := make(map[string]int, len(graph))
	var path []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = onPath
		path = append(path, name)
		for _, dep := range graph[name] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case onPath:
				from := slices.Index(path, dep)
				cycles = append(cycles, newCycle(path[from:]))
			}
		}
		path = path[:len(path)-1]
		state[name] = finished
	}

	for _, name := range slices.Sorted(maps.Keys(graph)) {
		if state[name] == unvisited {
			visit(name)
		}
	}
	return cycles
}

// newCycle closes members into a path that returns to its first element.
func newCycle(members []string) Cycle {
	path := append(slices.Clone(members), members[0])
	if len(members) == 1 {
		return Cycle{Path: path, Message: fmt.Sprintf("definition of %s refers to itself", members[0])}
	}
	return Cycle{Path: path, Message: fmt.Sprintf("cyclic definitions: %s", strings.Join(path, " -> "))}
}
