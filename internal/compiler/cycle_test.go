package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeCycles_Empty tests that an empty graph has no cycles.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

// TestAnalyzeCycles_DAG tests that shared dependencies are not cycles.
func TestAnalyzeCycles_DAG(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b", "c"},
		"b": {"c"},
		"c": {},
	}
	assert.Empty(t, AnalyzeCycles(graph))
}

// TestAnalyzeCycles_SelfLoop tests a definition that mentions itself.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cycles := AnalyzeCycles(dependencyGraph{"loop": {"loop"}, "ok": {}})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"loop", "loop"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "refers to itself")
}

// TestAnalyzeCycles_Mutual tests a three-constant cycle and its path.
func TestAnalyzeCycles_Mutual(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	}
	cycles := AnalyzeCycles(graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "cyclic definitions: a -> b -> c -> a", cycles[0].Message)
}

// TestAnalyzeCycles_Deterministic tests that repeated runs agree.
func TestAnalyzeCycles_Deterministic(t *testing.T) {
	graph := dependencyGraph{
		"x": {"y"}, "y": {"x"},
		"p": {"q"}, "q": {"p"},
	}
	first := AnalyzeCycles(graph)
	require.Len(t, first, 2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeCycles(graph))
	}
}

// TestAnalyzeCycles_OneCyclePerClosingEdge tests that two loops through a
// shared constant are reported separately.
func TestAnalyzeCycles_OneCyclePerClosingEdge(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"a", "c"},
		"c": {"b"},
	}
	cycles := AnalyzeCycles(graph)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
	assert.Equal(t, []string{"b", "c", "b"}, cycles[1].Path)
}
