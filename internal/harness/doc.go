// Package harness runs unification scenarios and checks their outcomes.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: patterns
//	description: "Pattern unification solves higher-order evars"
//	signature: ../signatures/basic.cue
//	context:
//	  - {name: x, type: nat}
//	  - {name: y, type: nat}
//	evars:
//	  - {name: e, context: [x], type: nat}
//	options:
//	  aggressive: true
//	  fuel: 1000
//	problems:
//	  - left: "h ?e y"
//	    right: "h (f x) y"
//	    expect: unified
//	    assignments: {e: "f x"}
//	    assertions:
//	      - {type: trace_contains, rule: meta-inst}
//
// Terms use the concrete syntax of package syntax. An evar written
// without an instance gets the identity instance of its context.
// Problems run in order, and a unified problem's evar map is the
// starting point of the next problem.
//
// # Assertion Types
//
//   - trace_contains: the rule fired at least once
//   - trace_absent: the rule never fired
//   - trace_order: the first firings of the rules appear in order
//   - trace_count: the rule fired exactly N times
//
// # Deterministic Testing
//
// Sessions are numbered <scenario>-1, <scenario>-2, ... and stamped by a
// fresh deterministic clock, so journals of two runs are identical.
// Golden snapshots hold outcomes, rule sequences and printed solutions.
package harness
