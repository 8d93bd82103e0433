// Package unify decides equality and subtyping between terms that may
// contain evars, instantiating evars along the way.
//
// The algorithm follows the evarconv/Unicoq family:
//
//   - a ground problem is handed to the reduction oracle;
//   - a problem with an evar head runs the instantiation strategies
//     (pattern, first-order, pruning, specialization, reduction, eta);
//   - otherwise the effect marker, canonical structures and first-order
//     decomposition are tried before one reduction step is taken.
//
// Every top-level call runs in its own session holding the failure cache,
// the fuel counter and the rule trace. State is an *evd.Map, which is
// persistent, so failed strategies leave nothing behind.
package unify
