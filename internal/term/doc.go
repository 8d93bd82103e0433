// Package term provides the term language shared by every other package.
//
// This package contains the term grammar and the syntactic operations on it.
// All other internal packages import term; term imports nothing internal.
//
// Key design constraints:
//   - Term is a closed sum type (sealed with an unexported marker method)
//   - Bound variables are de Bruijn indices, 0 is the innermost binder
//   - Free variables are named and resolved against a Context
//   - Terms are immutable values; operations return new terms and share
//     unchanged subterms
package term
