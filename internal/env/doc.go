// Package env provides the global signature and the local typing
// environment a unification problem is posed in.
//
// A Signature is built once (usually by the compiler package) and then
// shared read-only. An Env pairs it with a named context and a stack of
// bound variables pushed while descending under binders. Envs are
// immutable: Push returns a new Env.
package env
