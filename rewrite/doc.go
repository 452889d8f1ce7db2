// Package rewrite implements the memoized recursive graph-rewriting
// framework every lowering pass builds on: it maps an old IR graph in
// one arena to a new graph in another, node by node, remembering
// results so that shared subgraphs and cycles through declarations
// are preserved rather than duplicated or infinitely re-descended.
//
// # Usage
//
// A pass provides a RewriteFn and optionally overrides a subset of
// the per-kind hooks on Hooks; any hook left nil falls back to the
// RewriteFn, which in turn usually delegates to RecreateNodeIdentity
// for the kinds it does not handle. NewRewriter wires the common case
// (memoized, read-and-write); NewImporter wires the same configuration
// under a separate name, and NewSubstituter wires the write-only one.
package rewrite
