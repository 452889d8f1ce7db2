// Package ir implements the hash-consed, arena-allocated intermediate
// representation at the core of the shader compiler's middle end: a
// sum-type node graph of types, values, instructions, terminators and
// declarations.
//
// # Structure
//
// Every [Node] carries a [Tag] selecting exactly one variant and a
// [Payload] whose concrete type is determined by that tag. Node
// identity is pointer equality: for any two structurally equal
// payloads interned into the same [Arena], [Arena.Intern] returns the
// same *Node. This is hash-consing — see [Arena.Intern].
//
// # Declarations
//
// [Function] and the module [Root] are constructed in two phases: a
// header is interned (or allocated) first with an empty body, and is
// registered in any in-flight rewriter's memoization map before the
// body is filled in. This is what lets recursive and mutually
// recursive declarations resolve — see [Arena.DeclareFunction] and
// [Arena.DefineFunctionBody].
//
// # References
//
// The node catalogue, interning rules and declaration two-phase
// protocol mirror the "shady" GPU IR this package's design is based
// on.
package ir
