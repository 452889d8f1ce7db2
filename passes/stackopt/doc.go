// Package stackopt implements the stack-optimization pass: a local
// dataflow analysis over each function body that elides a push_stack
// / pop_stack pair when nothing between them can have observed the
// pushed value, forwarding the pushed value directly to the pop site
// instead.
package stackopt
