package rewrite

import (
	"github.com/sirupsen/logrus"

	"github.com/gogpu/shadyir/ir"
)

// RewriteFn is a pass's generic node handler. A pass typically
// switches on old.Tag, handles the cases it cares about, and falls
// through to RecreateNodeIdentity for everything else.
type RewriteFn func(r *Rewriter, old *ir.Node) *ir.Node

// Hooks lets a pass override dispatch for specific node kinds instead
// of (or in addition to) handling them inside RewriteFn. Any hook left
// nil falls back to RewriteFn.
type Hooks struct {
	RewriteType        func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteValue       func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteInstruction func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteTerminator  func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteDecl        func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteBasicBlock  func(r *Rewriter, old *ir.Node) *ir.Node
	RewriteAnnotation  func(r *Rewriter, old *ir.Node) *ir.Node
}

// Rewriter maps nodes from SrcArena into DstArena, memoizing results
// so sharing and cycles through declarations are preserved.
type Rewriter struct {
	RewriteFn RewriteFn
	Hooks     Hooks

	SrcArena *ir.Arena
	DstArena *ir.Arena

	SrcModule *ir.Node
	DstModule *ir.Node

	// SearchMap and WriteMap independently toggle memoization. A
	// "substituter" (NewSubstituter) sets SearchMap false so it
	// re-expands shared subgraphs instead of reusing a prior result;
	// an "importer" (NewImporter) and the common pass case
	// (NewRewriter) use both.
	SearchMap bool
	WriteMap  bool

	// Log receives diagnostic, non-correctness-affecting messages.
	// It defaults to logrus.StandardLogger() and is never consulted
	// for control flow.
	Log *logrus.Logger

	processed map[*ir.Node]*ir.Node
	declsMap  map[*ir.Node]*ir.Node
}

// NewRewriter creates the standard memoized (read-and-write) rewriter
// most passes use.
func NewRewriter(src, dst *ir.Arena, fn RewriteFn) *Rewriter {
	return newRewriter(src, dst, fn, true, true)
}

// NewImporter creates a rewriter configured identically to
// NewRewriter. It is named separately because "importing" a graph
// across arenas (as opposed to rewriting it under a transformation)
// is a distinct use case in the source framework even though the
// memoization configuration coincides with the common pass case.
func NewImporter(src, dst *ir.Arena, fn RewriteFn) *Rewriter {
	return newRewriter(src, dst, fn, true, true)
}

// NewSubstituter creates a write-only rewriter: it never short
// circuits on a prior result, so it re-expands shared subgraphs,
// but it still registers results as it goes (useful for passes that
// perform a single linear substitution and do not need memoized
// sharing preserved).
func NewSubstituter(src, dst *ir.Arena, fn RewriteFn) *Rewriter {
	return newRewriter(src, dst, fn, false, true)
}

func newRewriter(src, dst *ir.Arena, fn RewriteFn, searchMap, writeMap bool) *Rewriter {
	return &Rewriter{
		RewriteFn: fn,
		SrcArena:  src,
		DstArena:  dst,
		SearchMap: searchMap,
		WriteMap:  writeMap,
		Log:       logrus.StandardLogger(),
		processed: make(map[*ir.Node]*ir.Node),
		declsMap:  make(map[*ir.Node]*ir.Node),
	}
}

// SearchProcessed returns the node old has already been mapped to, if
// any.
func (r *Rewriter) SearchProcessed(old *ir.Node) (*ir.Node, bool) {
	if old == nil {
		return nil, false
	}
	n, ok := r.processed[old]
	return n, ok
}

// FindProcessed is like SearchProcessed but also consults the
// declaration map, for callers that need to resolve a declaration
// identity registered via RecreateDeclHeaderIdentity without going
// through the general processed map.
func (r *Rewriter) FindProcessed(old *ir.Node) (*ir.Node, bool) {
	if n, ok := r.SearchProcessed(old); ok {
		return n, ok
	}
	if old == nil {
		return nil, false
	}
	n, ok := r.declsMap[old]
	return n, ok
}

// RegisterProcessed records old→new. Registering a different new for
// an old that is already mapped is an invariant violation: mappings,
// once made, are never overwritten.
func (r *Rewriter) RegisterProcessed(old, new *ir.Node) error {
	if old == nil {
		return nil
	}
	if existing, ok := r.processed[old]; ok {
		if existing != new {
			return &ir.InvariantViolationError{Tag: old.Tag, Message: "conflicting re-registration of an already-processed node"}
		}
		return nil
	}
	r.processed[old] = new
	if ir.IsDeclaration(old.Tag) {
		r.declsMap[old] = new
	}
	return nil
}

// RegisterProcessedList registers each pair of parallel slices.
func (r *Rewriter) RegisterProcessedList(olds, news []*ir.Node) error {
	if len(olds) != len(news) {
		return &ir.InvariantViolationError{Message: "RegisterProcessedList: length mismatch"}
	}
	for i := range olds {
		if err := r.RegisterProcessed(olds[i], news[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClearProcessedNonDecls drops every memoized mapping except
// declarations, so a pass can re-enter a fresh per-scope rewriting
// context (e.g. re-rewriting a lambda body under new substitutions)
// without losing the declarations it has already committed to.
func (r *Rewriter) ClearProcessedNonDecls() {
	for old := range r.processed {
		if !ir.IsDeclaration(old.Tag) {
			delete(r.processed, old)
		}
	}
}

// RewriteNode maps old into the destination arena, consulting and
// updating the memoization map, and dispatching to the matching Hooks
// entry (falling back to RewriteFn) based on old's kind.
func (r *Rewriter) RewriteNode(old *ir.Node) *ir.Node {
	if old == nil {
		return nil
	}
	if r.SearchMap {
		if n, ok := r.processed[old]; ok {
			return n
		}
	}

	hook := r.hookFor(old)
	result := hook(r, old)

	if r.WriteMap {
		if err := r.RegisterProcessed(old, result); err != nil {
			// A hook that deliberately re-registers old under a
			// different identity (a programming error) surfaces
			// here. The rewriter has no recovery path for it.
			r.Log.WithError(err).Error("rewrite: conflicting registration")
			panic(err)
		}
	}
	return result
}

func (r *Rewriter) hookFor(old *ir.Node) RewriteFn {
	switch {
	case old.Tag == ir.TagBlock:
		if r.Hooks.RewriteBasicBlock != nil {
			return r.Hooks.RewriteBasicBlock
		}
	case old.Tag == ir.TagAnnotation:
		if r.Hooks.RewriteAnnotation != nil {
			return r.Hooks.RewriteAnnotation
		}
	case ir.IsDeclaration(old.Tag):
		if r.Hooks.RewriteDecl != nil {
			return r.Hooks.RewriteDecl
		}
	case ir.IsTerminator(old.Tag):
		if r.Hooks.RewriteTerminator != nil {
			return r.Hooks.RewriteTerminator
		}
	case ir.IsInstruction(old.Tag):
		if r.Hooks.RewriteInstruction != nil {
			return r.Hooks.RewriteInstruction
		}
	case ir.IsValue(old.Tag):
		if r.Hooks.RewriteValue != nil {
			return r.Hooks.RewriteValue
		}
	case ir.IsType(old.Tag):
		if r.Hooks.RewriteType != nil {
			return r.Hooks.RewriteType
		}
	}
	return r.RewriteFn
}

// RunModule invokes RewriteModule, converting any panic raised by the
// invariant-checking helpers (RecreateNodeIdentity, RegisterProcessed,
// RecreateDeclHeaderIdentity, ...) into a returned error instead of an
// unrecovered panic. This is the boundary every pass's public entry
// point should call through: internally, an invariant violation is
// raised the moment it is detected (deep inside a recursive rewrite,
// far from any caller that could usefully return early); at the
// pass's public edge, it becomes an ordinary Go error.
func (r *Rewriter) RunModule() (newRoot *ir.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			panic(rec)
		}
	}()
	return r.RewriteModule(), nil
}

// RewriteNodes maps each element of olds, preserving order.
func (r *Rewriter) RewriteNodes(olds []*ir.Node) []*ir.Node {
	if olds == nil {
		return nil
	}
	news := make([]*ir.Node, len(olds))
	for i, n := range olds {
		news[i] = r.RewriteNode(n)
	}
	return news
}
