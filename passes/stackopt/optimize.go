package stackopt

import (
	"github.com/gogpu/shadyir/ir"
	"github.com/gogpu/shadyir/rewrite"
)

// frameKind distinguishes a frame holding a single pending value from
// one recording a control-flow merge. Only Value frames are ever
// constructed by this implementation: Match/Control/Loop/If are
// treated as opaque leak events rather than recursed into, matching
// the scope of a local (not whole-program) dataflow analysis, so
// Merge exists for completeness of the vocabulary without a
// constructor.
type frameKind int

const (
	frameValue frameKind = iota
	frameMerge
)

// frame is one link of the persistent stack-state chain threaded
// through a function body's rewrite. prev chains functionally (a new
// frame is allocated per push, never reparented); leaks is the one
// mutable field, flipped by tagLeaks when a call or control construct
// proves the frame's value may have been observed indirectly (e.g. by
// a called function reading a real hardware stack underneath it).
type frame struct {
	prev   *frame
	kind   frameKind
	leaks  bool
	value  *ir.Node
	values []*ir.Node
}

func tagLeaks(state *frame) {
	for f := state; f != nil; f = f.prev {
		f.leaks = true
	}
}

// Optimize elides push_stack/pop_stack pairs whose intermediate state
// is never observed. It satisfies ir.Pass.
func Optimize(cfg ir.Config, src, dst *ir.Arena, root *ir.Node) (*ir.Node, error) {
	r := rewrite.NewRewriter(src, dst, process)
	r.SrcModule = root
	return r.RunModule()
}

func process(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	if found, ok := r.SearchProcessed(old); ok {
		return found
	}
	switch {
	case ir.IsDeclaration(old.Tag):
		header := r.RecreateDeclHeaderIdentity(old)
		r.RecreateDeclBodyIdentity(old, header)
		return header
	case old.Tag == ir.TagBlock:
		return rewriteBlock(r, old)
	default:
		return r.RecreateNodeIdentity(old)
	}
}

// rewriteBlock walks a function body's flat instruction list carrying
// a StackState, then rewrites the terminator. Every Block that
// reaches process (a Function body or a nested block alike) starts
// from a nil state, so no state crosses a function boundary.
func rewriteBlock(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	blk := old.Payload.(ir.Block)

	// Any terminator other than Unreachable, a Let-chain terminator
	// included, conservatively leaks every frame still pending when
	// the instruction list ends: the terminator is rewritten through
	// RewriteNode without the carried state, so push/pop pairs inside
	// a Let-chain terminator are not analyzed and the analysis cannot
	// prove the pushed values were never observed past this point.
	tagAtEnd := blk.Terminator == nil || blk.Terminator.Tag != ir.TagUnreachable

	newInstrs := rewriteChain(r, blk.Instructions, 0, nil, tagAtEnd)
	newTerm := r.RewriteNode(blk.Terminator)
	return r.DstArena.BlockNode(newInstrs, newTerm)
}

func rewriteChain(r *rewrite.Rewriter, instrs []*ir.Node, i int, state *frame, tagAtEnd bool) []*ir.Node {
	if i >= len(instrs) {
		if tagAtEnd {
			tagLeaks(state)
		}
		return nil
	}

	old := instrs[i]
	dst := r.DstArena

	var vars []*ir.Node
	instr := old
	isLet := old.Tag == ir.TagLet
	if isLet {
		l := old.Payload.(ir.Let)
		vars = l.Variables
		instr = l.Instruction
	}

	if instr.Tag == ir.TagPrimOp {
		po := instr.Payload.(ir.PrimOp)
		switch po.Op {
		case ir.OpPushStack:
			v := r.RewriteNode(po.Operands[0])
			newFrame := &frame{prev: state, kind: frameValue, value: v}
			rest := rewriteChain(r, instrs, i+1, newFrame, tagAtEnd)

			var newInstr *ir.Node
			if newFrame.leaks {
				newInstr = dst.PrimOpNode(ir.OpPushStack, []*ir.Node{v})
			} else {
				newInstr = dst.PrimOpNode(ir.OpUnit, nil)
			}
			newLet := dst.LetNode(r.RecreateVariables(vars), newInstr, nil)
			return append([]*ir.Node{newLet}, rest...)

		case ir.OpPopStack:
			if state != nil {
				// Matched: the frame can only still be reachable
				// here if nothing leaked it since its push (a leak
				// clears the carried state to nil), so the captured
				// value is safe to forward directly.
				popped := state
				newVars := r.RecreateVariables(vars)
				newInstr := dst.PrimOpNode(ir.OpQuote, []*ir.Node{popped.value})
				newLet := dst.LetNode(newVars, newInstr, nil)
				rest := rewriteChain(r, instrs, i+1, popped.prev, tagAtEnd)
				return append([]*ir.Node{newLet}, rest...)
			}
			// No frame: emit identity-style and leave state as nil.
			newInstr := dst.PrimOpNode(ir.OpPopStack, nil)
			newLet := dst.LetNode(r.RecreateVariables(vars), newInstr, nil)
			rest := rewriteChain(r, instrs, i+1, state, tagAtEnd)
			return append([]*ir.Node{newLet}, rest...)
		}
	}

	nextState := state
	if isLeakEvent(instr.Tag) {
		tagLeaks(state)
		nextState = nil
	}
	newInstr := r.RewriteNode(old)
	rest := rewriteChain(r, instrs, i+1, nextState, tagAtEnd)
	return append([]*ir.Node{newInstr}, rest...)
}

func isLeakEvent(tag ir.Tag) bool {
	switch tag {
	case ir.TagLeafCall, ir.TagIndirectCall, ir.TagMatch, ir.TagControl, ir.TagLoop, ir.TagIf:
		return true
	default:
		return false
	}
}
