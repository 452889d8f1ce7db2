package stackopt

import (
	"testing"

	"github.com/gogpu/shadyir/ir"
)

func instrOp(t *testing.T, instr *ir.Node) ir.Op {
	t.Helper()
	let, ok := instr.Payload.(ir.Let)
	if !ok {
		t.Fatalf("instruction is not a Let: %#v", instr.Payload)
	}
	po, ok := let.Instruction.Payload.(ir.PrimOp)
	if !ok {
		t.Fatalf("Let instruction is not a PrimOp: %#v", let.Instruction.Payload)
	}
	return po.Op
}

func buildStackModule(t *testing.T, src *ir.Arena, body func(bb *ir.BlockBuilder) *ir.Node) *ir.Node {
	t.Helper()
	bb := ir.BeginBlock(src)
	term := body(bb)
	blk := bb.Finish(term)
	fn := src.DeclareFunction("f", nil, nil)
	if err := src.DefineFunctionBody(fn, blk); err != nil {
		t.Fatalf("DefineFunctionBody: %v", err)
	}
	root := src.NewModule("m")
	if err := src.SetDeclarations(root, []*ir.Node{fn}); err != nil {
		t.Fatalf("SetDeclarations: %v", err)
	}
	return root
}

func optimizeAndGetBody(t *testing.T, root *ir.Node, src *ir.Arena) ir.Block {
	t.Helper()
	dst := ir.NewArena(ir.Config{})
	newRoot, err := Optimize(ir.Config{}, src, dst, root)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	r := newRoot.Payload.(*ir.Root)
	fn := r.Declarations[0].Payload.(*ir.Function)
	return fn.Body.Payload.(ir.Block)
}

func TestOptimize_NonLeakingPushPopElided(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()

	root := buildStackModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		val := src.IntLiteralNode(32, 42)
		bb.GenPrimOp(ir.OpPushStack, []*ir.Node{val}, nil)
		popped := bb.GenPrimOp(ir.OpPopStack, nil, []*ir.Node{i32})
		return src.ReturnNode(popped)
	})

	blk := optimizeAndGetBody(t, root, src)
	if len(blk.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2 (unit + quote)", len(blk.Instructions))
	}
	if op := instrOp(t, blk.Instructions[0]); op != ir.OpUnit {
		t.Errorf("instr[0].Op = %v, want OpUnit", op)
	}
	if op := instrOp(t, blk.Instructions[1]); op != ir.OpQuote {
		t.Errorf("instr[1].Op = %v, want OpQuote", op)
	}

	// The quoted value must be the original pushed literal, forwarded
	// directly rather than going through a real pop.
	let := blk.Instructions[1].Payload.(ir.Let)
	po := let.Instruction.Payload.(ir.PrimOp)
	if len(po.Operands) != 1 {
		t.Fatalf("quote has %d operands, want 1", len(po.Operands))
	}
	lit, ok := po.Operands[0].Payload.(ir.IntLiteral)
	if !ok || lit.Bits != 42 {
		t.Errorf("quote operand = %#v, want IntLiteral{Bits: 42}", po.Operands[0].Payload)
	}
}

func TestOptimize_LeakingPushPopPreserved(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	callee := src.DeclareFunction("g", nil, nil)

	root := buildStackModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		val := src.IntLiteralNode(32, 42)
		bb.GenPrimOp(ir.OpPushStack, []*ir.Node{val}, nil)
		bb.Append(src.LeafCallNode(callee, nil))
		popped := bb.GenPrimOp(ir.OpPopStack, nil, []*ir.Node{i32})
		return src.ReturnNode(popped)
	})

	blk := optimizeAndGetBody(t, root, src)
	if len(blk.Instructions) != 3 {
		t.Fatalf("got %d instructions, want 3 (push_stack, call, pop_stack)", len(blk.Instructions))
	}
	if op := instrOp(t, blk.Instructions[0]); op != ir.OpPushStack {
		t.Errorf("instr[0].Op = %v, want OpPushStack (a call intervenes, so the pair must not be elided)", op)
	}
	if op := instrOp(t, blk.Instructions[2]); op != ir.OpPopStack {
		t.Errorf("instr[2].Op = %v, want OpPopStack", op)
	}
}

func TestOptimize_UnmatchedPopStaysIdentity(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()

	root := buildStackModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		popped := bb.GenPrimOp(ir.OpPopStack, nil, []*ir.Node{i32})
		return src.ReturnNode(popped)
	})

	blk := optimizeAndGetBody(t, root, src)
	if len(blk.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(blk.Instructions))
	}
	if op := instrOp(t, blk.Instructions[0]); op != ir.OpPopStack {
		t.Errorf("unmatched pop_stack.Op = %v, want OpPopStack (no frame to fold against)", op)
	}
}
