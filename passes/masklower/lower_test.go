package masklower

import (
	"testing"

	"github.com/gogpu/shadyir/ir"
)

// instrOps returns the Op of each PrimOp instruction in blk's
// instruction list, in order, skipping anything that is not a PrimOp
// (there should be none in these tests).
func instrOps(t *testing.T, blk ir.Block) []ir.Op {
	t.Helper()
	ops := make([]ir.Op, 0, len(blk.Instructions))
	for _, instr := range blk.Instructions {
		let, ok := instr.Payload.(ir.Let)
		if !ok {
			t.Fatalf("block instruction is not a Let: %#v", instr.Payload)
		}
		po, ok := let.Instruction.Payload.(ir.PrimOp)
		if !ok {
			t.Fatalf("Let instruction is not a PrimOp: %#v", let.Instruction.Payload)
		}
		ops = append(ops, po.Op)
	}
	return ops
}

func buildMaskModule(t *testing.T, src *ir.Arena, body func(bb *ir.BlockBuilder) *ir.Node) (*ir.Node, *ir.Node) {
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
	return root, fn
}

func lowerAndGetBody(t *testing.T, cfg ir.Config, root *ir.Node, src *ir.Arena) ir.Block {
	t.Helper()
	dst := ir.NewArena(cfg)
	newRoot, err := Lower(cfg, src, dst, root)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	r, ok := newRoot.Payload.(*ir.Root)
	if !ok || len(r.Declarations) != 1 {
		t.Fatalf("lowered module does not have exactly one declaration")
	}
	fn, ok := r.Declarations[0].Payload.(*ir.Function)
	if !ok {
		t.Fatalf("lowered declaration is not a Function")
	}
	blk, ok := fn.Body.Payload.(ir.Block)
	if !ok {
		t.Fatalf("lowered function has no block body")
	}
	return blk
}

func TestLower_EliminatesMaskType(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	maskT := src.MaskTypeNode()
	p := src.NewVariable("m", maskT)
	fn := src.DeclareFunction("f", []*ir.Node{p}, nil)
	blk := src.BlockNode(nil, src.ReturnNode(nil))
	if err := src.DefineFunctionBody(fn, blk); err != nil {
		t.Fatalf("DefineFunctionBody: %v", err)
	}
	root := src.NewModule("m")
	if err := src.SetDeclarations(root, []*ir.Node{fn}); err != nil {
		t.Fatalf("SetDeclarations: %v", err)
	}

	dst := ir.NewArena(ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskI64})
	newRoot, err := Lower(dst.Config, src, dst, root)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	newR := newRoot.Payload.(*ir.Root)
	newFn := newR.Declarations[0].Payload.(*ir.Function)
	if len(newFn.Params) != 1 {
		t.Fatalf("lowered function lost its parameter")
	}
	paramVar, ok := newFn.Params[0].Payload.(ir.Variable)
	if !ok {
		t.Fatalf("lowered parameter is not a Variable")
	}
	if paramVar.Type.Tag != ir.TagInt {
		t.Fatalf("parameter type tag = %v, want Int (MaskType must be eliminated)", paramVar.Type.Tag)
	}
	intT := paramVar.Type.Payload.(ir.Int)
	if intT.Width != 64 {
		t.Errorf("eliminated MaskType became Int width %d, want 64", intT.Width)
	}
}

func TestLower_EmptyMaskFoldsToZeroLiteral(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	maskT := src.MaskTypeNode()

	root, _ := buildMaskModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		results := bb.GenPrimOp(ir.OpEmptyMask, nil, []*ir.Node{maskT})
		return src.ReturnNode(results)
	})

	blk := lowerAndGetBody(t, ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskI64}, root, src)
	if len(blk.Instructions) != 0 {
		t.Fatalf("empty_mask should fold away entirely, got %d instructions", len(blk.Instructions))
	}
	ret, ok := blk.Terminator.Payload.(ir.Return)
	if !ok || len(ret.Values) != 1 {
		t.Fatalf("expected a one-value Return terminator")
	}
	lit, ok := ret.Values[0].Payload.(ir.IntLiteral)
	if !ok || lit.Width != 64 || lit.Bits != 0 {
		t.Errorf("empty_mask did not fold to IntLiteral{64, 0}, got %#v", ret.Values[0].Payload)
	}
}

func TestLower_MaskIsThreadActiveSequence(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	maskT := src.MaskTypeNode()

	root, _ := buildMaskModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		mask := bb.GenPrimOp(ir.OpEmptyMask, nil, []*ir.Node{maskT})[0]
		idx := src.IntLiteralNode(32, 3)
		res := bb.GenPrimOp(ir.OpMaskIsThreadActive, []*ir.Node{mask, idx}, []*ir.Node{src.BoolType()})
		return src.ReturnNode(res)
	})

	blk := lowerAndGetBody(t, ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskI64}, root, src)
	got := instrOps(t, blk)
	want := []ir.Op{ir.OpReinterpret, ir.OpRshiftLogical, ir.OpAnd, ir.OpEq}
	if len(got) != len(want) {
		t.Fatalf("mask_is_thread_active lowered to ops %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %v, want %v (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestLower_SubgroupBallotI64NoUnpacking(t *testing.T) {
	src := ir.NewArena(ir.Config{})

	root, _ := buildMaskModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		pred := src.TrueLitNode()
		res := bb.GenPrimOp(ir.OpSubgroupBallot, []*ir.Node{pred}, []*ir.Node{src.Int64Type()})
		return src.ReturnNode(res)
	})

	blk := lowerAndGetBody(t, ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskI64}, root, src)
	got := instrOps(t, blk)
	if len(got) != 1 || got[0] != ir.OpSubgroupBallot {
		t.Fatalf("subgroup_ballot under I64 representation lowered to %v, want [subgroup_ballot]", got)
	}
}

func TestLower_SubgroupBallotSpvKHRBallotUnpackingSequence(t *testing.T) {
	src := ir.NewArena(ir.Config{})

	root, _ := buildMaskModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		pred := src.TrueLitNode()
		res := bb.GenPrimOp(ir.OpSubgroupBallot, []*ir.Node{pred}, []*ir.Node{src.Int64Type()})
		return src.ReturnNode(res)
	})

	blk := lowerAndGetBody(t, ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskSpvKHRBallot}, root, src)
	got := instrOps(t, blk)
	want := []ir.Op{
		ir.OpSubgroupBallot,
		ir.OpExtract, ir.OpExtract,
		ir.OpReinterpret, ir.OpReinterpret,
		ir.OpLshift,
		ir.OpOr,
	}
	if len(got) != len(want) {
		t.Fatalf("subgroup_ballot under SpvKHRBallot lowered to %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %v, want %v (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestLower_SubgroupActiveMaskFoldsIntoBallotTrue(t *testing.T) {
	src := ir.NewArena(ir.Config{})

	root, _ := buildMaskModule(t, src, func(bb *ir.BlockBuilder) *ir.Node {
		res := bb.GenPrimOp(ir.OpSubgroupActiveMask, nil, []*ir.Node{src.Int64Type()})
		return src.ReturnNode(res)
	})

	blk := lowerAndGetBody(t, ir.Config{SubgroupMaskRepresentation: ir.SubgroupMaskI64}, root, src)
	got := instrOps(t, blk)
	if len(got) != 1 || got[0] != ir.OpSubgroupBallot {
		t.Fatalf("subgroup_active_mask lowered to %v, want [subgroup_ballot]", got)
	}
	let := blk.Instructions[0].Payload.(ir.Let)
	prim := let.Instruction.Payload.(ir.PrimOp)
	if len(prim.Operands) != 1 {
		t.Fatalf("folded subgroup_ballot has %d operands, want 1 (the synthesized true literal)", len(prim.Operands))
	}
	if _, ok := prim.Operands[0].Payload.(ir.TrueLit); !ok {
		t.Errorf("folded subgroup_ballot operand is not TrueLit: %#v", prim.Operands[0].Payload)
	}
}
