package ir

import "testing"

func TestBlockBuilder_GenPrimOpWrapsInBareLet(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()
	lit := a.IntLiteralNode(32, 1)

	bb := BeginBlock(a)
	results := bb.GenPrimOp(OpAdd, []*Node{lit, lit}, []*Node{i32})
	if len(results) != 1 {
		t.Fatalf("GenPrimOp returned %d results, want 1", len(results))
	}

	blk := bb.Finish(a.ReturnNode([]*Node{results[0]}))
	b, ok := blk.Payload.(Block)
	if !ok {
		t.Fatalf("Finish did not produce a Block node")
	}
	if len(b.Instructions) != 1 {
		t.Fatalf("Block has %d instructions, want 1", len(b.Instructions))
	}

	let, ok := b.Instructions[0].Payload.(Let)
	if !ok {
		t.Fatalf("block instruction is not a Let")
	}
	if let.Tail != nil {
		t.Errorf("GenPrimOp-produced Let has non-nil Tail; statement-position Lets must leave Tail nil")
	}
	if len(let.Variables) != 1 || let.Variables[0] != results[0] {
		t.Errorf("Let.Variables does not match the returned result variables")
	}
}

func TestBlockBuilder_FinishTwicePanics(t *testing.T) {
	a := NewArena(Config{})
	bb := BeginBlock(a)
	bb.Finish(a.UnreachableNode())

	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic calling Finish twice")
		}
	}()
	bb.Finish(a.UnreachableNode())
}

func TestBlockBuilder_AppendAfterFinishPanics(t *testing.T) {
	a := NewArena(Config{})
	bb := BeginBlock(a)
	bb.Finish(a.UnreachableNode())

	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic appending to a finished BlockBuilder")
		}
	}()
	bb.Append(a.UnreachableNode())
}
