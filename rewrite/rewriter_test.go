package rewrite

import (
	"testing"

	"github.com/gogpu/shadyir/ir"
)

// identityFn recreates every node unchanged; it is the simplest
// possible pass and exercises the plain recursive path.
func identityFn(r *Rewriter, old *ir.Node) *ir.Node {
	return r.RecreateNodeIdentity(old)
}

func buildSimpleModule(src *ir.Arena) *ir.Node {
	i32 := src.Int32Type()
	p := src.NewVariable("p", i32)
	fn := src.DeclareFunction("f", []*ir.Node{p}, []*ir.Node{i32})
	body := src.BlockNode(nil, src.ReturnNode([]*ir.Node{p}))
	if err := src.DefineFunctionBody(fn, body); err != nil {
		panic(err)
	}
	root := src.NewModule("m")
	if err := src.SetDeclarations(root, []*ir.Node{fn}); err != nil {
		panic(err)
	}
	return root
}

func TestRewriteModule_IdentityPreservesShape(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	root := buildSimpleModule(src)

	r := NewRewriter(src, dst, identityFn)
	r.SrcModule = root
	newRoot, err := r.RunModule()
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}

	newR, ok := newRoot.Payload.(*ir.Root)
	if !ok || len(newR.Declarations) != 1 {
		t.Fatalf("rewritten module does not have exactly one declaration")
	}
	newFn, ok := newR.Declarations[0].Payload.(*ir.Function)
	if !ok {
		t.Fatalf("rewritten declaration is not a Function")
	}
	if newFn.Name != "f" {
		t.Errorf("rewritten function name = %q, want %q", newFn.Name, "f")
	}
	if newFn.Body == nil {
		t.Fatalf("rewritten function has no body")
	}
}

func TestRewriteNode_MemoizesSharedSubgraph(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()

	r := NewRewriter(src, dst, identityFn)
	a := r.RewriteNode(i32)
	b := r.RewriteNode(i32)
	if a != b {
		t.Errorf("RewriteNode produced distinct nodes for the same source node under a memoized rewriter")
	}
}

func TestSubstituter_DoesNotShortCircuit(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()

	calls := 0
	fn := func(r *Rewriter, old *ir.Node) *ir.Node {
		calls++
		return r.RecreateNodeIdentity(old)
	}
	r := NewSubstituter(src, dst, fn)
	r.RewriteNode(i32)
	r.RewriteNode(i32)

	if calls != 2 {
		t.Errorf("substituter invoked the rewrite function %d times, want 2 (no search-map short circuit)", calls)
	}
	// Writes are still registered; the second registration does not
	// conflict because the dst-side Intern returns the same node both
	// times even though the rewriter itself re-expands.
}

func TestRegisterProcessed_ConflictingRegistrationErrors(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()

	r := NewRewriter(src, dst, identityFn)
	if err := r.RegisterProcessed(i32, dst.Int32Type()); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterProcessed(i32, dst.Int64Type()); err == nil {
		t.Errorf("expected an error re-registering a node under a conflicting mapping")
	}
}

func TestRecreateDeclHeaderIdentity_GlobalVariable(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	ann := src.AnnotationNode("Foo")
	gv := src.GlobalVar([]*ir.Node{ann}, src.GlobalVarPointerType(i32, ir.AddressPrivate), "g")

	r := NewRewriter(src, dst, identityFn)
	newGV := r.RecreateDeclHeaderIdentity(gv)

	p, ok := newGV.Payload.(ir.GlobalVariable)
	if !ok {
		t.Fatalf("recreated node is not a GlobalVariable")
	}
	ptr, ok := ir.GlobalVariablePointer(p)
	if !ok {
		t.Fatalf("recreated GlobalVariable is not a Uniform pointer")
	}
	if p.Name != "g" || ptr.AddressSpace != ir.AddressPrivate {
		t.Errorf("recreated GlobalVariable = %+v (pointer %+v), want Name=g AddressSpace=Private", p, ptr)
	}
	if len(p.Annotations) != 1 {
		t.Errorf("recreated GlobalVariable lost its annotations")
	}

	if mapped, ok := r.FindProcessed(gv); !ok || mapped != newGV {
		t.Errorf("RecreateDeclHeaderIdentity did not register old->new in the declaration map")
	}
}

func TestRecreateVariable_Memoizes(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	dst := ir.NewArena(ir.Config{})
	v := src.NewVariable("x", src.Int32Type())

	r := NewRewriter(src, dst, identityFn)
	v1 := r.RecreateVariable(v)
	v2 := r.RecreateVariable(v)
	if v1 != v2 {
		t.Errorf("RecreateVariable produced two distinct nodes for the same source variable")
	}
}
