package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIntern_DeduplicatesStructurallyEqual(t *testing.T) {
	a := NewArena(Config{})

	i1 := a.IntType(32, true)
	i2 := a.IntType(32, true)
	if i1 != i2 {
		t.Fatalf("two IntType(32, true) calls produced distinct nodes")
	}

	i3 := a.IntType(32, false)
	if i1 == i3 {
		t.Fatalf("IntType(32, true) and IntType(32, false) were interned as the same node")
	}
}

func TestIntern_NodeTypedFieldsByIdentityNotValue(t *testing.T) {
	a := NewArena(Config{})

	i32 := a.IntType(32, true)
	ptr1 := a.PtrTypeNode(i32, AddressGlobal)
	ptr2 := a.PtrTypeNode(i32, AddressGlobal)
	if ptr1 != ptr2 {
		t.Fatalf("two PtrTypeNode calls over the same pointee were not deduplicated")
	}

	i32Again := a.IntType(32, true)
	if i32 != i32Again {
		t.Fatalf("IntType re-interning changed node identity")
	}
}

func TestNewVariable_NeverDeduplicated(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.IntType(32, true)

	v1 := a.NewVariable("x", i32)
	v2 := a.NewVariable("x", i32)
	if v1 == v2 {
		t.Fatalf("two NewVariable calls with identical name/type were deduplicated; variables must always be fresh")
	}
}

func TestRecordType_Dedup(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()

	r1 := a.RecordTypeNode([]*Node{i32, i32}, []string{"a", "b"}, NotSpecial)
	r2 := a.RecordTypeNode([]*Node{i32, i32}, []string{"a", "b"}, NotSpecial)
	if r1 != r2 {
		t.Fatalf("structurally equal RecordType nodes were not deduplicated")
	}

	r3 := a.RecordTypeNode([]*Node{i32, i32}, []string{"a", "b"}, DecorateBlock)
	if r1 == r3 {
		t.Fatalf("RecordType nodes differing only in Special were deduplicated")
	}
}

func TestDefineFunctionBody_AttachesBodyOnce(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()

	fn := a.DeclareFunction("f", []*Node{a.NewVariable("p", i32)}, []*Node{i32})
	retBlock := a.BlockNode(nil, a.ReturnNode([]*Node{a.IntLiteralNode(32, 1)}))
	if err := a.DefineFunctionBody(fn, retBlock); err != nil {
		t.Fatalf("DefineFunctionBody: %v", err)
	}

	f, ok := fn.Payload.(*Function)
	if !ok {
		t.Fatalf("fn payload is not *Function")
	}
	if f.Body != retBlock {
		t.Fatalf("DefineFunctionBody did not attach the given body")
	}

	if err := a.DefineFunctionBody(fn, retBlock); err == nil {
		t.Fatalf("expected an error defining a function body twice")
	}
}

func TestSetDeclarations_OnceOnly(t *testing.T) {
	a := NewArena(Config{})
	root := a.NewModule("m")

	gv := a.GlobalVar(nil, a.GlobalVarPointerType(a.Int32Type(), AddressPrivate), "g")
	if err := a.SetDeclarations(root, []*Node{gv}); err != nil {
		t.Fatalf("SetDeclarations: %v", err)
	}
	if err := a.SetDeclarations(root, []*Node{gv}); err == nil {
		t.Fatalf("expected an error setting declarations twice")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadConfig(empty): %v", err)
	}
	if cfg.SubgroupMaskRepresentation != SubgroupMaskSpvKHRBallot {
		t.Errorf("default SubgroupMaskRepresentation = %v, want SpvKHRBallot", cfg.SubgroupMaskRepresentation)
	}
	if cfg.SubgroupSize == 0 {
		t.Errorf("LoadConfig left SubgroupSize at 0")
	}
}

func TestLoadConfig_I64(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("subgroup_mask_representation: I64\nsubgroup_size: 32\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{SubgroupMaskRepresentation: SubgroupMaskI64, SubgroupSize: 32}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig result mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_UnrecognizedRepresentation(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("subgroup_mask_representation: Bogus\n"))
	if err == nil {
		t.Fatalf("expected an error for an unrecognized subgroup_mask_representation")
	}
}

func TestNewArena_FillsDefaultSubgroupSize(t *testing.T) {
	a := NewArena(Config{})
	if a.Config.SubgroupSize != DefaultSubgroupSize {
		t.Errorf("NewArena(Config{}).Config.SubgroupSize = %d, want %d", a.Config.SubgroupSize, DefaultSubgroupSize)
	}
}
