package entrypoint

import (
	"errors"
	"testing"

	"github.com/gogpu/shadyir/ir"
)

func buildEntryModule(src *ir.Arena, gv *ir.Node) *ir.Node {
	root := src.NewModule("m")
	if err := src.SetDeclarations(root, []*ir.Node{gv}); err != nil {
		panic(err)
	}
	return root
}

func TestRemap_RewritesExternalToPushConstant(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	recordT := src.RecordTypeNode([]*ir.Node{i32, i32}, []string{"a", "b"}, ir.NotSpecial)
	ann := src.AnnotationNode("EntryPointArgs")
	gv := src.GlobalVar([]*ir.Node{ann}, src.GlobalVarPointerType(recordT, ir.AddressExternal), "args")
	root := buildEntryModule(src, gv)

	dst := ir.NewArena(ir.Config{})
	newRoot, err := Remap(ir.Config{}, src, dst, root)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}

	r := newRoot.Payload.(*ir.Root)
	newGV, ok := r.Declarations[0].Payload.(ir.GlobalVariable)
	if !ok {
		t.Fatalf("remapped declaration is not a GlobalVariable")
	}
	ptr, ok := ir.GlobalVariablePointer(newGV)
	if !ok {
		t.Fatalf("remapped global is not a Uniform pointer")
	}
	if ptr.AddressSpace != ir.AddressPushConstant {
		t.Errorf("AddressSpace = %v, want PushConstant", ptr.AddressSpace)
	}
	rt, ok := ptr.Pointee.Payload.(ir.RecordType)
	if !ok {
		t.Fatalf("remapped global's type is not a RecordType")
	}
	if rt.Special != ir.DecorateBlock {
		t.Errorf("remapped record type Special = %v, want DecorateBlock", rt.Special)
	}
	if len(rt.Members) != 2 {
		t.Errorf("remapped record type lost members: %v", rt.Members)
	}
}

func TestRemap_UnannotatedGlobalPassesThroughUnchanged(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	gv := src.GlobalVar(nil, src.GlobalVarPointerType(i32, ir.AddressPrivate), "plain")
	root := buildEntryModule(src, gv)

	dst := ir.NewArena(ir.Config{})
	newRoot, err := Remap(ir.Config{}, src, dst, root)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}

	r := newRoot.Payload.(*ir.Root)
	newGV := r.Declarations[0].Payload.(ir.GlobalVariable)
	ptr, ok := ir.GlobalVariablePointer(newGV)
	if !ok {
		t.Fatalf("unannotated global is not a Uniform pointer")
	}
	if ptr.AddressSpace != ir.AddressPrivate {
		t.Errorf("unannotated global's AddressSpace changed to %v", ptr.AddressSpace)
	}
}

func TestRemap_WrongAddressSpaceIsMalformedInput(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	recordT := src.RecordTypeNode([]*ir.Node{i32}, []string{"a"}, ir.NotSpecial)
	ann := src.AnnotationNode("EntryPointArgs")
	gv := src.GlobalVar([]*ir.Node{ann}, src.GlobalVarPointerType(recordT, ir.AddressPrivate), "args")
	root := buildEntryModule(src, gv)

	dst := ir.NewArena(ir.Config{})
	_, err := Remap(ir.Config{}, src, dst, root)
	if err == nil {
		t.Fatalf("expected a MalformedInputError for an EntryPointArgs global not in AddressExternal")
	}
	var malformed *MalformedInputError
	if !errors.As(err, &malformed) {
		t.Errorf("error is not a *MalformedInputError: %v", err)
	}
}

func TestRemap_NonRecordTypeIsMalformedInput(t *testing.T) {
	src := ir.NewArena(ir.Config{})
	i32 := src.Int32Type()
	ann := src.AnnotationNode("EntryPointArgs")
	gv := src.GlobalVar([]*ir.Node{ann}, src.GlobalVarPointerType(i32, ir.AddressExternal), "args")
	root := buildEntryModule(src, gv)

	dst := ir.NewArena(ir.Config{})
	_, err := Remap(ir.Config{}, src, dst, root)
	if err == nil {
		t.Fatalf("expected a MalformedInputError for a non-record EntryPointArgs type")
	}
}
