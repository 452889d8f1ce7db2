package entrypoint

import (
	"github.com/gogpu/shadyir/ir"
	"github.com/gogpu/shadyir/rewrite"
)

// Remap rewrites every "EntryPointArgs"-annotated global variable
// from address space External to PushConstant, marking its record
// type DecorateBlock. It satisfies ir.Pass.
func Remap(cfg ir.Config, src, dst *ir.Arena, root *ir.Node) (*ir.Node, error) {
	r := rewrite.NewRewriter(src, dst, process)
	r.SrcModule = root
	return r.RunModule()
}

func process(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	if found, ok := r.SearchProcessed(old); ok {
		return found
	}
	if old.Tag == ir.TagGlobalVariable {
		gv := old.Payload.(ir.GlobalVariable)
		if hasAnnotation(gv.Annotations, "EntryPointArgs") {
			return processEntryPointArgs(r, old, gv)
		}
	}
	return r.RecreateNodeIdentity(old)
}

func hasAnnotation(anns []*ir.Node, name string) bool {
	for _, a := range anns {
		if a.Tag != ir.TagAnnotation {
			continue
		}
		if ann, ok := a.Payload.(ir.Annotation); ok && ann.Name == name {
			return true
		}
	}
	return false
}

func processEntryPointArgs(r *rewrite.Rewriter, old *ir.Node, gv ir.GlobalVariable) *ir.Node {
	ptr, ok := ir.GlobalVariablePointer(gv)
	if !ok {
		panic(&MalformedInputError{Name: gv.Name, Message: "EntryPointArgs global must be a Uniform pointer type"})
	}
	if ptr.AddressSpace != ir.AddressExternal {
		panic(&MalformedInputError{Name: gv.Name, Message: "EntryPointArgs address space must be External"})
	}

	newAnnotations := r.RewriteNodes(gv.Annotations)
	newPointee := rewriteArgsType(r, ptr.Pointee)
	newType := r.DstArena.GlobalVarPointerType(newPointee, ir.AddressPushConstant)
	newVar := r.DstArena.GlobalVar(newAnnotations, newType, gv.Name)
	if err := r.RegisterProcessed(old, newVar); err != nil {
		panic(err)
	}
	return newVar
}

func rewriteArgsType(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	rt, ok := old.Payload.(ir.RecordType)
	if !ok || rt.Special != ir.NotSpecial {
		panic(&MalformedInputError{Message: "EntryPointArgs type must be a plain record type"})
	}
	newType := r.DstArena.RecordTypeNode(r.RewriteNodes(rt.Members), rt.Names, ir.DecorateBlock)
	if err := r.RegisterProcessed(old, newType); err != nil {
		panic(err)
	}
	return newType
}
