package rewrite

import "github.com/gogpu/shadyir/ir"

// RecreateNodeIdentity produces a new node in DstArena by recursively
// rewriting every node-typed payload field of old and re-interning
// the result with old's tag. It is the fallback every pass delegates
// to for the variants it does not override, and is total over every
// tag the node model defines.
func (r *Rewriter) RecreateNodeIdentity(old *ir.Node) *ir.Node {
	switch p := old.Payload.(type) {
	case ir.Int:
		return r.DstArena.IntType(p.Width, p.Signed)
	case ir.PtrType:
		return r.DstArena.PtrTypeNode(r.RewriteNode(p.Pointee), p.AddressSpace)
	case ir.RecordType:
		return r.DstArena.RecordTypeNode(r.RewriteNodes(p.Members), p.Names, p.Special)
	case ir.FnType:
		return r.DstArena.FnTypeNode(r.RewriteNodes(p.Params), r.RewriteNodes(p.Returns))
	case ir.QualifiedType:
		return r.DstArena.QualifiedTypeNode(r.RewriteNode(p.Inner), p.Divergence)
	case ir.MaskType:
		return r.DstArena.MaskTypeNode()
	case ir.IntLiteral:
		return r.DstArena.IntLiteralNode(p.Width, p.Bits)
	case ir.TrueLit:
		return r.DstArena.TrueLitNode()
	case ir.Variable:
		return r.RecreateVariable(old)
	case ir.PrimOp:
		return r.DstArena.PrimOpNode(p.Op, r.RewriteNodes(p.Operands))
	case ir.LeafCall:
		return r.DstArena.LeafCallNode(r.RewriteNode(p.Callee), r.RewriteNodes(p.Args))
	case ir.IndirectCall:
		return r.DstArena.IndirectCallNode(r.RewriteNode(p.Callee), r.RewriteNodes(p.Args))
	case ir.Match:
		newCases := make([]ir.MatchCase, len(p.Cases))
		for i, c := range p.Cases {
			newCases[i] = ir.MatchCase{Value: c.Value, Body: r.RewriteNode(c.Body)}
		}
		return r.DstArena.MatchNode(r.RewriteNode(p.Inspect), newCases, r.RewriteNode(p.Default))
	case ir.Control:
		return r.DstArena.ControlNode(r.RewriteNode(p.Body))
	case ir.Loop:
		return r.DstArena.LoopNode(r.RewriteNode(p.Body))
	case ir.If:
		return r.DstArena.IfNode(r.RewriteNode(p.Condition), r.RewriteNode(p.Then), r.RewriteNode(p.Else))
	case ir.Let:
		// Instruction is rewritten before the bound variables are
		// recreated: the instruction can only reference values that
		// are already in scope, never the variables it is about to
		// bind. Variables are recreated (fresh identity, registered
		// old→new) before Tail so references inside Tail resolve.
		newInstr := r.RewriteNode(p.Instruction)
		newVars := r.RecreateVariables(p.Variables)
		newTail := r.RewriteNode(p.Tail)
		return r.DstArena.LetNode(newVars, newInstr, newTail)
	case ir.Block:
		return r.DstArena.BlockNode(r.RewriteNodes(p.Instructions), r.RewriteNode(p.Terminator))
	case ir.GlobalVariable:
		return r.DstArena.GlobalVar(r.RewriteNodes(p.Annotations), r.RewriteNode(p.Type), p.Name)
	case ir.Annotation:
		return r.DstArena.AnnotationNode(p.Name)
	case ir.Return:
		return r.DstArena.ReturnNode(r.RewriteNodes(p.Values))
	case ir.Unreachable:
		return r.DstArena.UnreachableNode()
	case *ir.Function:
		newHeader := r.RecreateDeclHeaderIdentity(old)
		r.RecreateDeclBodyIdentity(old, newHeader)
		return newHeader
	case *ir.Root:
		newRoot := r.DstArena.NewModule("")
		if err := r.RegisterProcessed(old, newRoot); err != nil {
			panic(err)
		}
		decls := r.RewriteNodes(p.Declarations)
		if err := r.DstArena.SetDeclarations(newRoot, decls); err != nil {
			panic(err)
		}
		return newRoot
	default:
		panic(&ir.InvariantViolationError{Tag: old.Tag, Message: "RecreateNodeIdentity: unhandled payload type"})
	}
}

// RecreateVariable builds a fresh Variable in DstArena carrying old's
// (rewritten) type and registers old→new, so that later references to
// old within the same rewrite resolve to the new identity. Calling it
// twice on the same old returns the previously recreated variable.
func (r *Rewriter) RecreateVariable(old *ir.Node) *ir.Node {
	if n, ok := r.SearchProcessed(old); ok {
		return n
	}
	v, ok := old.Payload.(ir.Variable)
	if !ok {
		panic(&ir.InvariantViolationError{Tag: old.Tag, Message: "RecreateVariable called on a non-Variable node"})
	}
	newVar := r.DstArena.NewVariable(v.Name, r.RewriteNode(v.Type))
	if err := r.RegisterProcessed(old, newVar); err != nil {
		panic(err)
	}
	return newVar
}

// RecreateVariables maps RecreateVariable over olds, preserving order.
func (r *Rewriter) RecreateVariables(olds []*ir.Node) []*ir.Node {
	if olds == nil {
		return nil
	}
	news := make([]*ir.Node, len(olds))
	for i, o := range olds {
		news[i] = r.RecreateVariable(o)
	}
	return news
}

// RecreateDeclHeaderIdentity creates the new declaration node with its
// signature/type filled in (an empty body placeholder for Function),
// registers old→new, and returns. It must be called before the
// declaration's body is rewritten so self- and mutually-recursive
// references resolve to the new identity rather than recursing
// forever.
func (r *Rewriter) RecreateDeclHeaderIdentity(old *ir.Node) *ir.Node {
	switch f := old.Payload.(type) {
	case *ir.Function:
		newParams := r.RecreateVariables(f.Params)
		newReturnTypes := r.RewriteNodes(f.ReturnTypes)
		newHeader := r.DstArena.DeclareFunction(f.Name, newParams, newReturnTypes)
		if err := r.RegisterProcessed(old, newHeader); err != nil {
			panic(err)
		}
		return newHeader
	case ir.GlobalVariable:
		newAnn := r.RewriteNodes(f.Annotations)
		newType := r.RewriteNode(f.Type)
		newGV := r.DstArena.GlobalVar(newAnn, newType, f.Name)
		if err := r.RegisterProcessed(old, newGV); err != nil {
			panic(err)
		}
		return newGV
	default:
		panic(&ir.InvariantViolationError{Tag: old.Tag, Message: "RecreateDeclHeaderIdentity called on a non-declaration node"})
	}
}

// RecreateDeclBodyIdentity fills in the body of a declaration header
// previously produced by RecreateDeclHeaderIdentity. GlobalVariable
// has no body phase, so this is a no-op for it.
func (r *Rewriter) RecreateDeclBodyIdentity(old, newHeader *ir.Node) {
	f, ok := old.Payload.(*ir.Function)
	if !ok {
		return
	}
	if f.Body == nil {
		return
	}
	newBody := r.RewriteNode(f.Body)
	if err := r.DstArena.DefineFunctionBody(newHeader, newBody); err != nil {
		panic(err)
	}
}

// RewriteModule seeds the rewrite by registering the source module's
// root, then rewrites every top-level declaration (each dispatched
// through RewriteNode, which applies the two-phase protocol for
// Function declarations via RecreateNodeIdentity or an overriding
// Hooks.RewriteDecl).
func (r *Rewriter) RewriteModule() *ir.Node {
	root, ok := r.SrcModule.Payload.(*ir.Root)
	if !ok {
		panic(&ir.InvariantViolationError{Tag: r.SrcModule.Tag, Message: "RewriteModule: SrcModule is not a Root"})
	}
	newRoot := r.DstArena.NewModule("")
	r.DstModule = newRoot
	if err := r.RegisterProcessed(r.SrcModule, newRoot); err != nil {
		panic(err)
	}
	newDecls := r.RewriteNodes(root.Declarations)
	if err := r.DstArena.SetDeclarations(newRoot, newDecls); err != nil {
		panic(err)
	}
	return newRoot
}
