package spirv

import "github.com/gogpu/shadyir/ir"

// binaryOpcodes maps the two-operand integer ops the emitter supports
// directly onto their SPIR-V opcode.
var binaryOpcodes = map[ir.Op]OpCode{
	ir.OpAdd:            OpIAdd,
	ir.OpAnd:            OpBitwiseAnd,
	ir.OpOr:             OpBitwiseOr,
	ir.OpEq:             OpIEqual,
	ir.OpLshift:         OpShiftLeftLogical,
	ir.OpRshiftLogical:  OpShiftRightLogical,
}

// emitter walks a fully lowered module (mask lowering, stack
// optimization, and the entry-point-args remap already applied) and
// writes it into a ModuleBuilder. One emitter is used for exactly one
// module: its node-identity cache is not meant to be reused.
type emitter struct {
	arena *ir.Arena
	b     *ModuleBuilder

	// ids caches every node (type or value) already emitted, keyed by
	// identity, matching the single node_ids table the source
	// emitter keeps.
	ids map[*ir.Node]uint32

	voidType uint32

	capInt64        bool
	capGroupBallot  bool
	scopeSubgroupID uint32

	// fn names the function currently being emitted, for error
	// context; empty outside of a function body.
	fn string
}

// Emit writes root (a module produced by arena) to a SPIR-V binary.
// arena must be the same arena root's nodes were allocated from: it is
// consulted to synthesize auxiliary type nodes (a record type for a
// multi-value return, the type of an integer literal) the node model
// does not carry explicitly.
func Emit(arena *ir.Arena, root *ir.Node, opts Options) ([]byte, error) {
	e := &emitter{
		arena: arena,
		b:     NewModuleBuilder(opts.Version),
		ids:   make(map[*ir.Node]uint32),
	}

	e.b.AddCapability(CapabilityShader)
	e.b.AddCapability(CapabilityLinkage)
	e.b.AddCapability(CapabilityPhysicalStorageBufferAddresses)
	for _, c := range opts.Capabilities {
		e.b.AddCapability(c)
	}
	e.b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	e.voidType = e.b.AddTypeVoid()

	rootPayload, ok := root.Payload.(*ir.Root)
	if !ok {
		return nil, &ir.InvariantViolationError{Tag: root.Tag, Message: "spirv: Emit called on a non-Root node"}
	}

	for _, decl := range rootPayload.Declarations {
		id := e.b.AllocID()
		e.ids[decl] = id
		if name := declName(decl); name != "" {
			e.b.AddName(id, name)
		}
	}

	for _, decl := range rootPayload.Declarations {
		if err := e.emitDecl(decl); err != nil {
			return nil, err
		}
	}

	return e.b.Build(), nil
}

// Emit is a convenience wrapping the package-level Emit with w's
// options.
func (w *Writer) Emit(arena *ir.Arena, root *ir.Node) ([]byte, error) {
	return Emit(arena, root, w.options)
}

func declName(decl *ir.Node) string {
	switch p := decl.Payload.(type) {
	case ir.GlobalVariable:
		return p.Name
	case *ir.Function:
		return p.Name
	default:
		return ""
	}
}

func (e *emitter) emitDecl(decl *ir.Node) error {
	switch p := decl.Payload.(type) {
	case ir.GlobalVariable:
		return e.emitGlobalVariable(decl, p)
	case *ir.Function:
		return e.emitFunction(decl, p)
	default:
		return &ir.InvariantViolationError{Tag: decl.Tag, Message: "spirv: top-level declaration is neither a GlobalVariable nor a Function"}
	}
}

// emitGlobalVariable implements the "global with no definition" branch
// of the top-level protocol: this node model has no initializer slot
// on GlobalVariable, so every one takes this path. Its qualifier must
// be Uniform and its type must be a pointer; the storage class is
// derived from that pointer's address space, not from the variable
// itself.
func (e *emitter) emitGlobalVariable(node *ir.Node, gv ir.GlobalVariable) error {
	ptr, ok := ir.GlobalVariablePointer(gv)
	if !ok {
		return &ir.InvariantViolationError{Tag: node.Tag, Message: "global variable's qualifier must be Uniform and its type must be a pointer"}
	}
	pointeeID, err := e.emitType(ptr.Pointee)
	if err != nil {
		return err
	}
	sc, err := addressSpaceToStorageClass(ptr.AddressSpace, true)
	if err != nil {
		return err
	}
	ptrTypeID := e.b.AddTypePointer(sc, pointeeID)
	e.b.AddVariableID(e.ids[node], ptrTypeID, sc)
	return nil
}

func (e *emitter) emitFunction(node *ir.Node, f *ir.Function) error {
	id := e.ids[node]

	ft := ir.DeriveFnType(node)
	fnTypeID, err := e.emitType(e.arena.FnTypeNode(ft.Params, ft.Returns))
	if err != nil {
		return err
	}
	retTypeID, err := e.emitReturnType(f.ReturnTypes)
	if err != nil {
		return err
	}
	e.b.AddFunctionID(id, fnTypeID, retTypeID, FunctionControlNone)

	for _, p := range f.Params {
		v := p.Payload.(ir.Variable)
		typeID, err := e.emitType(v.Type)
		if err != nil {
			return err
		}
		e.ids[p] = e.b.AddFunctionParameter(typeID)
	}

	prevFn := e.fn
	e.fn = f.Name
	defer func() { e.fn = prevFn }()

	e.b.AddLabel()
	if f.Body != nil {
		blk := f.Body.Payload.(ir.Block)
		if err := e.emitBlock(blk); err != nil {
			return err
		}
	}
	e.b.AddFunctionEnd()
	return nil
}

// emitReturnType implements nodes2codom: zero returns is void, one
// return is its own type, two or more are packed into a synthesized
// record type.
func (e *emitter) emitReturnType(returns []*ir.Node) (uint32, error) {
	switch len(returns) {
	case 0:
		return e.voidType, nil
	case 1:
		return e.emitType(returns[0])
	default:
		return e.emitType(e.arena.RecordTypeNode(returns, nil, ir.NotSpecial))
	}
}

func (e *emitter) emitBlock(blk ir.Block) error {
	for _, instr := range blk.Instructions {
		if err := e.emitStatement(instr); err != nil {
			return err
		}
	}
	return e.emitTerminator(blk.Terminator)
}

// emitStatement handles one element of a Block's flat instruction
// list: almost always a Let, occasionally a bare call made for its
// side effect alone.
func (e *emitter) emitStatement(instr *ir.Node) error {
	if instr.Tag == ir.TagLet {
		return e.emitLet(instr.Payload.(ir.Let))
	}
	return e.emitInstruction(instr, nil)
}

// emitTerminator dispatches a Block's terminator. A Let is accepted
// here too (see ir.IsTerminator on Let as a terminator form) and
// recurses into its Tail.
func (e *emitter) emitTerminator(term *ir.Node) error {
	if term == nil {
		return &ir.InvariantViolationError{Message: "spirv: block terminator is nil"}
	}
	switch term.Tag {
	case ir.TagLet:
		l := term.Payload.(ir.Let)
		if err := e.emitLet(l); err != nil {
			return err
		}
		return e.emitTerminator(l.Tail)
	case ir.TagReturn:
		return e.emitReturn(term.Payload.(ir.Return))
	case ir.TagUnreachable:
		e.b.AddUnreachable()
		return nil
	default:
		return &UnsupportedOpError{Tag: term.Tag, Context: e.fn}
	}
}

func (e *emitter) emitReturn(r ir.Return) error {
	switch len(r.Values) {
	case 0:
		e.b.AddReturn()
		return nil
	case 1:
		id, err := e.emitValue(r.Values[0])
		if err != nil {
			return err
		}
		e.b.AddReturnValue(id)
		return nil
	default:
		ids := make([]uint32, len(r.Values))
		types := make([]*ir.Node, len(r.Values))
		for i, v := range r.Values {
			id, err := e.emitValue(v)
			if err != nil {
				return err
			}
			ids[i] = id
			t, err := e.valueType(v)
			if err != nil {
				return err
			}
			types[i] = t
		}
		structTypeID, err := e.emitType(e.arena.RecordTypeNode(types, nil, ir.NotSpecial))
		if err != nil {
			return err
		}
		composite := e.b.AddCompositeConstruct(structTypeID, ids...)
		e.b.AddReturnValue(composite)
		return nil
	}
}

func (e *emitter) emitLet(l ir.Let) error {
	return e.emitInstruction(l.Instruction, l.Variables)
}

func (e *emitter) emitInstruction(instr *ir.Node, vars []*ir.Node) error {
	switch p := instr.Payload.(type) {
	case ir.PrimOp:
		return e.emitPrimOp(p, vars)
	case ir.LeafCall:
		return e.emitLeafCall(p, vars)
	default:
		return &UnsupportedOpError{Tag: instr.Tag, Context: e.fn}
	}
}

func (e *emitter) emitPrimOp(po ir.PrimOp, vars []*ir.Node) error {
	switch po.Op {
	case ir.OpUnit:
		// An elided push_stack: no result, no side effect.
		return nil

	case ir.OpQuote:
		// An elided pop_stack: re-expose an already-known value under
		// the bound variable's identity with no new instruction.
		if len(vars) != 1 || len(po.Operands) != 1 {
			return &ir.InvariantViolationError{Message: "spirv: quote expects one operand and one result"}
		}
		v, err := e.emitValue(po.Operands[0])
		if err != nil {
			return err
		}
		e.ids[vars[0]] = v
		return nil

	case ir.OpAdd, ir.OpAnd, ir.OpOr, ir.OpEq, ir.OpLshift, ir.OpRshiftLogical:
		if len(po.Operands) != 2 || len(vars) != 1 {
			return &ir.InvariantViolationError{Message: "spirv: " + po.Op.String() + " expects two operands and one result"}
		}
		a, err := e.emitValue(po.Operands[0])
		if err != nil {
			return err
		}
		b, err := e.emitValue(po.Operands[1])
		if err != nil {
			return err
		}
		resultType, err := e.emitType(e.varType(vars[0]))
		if err != nil {
			return err
		}
		e.ids[vars[0]] = e.b.AddBinaryOp(binaryOpcodes[po.Op], resultType, a, b)
		return nil

	case ir.OpReinterpret:
		// Operands[0] is the target type node, Operands[1] the value
		// being reinterpreted (see block builder call sites in the
		// mask-lowering pass).
		if len(po.Operands) != 2 || len(vars) != 1 {
			return &ir.InvariantViolationError{Message: "spirv: reinterpret expects a target type and a value"}
		}
		valueID, err := e.emitValue(po.Operands[1])
		if err != nil {
			return err
		}
		resultType, err := e.emitType(e.varType(vars[0]))
		if err != nil {
			return err
		}
		e.ids[vars[0]] = e.b.AddUnaryOp(OpBitcast, resultType, valueID)
		return nil

	case ir.OpExtract:
		// Operands[0] is the composite; the rest are IntLiteral
		// index nodes carrying a raw literal word each, not operand
		// ids (SPIR-V encodes OpCompositeExtract's path as literals).
		if len(po.Operands) < 2 || len(vars) != 1 {
			return &ir.InvariantViolationError{Message: "spirv: extract expects a composite and at least one index"}
		}
		compositeID, err := e.emitValue(po.Operands[0])
		if err != nil {
			return err
		}
		indices := make([]uint32, 0, len(po.Operands)-1)
		for _, idxNode := range po.Operands[1:] {
			lit, ok := idxNode.Payload.(ir.IntLiteral)
			if !ok {
				return &ir.InvariantViolationError{Message: "spirv: extract index must be an IntLiteral"}
			}
			indices = append(indices, uint32(lit.Bits))
		}
		resultType, err := e.emitType(e.varType(vars[0]))
		if err != nil {
			return err
		}
		e.ids[vars[0]] = e.b.AddCompositeExtract(resultType, compositeID, indices...)
		return nil

	case ir.OpSubgroupBallot:
		if len(po.Operands) != 1 || len(vars) != 1 {
			return &ir.InvariantViolationError{Message: "spirv: subgroup_ballot expects one predicate and one result"}
		}
		predID, err := e.emitValue(po.Operands[0])
		if err != nil {
			return err
		}
		scopeID, err := e.scopeSubgroupConstant()
		if err != nil {
			return err
		}
		resultType, err := e.emitBallotResultType(e.varType(vars[0]))
		if err != nil {
			return err
		}
		e.ids[vars[0]] = e.b.AddGroupNonUniformBallot(resultType, scopeID, predID)
		return nil

	default:
		// empty_mask, mask_is_thread_active, and subgroup_active_mask
		// never reach here: mask lowering eliminates all three.
		// push_stack/pop_stack reach here only when stack
		// optimization proved a leak (scenario 6) — no SPIR-V
		// instruction models the source language's implicit stack, so
		// this stays a documented gap rather than a silent failure.
		return &UnsupportedOpError{Op: po.Op, Context: e.fn}
	}
}

func (e *emitter) emitLeafCall(lc ir.LeafCall, vars []*ir.Node) error {
	calleeID, ok := e.ids[lc.Callee]
	if !ok {
		return &ir.InvariantViolationError{Message: "spirv: call to a function whose id was never reserved"}
	}
	argIDs := make([]uint32, len(lc.Args))
	for i, a := range lc.Args {
		id, err := e.emitValue(a)
		if err != nil {
			return err
		}
		argIDs[i] = id
	}

	var resultType uint32
	switch len(vars) {
	case 0:
		resultType = e.voidType
	case 1:
		t, err := e.emitType(e.varType(vars[0]))
		if err != nil {
			return err
		}
		resultType = t
	default:
		return &UnsupportedOpError{Tag: ir.TagLeafCall, Context: e.fn}
	}

	id := e.b.AddFunctionCall(resultType, calleeID, argIDs...)
	if len(vars) == 1 {
		e.ids[vars[0]] = id
	}
	return nil
}

func (e *emitter) varType(v *ir.Node) *ir.Node {
	return v.Payload.(ir.Variable).Type
}

// valueType derives the IR type of a value node that is not
// necessarily a Variable (a Return can carry a literal directly).
func (e *emitter) valueType(v *ir.Node) (*ir.Node, error) {
	switch p := v.Payload.(type) {
	case ir.Variable:
		return p.Type, nil
	case ir.IntLiteral:
		return e.arena.IntType(p.Width, true), nil
	case ir.TrueLit:
		return e.arena.BoolType(), nil
	default:
		return nil, &UnsupportedOpError{Tag: v.Tag, Context: e.fn}
	}
}

func (e *emitter) emitValue(node *ir.Node) (uint32, error) {
	if id, ok := e.ids[node]; ok {
		return id, nil
	}
	switch p := node.Payload.(type) {
	case ir.Variable:
		return 0, &ir.InvariantViolationError{Message: "spirv: variable used before its binding was emitted: " + p.Name}
	case ir.IntLiteral:
		typeID, err := e.emitType(e.arena.IntType(p.Width, true))
		if err != nil {
			return 0, err
		}
		var id uint32
		if p.Width > 32 {
			id = e.b.AddConstant(typeID, uint32(p.Bits), uint32(p.Bits>>32))
		} else {
			id = e.b.AddConstant(typeID, uint32(p.Bits))
		}
		e.ids[node] = id
		return id, nil
	case ir.TrueLit:
		typeID, err := e.emitType(e.arena.BoolType())
		if err != nil {
			return 0, err
		}
		id := e.b.AddConstantTrue(typeID)
		e.ids[node] = id
		return id, nil
	default:
		return 0, &UnsupportedOpError{Tag: node.Tag, Context: e.fn}
	}
}

func (e *emitter) emitType(node *ir.Node) (uint32, error) {
	if id, ok := e.ids[node]; ok {
		return id, nil
	}
	var id uint32
	switch p := node.Payload.(type) {
	case ir.Int:
		tid, err := e.emitIntType(p.Width, p.Signed)
		if err != nil {
			return 0, err
		}
		id = tid
	case ir.PtrType:
		pointeeID, err := e.emitType(p.Pointee)
		if err != nil {
			return 0, err
		}
		sc, err := addressSpaceToStorageClass(p.AddressSpace, false)
		if err != nil {
			return 0, err
		}
		id = e.b.AddTypePointer(sc, pointeeID)
	case ir.RecordType:
		memberIDs := make([]uint32, len(p.Members))
		for i, m := range p.Members {
			mid, err := e.emitType(m)
			if err != nil {
				return 0, err
			}
			memberIDs[i] = mid
		}
		id = e.b.AddTypeStruct(memberIDs...)
		if p.Special == ir.DecorateBlock {
			e.b.AddDecorate(id, DecorationBlock)
		}
		for i, n := range p.Names {
			if n != "" {
				e.b.AddMemberName(id, uint32(i), n)
			}
		}
	case ir.FnType:
		paramIDs := make([]uint32, len(p.Params))
		for i, pt := range p.Params {
			pid, err := e.emitType(pt)
			if err != nil {
				return 0, err
			}
			paramIDs[i] = pid
		}
		retID, err := e.emitReturnType(p.Returns)
		if err != nil {
			return 0, err
		}
		id = e.b.AddTypeFunction(retID, paramIDs...)
	case ir.QualifiedType:
		// SPIR-V has no qualifier concept; pass through to the inner
		// type and cache the qualified node under the same id.
		inner, err := e.emitType(p.Inner)
		if err != nil {
			return 0, err
		}
		id = inner
	default:
		// MaskType never reaches here on output produced by the
		// canonical pipeline: mask lowering eliminates it.
		return 0, &UnsupportedOpError{Tag: node.Tag, Context: e.fn}
	}
	e.ids[node] = id
	return id, nil
}

// emitBallotResultType emits the result type of a ballot primop.
// masklower's SpvKHRBallot representation stands in for SPIR-V's
// actual i32x4 ballot result with a four-member i32 record (the node
// catalogue has no vector type); here, where that record is known to
// back a ballot result, it is emitted as a real OpTypeVector instead
// of a struct. The I64 representation needs no such translation.
func (e *emitter) emitBallotResultType(node *ir.Node) (uint32, error) {
	if id, ok := e.ids[node]; ok {
		return id, nil
	}
	rt, ok := node.Payload.(ir.RecordType)
	if !ok || len(rt.Members) != 4 {
		return e.emitType(node)
	}
	memberID, err := e.emitType(rt.Members[0])
	if err != nil {
		return 0, err
	}
	id := e.b.AddTypeVector(memberID, 4)
	e.ids[node] = id
	return id, nil
}

// emitIntType maps an Int payload to a SPIR-V type. Width 1 becomes
// OpTypeBool: SPIR-V has no one-bit integer type, and the width-1 Ints
// in this core (ir.BoolType: mask_is_thread_active's comparison result
// and the type of a true literal) are booleans that SPIR-V types as
// OpTypeBool. Capability Int64 is declared the first time a 64-bit
// integer type is requested.
func (e *emitter) emitIntType(width int, signed bool) (uint32, error) {
	if width == 1 {
		return e.b.AddTypeBool(), nil
	}
	if width == 64 && !e.capInt64 {
		e.b.AddCapability(CapabilityInt64)
		e.capInt64 = true
	}
	return e.b.AddTypeInt(uint32(width), signed), nil
}

func (e *emitter) scopeSubgroupConstant() (uint32, error) {
	if e.scopeSubgroupID != 0 {
		return e.scopeSubgroupID, nil
	}
	if !e.capGroupBallot {
		e.b.AddCapability(CapabilityGroupNonUniformBallot)
		e.capGroupBallot = true
	}
	typeID, err := e.emitType(e.arena.IntType(32, false))
	if err != nil {
		return 0, err
	}
	const scopeSubgroup = 3
	e.scopeSubgroupID = e.b.AddConstant(typeID, scopeSubgroup)
	return e.scopeSubgroupID, nil
}

// addressSpaceToStorageClass implements the address-space lowering
// table, extended with External and PushConstant (the entry-point-args
// remap's target) beyond the four spaces the source language table
// names.
func addressSpaceToStorageClass(space ir.AddressSpace, forVariableDecl bool) (StorageClass, error) {
	switch space {
	case ir.AddressGeneric:
		return StorageClassGeneric, nil
	case ir.AddressPrivate:
		return StorageClassPrivate, nil
	case ir.AddressShared:
		return StorageClassCrossWorkgroup, nil
	case ir.AddressGlobal:
		if forVariableDecl {
			return StorageClassStorageBuffer, nil
		}
		return StorageClassPhysicalStorageBuffer, nil
	case ir.AddressExternal:
		return StorageClassUniformConstant, nil
	case ir.AddressPushConstant:
		return StorageClassPushConstant, nil
	default:
		return 0, &ir.InvariantViolationError{Message: "spirv: unknown address space"}
	}
}
