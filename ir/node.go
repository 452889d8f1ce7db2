package ir

import "github.com/google/uuid"

// Tag selects the variant of a Node's Payload.
type Tag int

const (
	TagInvalid Tag = iota

	// Types.
	TagInt
	TagPtrType
	TagRecordType
	TagFnType
	TagQualifiedType
	TagMaskType

	// Values.
	TagIntLiteral
	TagTrueLit
	TagVariable

	// Instructions.
	TagPrimOp
	TagLeafCall
	TagIndirectCall
	TagMatch
	TagControl
	TagLoop
	TagIf

	// Structural.
	TagLet
	TagBlock
	TagFunction
	TagGlobalVariable
	TagRoot
	TagAnnotation

	// Terminators (control terminators above also qualify, see IsTerminator).
	TagReturn
	TagUnreachable
)

func (t Tag) String() string {
	switch t {
	case TagInt:
		return "Int"
	case TagPtrType:
		return "PtrType"
	case TagRecordType:
		return "RecordType"
	case TagFnType:
		return "FnType"
	case TagQualifiedType:
		return "QualifiedType"
	case TagMaskType:
		return "MaskType"
	case TagIntLiteral:
		return "IntLiteral"
	case TagTrueLit:
		return "TrueLit"
	case TagVariable:
		return "Variable"
	case TagPrimOp:
		return "PrimOp"
	case TagLeafCall:
		return "LeafCall"
	case TagIndirectCall:
		return "IndirectCall"
	case TagMatch:
		return "Match"
	case TagControl:
		return "Control"
	case TagLoop:
		return "Loop"
	case TagIf:
		return "If"
	case TagLet:
		return "Let"
	case TagBlock:
		return "Block"
	case TagFunction:
		return "Function"
	case TagGlobalVariable:
		return "GlobalVariable"
	case TagRoot:
		return "Root"
	case TagAnnotation:
		return "Annotation"
	case TagReturn:
		return "Return"
	case TagUnreachable:
		return "Unreachable"
	default:
		return "Invalid"
	}
}

// Node is a single IR value: a tag plus a tag-determined payload, and
// an optional cached list of the types this node yields when
// evaluated. Node pointers are the unit of identity throughout the
// package; two *Node values are "the same node" iff they are the same
// pointer.
type Node struct {
	Tag     Tag
	Payload Payload
	Yields  []*Node

	// id is assigned once by the owning Arena at creation time and
	// never reused. It gives every node a stable small integer to
	// hash by identity, instead of hashing a Go pointer value.
	id uint64
}

// Payload is implemented by every concrete per-tag payload type.
// It is a closed tagged union in the style of a sum type: each
// implementation contributes a zero-method marker so only payloads
// declared in this package can be attached to a Node.
type Payload interface {
	isPayload()
}

// --- Types -----------------------------------------------------------------

// AddressSpace classifies where a pointer or global variable lives.
type AddressSpace int

const (
	AddressGeneric AddressSpace = iota
	AddressPrivate
	AddressShared
	AddressGlobal
	AddressExternal
	AddressPushConstant
)

func (a AddressSpace) String() string {
	switch a {
	case AddressGeneric:
		return "Generic"
	case AddressPrivate:
		return "Private"
	case AddressShared:
		return "Shared"
	case AddressGlobal:
		return "Global"
	case AddressExternal:
		return "External"
	case AddressPushConstant:
		return "PushConstant"
	default:
		return "Invalid"
	}
}

// Divergence marks whether a qualified type is guaranteed to agree
// across all lanes of a subgroup (Uniform) or may vary (Varying).
type Divergence int

const (
	Uniform Divergence = iota
	Varying
)

// RecordSpecial distinguishes a plain struct-like record from one
// that must be annotated SPIR-V Block (interface-block structs used
// by push-constant / storage-buffer globals).
type RecordSpecial int

const (
	NotSpecial RecordSpecial = iota
	DecorateBlock
)

// Int is an integer type of a given bit width and signedness.
type Int struct {
	Width  int
	Signed bool
}

func (Int) isPayload() {}

// PtrType is a pointer to Pointee living in AddressSpace.
type PtrType struct {
	Pointee      *Node
	AddressSpace AddressSpace
}

func (PtrType) isPayload() {}

// RecordType is a product type: an ordered list of member types, with
// optional field names and a Special marker controlling SPIR-V
// decoration.
type RecordType struct {
	Members []*Node
	Names   []string
	Special RecordSpecial
}

func (RecordType) isPayload() {}

// FnType is the signature of a function: parameter types and return
// types.
type FnType struct {
	Params  []*Node
	Returns []*Node
}

func (FnType) isPayload() {}

// QualifiedType wraps Inner with a divergence qualifier. SPIR-V has no
// qualifier concept, so the emitter strips it before emission.
type QualifiedType struct {
	Inner      *Node
	Divergence Divergence
}

func (QualifiedType) isPayload() {}

// MaskType is the abstract per-lane active-mask type. It is eliminated
// entirely by the mask-lowering pass.
type MaskType struct{}

func (MaskType) isPayload() {}

// --- Values ------------------------------------------------------------

// IntLiteral is a constant integer value of the given width.
type IntLiteral struct {
	Width int
	Bits  uint64
}

func (IntLiteral) isPayload() {}

// TrueLit is the boolean literal "true".
type TrueLit struct{}

func (TrueLit) isPayload() {}

// Variable is a named, typed value with a unique identity: two
// Variable nodes are never structurally equal unless they share the
// same UniqueID, so interning never accidentally merges distinct
// variables that happen to share a name and type. A rewriter carrying
// a Variable into another arena (RecreateVariable) gives the new node
// a fresh UniqueID.
type Variable struct {
	Name     string
	Type     *Node
	UniqueID uuid.UUID
}

func (Variable) isPayload() {}

// --- Instructions --------------------------------------------------------

// Op names a primitive operation carried by PrimOp.
type Op int

const (
	OpInvalid Op = iota
	OpAdd
	OpAnd
	OpOr
	OpLshift
	OpRshiftLogical
	OpEq
	OpExtract
	OpReinterpret
	OpPushStack
	OpPopStack
	OpEmptyMask
	OpSubgroupBallot
	OpSubgroupActiveMask
	OpMaskIsThreadActive
	// OpUnit and OpQuote are not part of the source operation
	// vocabulary; the stack-optimization pass synthesizes them to
	// replace an elided push (OpUnit, produces nothing) and an
	// elided pop (OpQuote, re-exposes an already-known value as an
	// instruction result) without inventing a new node kind.
	OpUnit
	OpQuote
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpLshift:
		return "lshift"
	case OpRshiftLogical:
		return "rshift_logical"
	case OpEq:
		return "eq"
	case OpExtract:
		return "extract"
	case OpReinterpret:
		return "reinterpret"
	case OpPushStack:
		return "push_stack"
	case OpPopStack:
		return "pop_stack"
	case OpEmptyMask:
		return "empty_mask"
	case OpSubgroupBallot:
		return "subgroup_ballot"
	case OpSubgroupActiveMask:
		return "subgroup_active_mask"
	case OpMaskIsThreadActive:
		return "mask_is_thread_active"
	case OpUnit:
		return "unit"
	case OpQuote:
		return "quote"
	default:
		return "invalid"
	}
}

// PrimOp applies Op to Operands, producing zero or more result
// values.
type PrimOp struct {
	Op       Op
	Operands []*Node
}

func (PrimOp) isPayload() {}

// LeafCall is a direct call to a known Function declaration.
type LeafCall struct {
	Callee *Node
	Args   []*Node
}

func (LeafCall) isPayload() {}

// IndirectCall is a call through a function-typed value.
type IndirectCall struct {
	Callee *Node
	Args   []*Node
}

func (IndirectCall) isPayload() {}

// MatchCase is one arm of a Match instruction.
type MatchCase struct {
	Value uint64
	Body  *Node
}

// Match dispatches on Inspect's value to one of Cases, or Default.
type Match struct {
	Inspect *Node
	Cases   []MatchCase
	Default *Node
}

func (Match) isPayload() {}

// Control is a structured control-flow region whose Body is a
// Function-shaped sub-block (used for control constructs that need
// their own join point).
type Control struct {
	Body *Node
}

func (Control) isPayload() {}

// Loop repeats Body until a Break is reached inside it.
type Loop struct {
	Body *Node
}

func (Loop) isPayload() {}

// If branches on Condition into Then or Else.
type If struct {
	Condition *Node
	Then      *Node
	Else      *Node
}

func (If) isPayload() {}

// --- Structural ----------------------------------------------------------

// Let binds the results of Instruction to Variables and continues
// execution into Tail. Per the source language's control-flow
// convention, a Let chain is itself the terminator form of a block
// (see IsTerminator).
type Let struct {
	Variables   []*Node
	Instruction *Node
	Tail        *Node
}

func (Let) isPayload() {}

// Block is an ordered instruction list ending in a Terminator.
type Block struct {
	Instructions []*Node
	Terminator   *Node
}

func (Block) isPayload() {}

// Function is a declaration. Body is nil for a header that has not
// yet been completed by DefineFunctionBody.
type Function struct {
	Name        string
	Params      []*Node
	ReturnTypes []*Node
	Body        *Node
}

func (*Function) isPayload() {}

// GlobalVariable is a module-scope variable declaration. Type is
// always a Uniform-qualified pointer (QualifiedType wrapping a
// PtrType): a global with no definition carries no storage of its
// own, only a typed reference into the address space it lives in. See
// GlobalVariablePointer.
type GlobalVariable struct {
	Annotations []*Node
	Type        *Node
	Name        string
}

func (GlobalVariable) isPayload() {}

// GlobalVariablePointer unwraps gv.Type and returns the PtrType it
// must be: qualifier Uniform, inner type a pointer. ok is false if
// either assertion fails, matching the "global with no definition"
// emission protocol's own asserts.
func GlobalVariablePointer(gv GlobalVariable) (ptr PtrType, ok bool) {
	inner, div := StripQualifier(gv.Type)
	if div != Uniform || inner == nil {
		return PtrType{}, false
	}
	p, isPtr := inner.Payload.(PtrType)
	return p, isPtr
}

// Annotation is a bare named marker attached to a declaration's
// Annotations list, e.g. "EntryPointArgs".
type Annotation struct {
	Name string
}

func (Annotation) isPayload() {}

// Root is the module: an ordered list of top-level declarations.
// Declarations is filled in once after construction, mirroring the
// two-phase protocol used for Function bodies.
type Root struct {
	Declarations []*Node
}

func (*Root) isPayload() {}

// --- Terminators -----------------------------------------------------------

// Return exits the enclosing Function with zero or more Values.
type Return struct {
	Values []*Node
}

func (Return) isPayload() {}

// Unreachable marks a program point that must never execute.
type Unreachable struct{}

func (Unreachable) isPayload() {}

// --- Predicates ------------------------------------------------------------

// IsType reports whether tag identifies a type variant.
func IsType(tag Tag) bool {
	switch tag {
	case TagInt, TagPtrType, TagRecordType, TagFnType, TagQualifiedType, TagMaskType:
		return true
	default:
		return false
	}
}

// IsValue reports whether tag identifies a value variant.
func IsValue(tag Tag) bool {
	switch tag {
	case TagIntLiteral, TagTrueLit, TagVariable:
		return true
	default:
		return false
	}
}

// IsInstruction reports whether tag identifies an instruction
// variant.
func IsInstruction(tag Tag) bool {
	switch tag {
	case TagPrimOp, TagLeafCall, TagIndirectCall, TagMatch, TagControl, TagLoop, TagIf:
		return true
	default:
		return false
	}
}

// IsTerminator reports whether tag identifies a terminator. Let is
// included: a Let chain is accepted as a Block's terminator. Lets in a
// Block's instruction list are plain statements with a nil Tail.
func IsTerminator(tag Tag) bool {
	switch tag {
	case TagLet, TagReturn, TagUnreachable, TagMatch, TagControl, TagLoop, TagIf:
		return true
	default:
		return false
	}
}

// IsDeclaration reports whether tag identifies a module-level
// declaration.
func IsDeclaration(tag Tag) bool {
	switch tag {
	case TagFunction, TagGlobalVariable:
		return true
	default:
		return false
	}
}

// StripQualifier unwraps a QualifiedType, returning its inner type and
// divergence. If typ is not a QualifiedType, it is returned unchanged
// with divergence Uniform.
func StripQualifier(typ *Node) (inner *Node, divergence Divergence) {
	if typ == nil {
		return nil, Uniform
	}
	if q, ok := typ.Payload.(QualifiedType); ok && typ.Tag == TagQualifiedType {
		return q.Inner, q.Divergence
	}
	return typ, Uniform
}

// DeriveFnType builds the FnType payload matching fn's parameters and
// return types. fn must be a Function node.
func DeriveFnType(fn *Node) FnType {
	f, ok := fn.Payload.(*Function)
	if !ok {
		panic("ir: DeriveFnType called on non-Function node")
	}
	paramTypes := make([]*Node, len(f.Params))
	for i, p := range f.Params {
		v, ok := p.Payload.(Variable)
		if !ok {
			panic("ir: Function parameter is not a Variable node")
		}
		paramTypes[i] = v.Type
	}
	return FnType{Params: paramTypes, Returns: f.ReturnTypes}
}
