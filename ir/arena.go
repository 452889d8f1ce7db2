package ir

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SubgroupMaskRepresentation selects how the mask-lowering pass
// reconstitutes a subgroup ballot result into an i64 mask.
type SubgroupMaskRepresentation int

const (
	// SubgroupMaskSpvKHRBallot models the ballot result as a 4xi32
	// vector (the shape SPIR-V's GroupNonUniformBallot produces) and
	// needs lane packing to recover a flat i64 mask.
	SubgroupMaskSpvKHRBallot SubgroupMaskRepresentation = iota
	// SubgroupMaskI64 models the ballot result as a native i64 with
	// no packing required.
	SubgroupMaskI64
)

// Config carries the options recognized by the arena and the passes
// that consult it.
type Config struct {
	SubgroupMaskRepresentation SubgroupMaskRepresentation
	SubgroupSize               int
}

// configFile is the on-disk YAML shape for Config, kept separate from
// Config itself so the zero value of Config never silently depends on
// YAML tag names.
type configFile struct {
	SubgroupMaskRepresentation string `yaml:"subgroup_mask_representation"`
	SubgroupSize               int    `yaml:"subgroup_size"`
}

// LoadConfig reads a Config from YAML. This is a convenience for
// callers that keep compiler options in a file; the arena and passes
// themselves only ever consume a Config value, never a reader.
func LoadConfig(r io.Reader) (Config, error) {
	var raw configFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return Config{}, err
	}
	cfg := Config{SubgroupSize: raw.SubgroupSize}
	switch raw.SubgroupMaskRepresentation {
	case "", "SpvKHRBallot":
		cfg.SubgroupMaskRepresentation = SubgroupMaskSpvKHRBallot
	case "I64":
		cfg.SubgroupMaskRepresentation = SubgroupMaskI64
	default:
		return Config{}, &InvariantViolationError{Message: "unrecognized subgroup_mask_representation: " + raw.SubgroupMaskRepresentation}
	}
	if cfg.SubgroupSize == 0 {
		cfg.SubgroupSize = DefaultSubgroupSize
	}
	return cfg, nil
}

// DefaultSubgroupSize is the width used when a caller leaves
// Config.SubgroupSize unset. 32 is the width shared by NVIDIA warps
// and the common AMD/Intel wavefront/subgroup configurations; nothing
// in this core acts on the value itself (spec.md documents
// subgroup_size as data for the higher layers that assemble a
// pipeline around the emitted module, not a correctness input to
// compilation), so the default only needs to be a plausible,
// GPU-shaped number, not a detected one.
const DefaultSubgroupSize = 32

// Arena is an append-only allocator owning a set of interned IR
// nodes. Destroying it (letting it become unreachable) releases every
// node allocated from it at once; there is no explicit per-node
// deallocation.
type Arena struct {
	Config Config

	buckets map[uint64][]*Node
	nextID  uint64
}

// NewArena creates an empty arena configured by cfg.
func NewArena(cfg Config) *Arena {
	if cfg.SubgroupSize == 0 {
		cfg.SubgroupSize = DefaultSubgroupSize
	}
	return &Arena{
		Config:  cfg,
		buckets: make(map[uint64][]*Node),
	}
}

// Destroy drops the arena's node table. Any *Node allocated from it
// must not be dereferenced afterwards.
func (a *Arena) Destroy() {
	a.buckets = nil
}

// Intern canonicalizes a (tag, payload) pair: two calls with
// structurally equal payloads on the same arena return the same
// *Node. Node-typed payload fields are compared (and hashed) by
// pointer identity, which is safe because they are themselves
// interned nodes.
func (a *Arena) Intern(tag Tag, payload Payload) *Node {
	h := hashPayload(tag, payload)
	for _, candidate := range a.buckets[h] {
		if candidate.Tag == tag && payloadsEqual(candidate.Payload, payload) {
			return candidate
		}
	}
	n := &Node{Tag: tag, Payload: payload, id: a.nextID}
	a.nextID++
	a.buckets[h] = append(a.buckets[h], n)
	return n
}

// --- Structural hashing ------------------------------------------------

func hashPayload(tag Tag, p Payload) uint64 {
	d := xxhash.New()
	var scratch [8]byte
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		d.Write(scratch[:])
	}
	writeUint(uint64(tag))
	writeString := func(s string) {
		writeUint(uint64(len(s)))
		d.Write([]byte(s))
	}
	writeNode := func(n *Node) {
		if n == nil {
			writeUint(^uint64(0))
			return
		}
		writeUint(n.id)
	}
	writeNodes := func(ns []*Node) {
		writeUint(uint64(len(ns)))
		for _, n := range ns {
			writeNode(n)
		}
	}

	switch v := p.(type) {
	case Int:
		writeUint(uint64(v.Width))
		if v.Signed {
			writeUint(1)
		} else {
			writeUint(0)
		}
	case PtrType:
		writeNode(v.Pointee)
		writeUint(uint64(v.AddressSpace))
	case RecordType:
		writeNodes(v.Members)
		writeUint(uint64(len(v.Names)))
		for _, n := range v.Names {
			writeString(n)
		}
		writeUint(uint64(v.Special))
	case FnType:
		writeNodes(v.Params)
		writeNodes(v.Returns)
	case QualifiedType:
		writeNode(v.Inner)
		writeUint(uint64(v.Divergence))
	case MaskType:
	case IntLiteral:
		writeUint(uint64(v.Width))
		writeUint(v.Bits)
	case TrueLit:
	case Variable:
		writeString(v.Name)
		writeNode(v.Type)
		d.Write(v.UniqueID[:])
	case PrimOp:
		writeUint(uint64(v.Op))
		writeNodes(v.Operands)
	case LeafCall:
		writeNode(v.Callee)
		writeNodes(v.Args)
	case IndirectCall:
		writeNode(v.Callee)
		writeNodes(v.Args)
	case Match:
		writeNode(v.Inspect)
		writeUint(uint64(len(v.Cases)))
		for _, c := range v.Cases {
			writeUint(c.Value)
			writeNode(c.Body)
		}
		writeNode(v.Default)
	case Control:
		writeNode(v.Body)
	case Loop:
		writeNode(v.Body)
	case If:
		writeNode(v.Condition)
		writeNode(v.Then)
		writeNode(v.Else)
	case Let:
		writeNodes(v.Variables)
		writeNode(v.Instruction)
		writeNode(v.Tail)
	case Block:
		writeNodes(v.Instructions)
		writeNode(v.Terminator)
	case GlobalVariable:
		writeNodes(v.Annotations)
		writeNode(v.Type)
		writeString(v.Name)
	case Annotation:
		writeString(v.Name)
	case Return:
		writeNodes(v.Values)
	case Unreachable:
	case *Function:
		// The hash covers the signature only: Body is filled in
		// after the header is already interned and registered
		// with any in-flight rewriter, so it must not affect the
		// hash. Equality is by *Function pointer (payloadsEqual),
		// so every DeclareFunction call yields its own node.
		writeString(v.Name)
		writeNodes(v.Params)
		writeNodes(v.ReturnTypes)
	default:
		// *Root is never passed to Intern: NewModule allocates it
		// directly, since a module is never deduplicated against
		// another module.
		panic("ir: hashPayload: unhandled payload type")
	}
	return d.Sum64()
}

func payloadsEqual(a, b Payload) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case PtrType:
		bv, ok := b.(PtrType)
		return ok && av.Pointee == bv.Pointee && av.AddressSpace == bv.AddressSpace
	case RecordType:
		bv, ok := b.(RecordType)
		if !ok || av.Special != bv.Special || len(av.Members) != len(bv.Members) || len(av.Names) != len(bv.Names) {
			return false
		}
		for i := range av.Members {
			if av.Members[i] != bv.Members[i] {
				return false
			}
		}
		for i := range av.Names {
			if av.Names[i] != bv.Names[i] {
				return false
			}
		}
		return true
	case FnType:
		bv, ok := b.(FnType)
		if !ok || len(av.Params) != len(bv.Params) || len(av.Returns) != len(bv.Returns) {
			return false
		}
		for i := range av.Params {
			if av.Params[i] != bv.Params[i] {
				return false
			}
		}
		for i := range av.Returns {
			if av.Returns[i] != bv.Returns[i] {
				return false
			}
		}
		return true
	case QualifiedType:
		bv, ok := b.(QualifiedType)
		return ok && av.Inner == bv.Inner && av.Divergence == bv.Divergence
	case MaskType:
		_, ok := b.(MaskType)
		return ok
	case IntLiteral:
		bv, ok := b.(IntLiteral)
		return ok && av == bv
	case TrueLit:
		_, ok := b.(TrueLit)
		return ok
	case Variable:
		bv, ok := b.(Variable)
		return ok && av.Name == bv.Name && av.Type == bv.Type && av.UniqueID == bv.UniqueID
	case PrimOp:
		bv, ok := b.(PrimOp)
		if !ok || av.Op != bv.Op || len(av.Operands) != len(bv.Operands) {
			return false
		}
		for i := range av.Operands {
			if av.Operands[i] != bv.Operands[i] {
				return false
			}
		}
		return true
	case LeafCall:
		bv, ok := b.(LeafCall)
		return ok && av.Callee == bv.Callee && nodesEqual(av.Args, bv.Args)
	case IndirectCall:
		bv, ok := b.(IndirectCall)
		return ok && av.Callee == bv.Callee && nodesEqual(av.Args, bv.Args)
	case Match:
		bv, ok := b.(Match)
		if !ok || av.Inspect != bv.Inspect || av.Default != bv.Default || len(av.Cases) != len(bv.Cases) {
			return false
		}
		for i := range av.Cases {
			if av.Cases[i] != bv.Cases[i] {
				return false
			}
		}
		return true
	case Control:
		bv, ok := b.(Control)
		return ok && av.Body == bv.Body
	case Loop:
		bv, ok := b.(Loop)
		return ok && av.Body == bv.Body
	case If:
		bv, ok := b.(If)
		return ok && av.Condition == bv.Condition && av.Then == bv.Then && av.Else == bv.Else
	case Let:
		bv, ok := b.(Let)
		return ok && nodesEqual(av.Variables, bv.Variables) && av.Instruction == bv.Instruction && av.Tail == bv.Tail
	case Block:
		bv, ok := b.(Block)
		return ok && nodesEqual(av.Instructions, bv.Instructions) && av.Terminator == bv.Terminator
	case GlobalVariable:
		bv, ok := b.(GlobalVariable)
		return ok && av.Name == bv.Name && av.Type == bv.Type && nodesEqual(av.Annotations, bv.Annotations)
	case Annotation:
		bv, ok := b.(Annotation)
		return ok && av.Name == bv.Name
	case Return:
		bv, ok := b.(Return)
		return ok && nodesEqual(av.Values, bv.Values)
	case Unreachable:
		_, ok := b.(Unreachable)
		return ok
	case *Function:
		bv, ok := b.(*Function)
		return ok && av == bv
	default:
		return false
	}
}

func nodesEqual(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Constructors --------------------------------------------------------

func (a *Arena) IntType(width int, signed bool) *Node {
	return a.Intern(TagInt, Int{Width: width, Signed: signed})
}

// Int64Type is the common case used throughout mask lowering.
func (a *Arena) Int64Type() *Node { return a.IntType(64, true) }

// BoolType is the i1 integer type used to represent boolean results
// (e.g. the comparison produced by mask_is_thread_active). The node
// catalogue has no dedicated boolean type; a 1-bit unsigned integer
// is the standard encoding and is what the emitter recognizes to pick
// SPIR-V's OpTypeBool.
func (a *Arena) BoolType() *Node { return a.IntType(1, false) }

// Int32Type is the common case used by the emitter for ordinary
// integer values.
func (a *Arena) Int32Type() *Node { return a.IntType(32, true) }

func (a *Arena) PtrTypeNode(pointee *Node, space AddressSpace) *Node {
	return a.Intern(TagPtrType, PtrType{Pointee: pointee, AddressSpace: space})
}

func (a *Arena) RecordTypeNode(members []*Node, names []string, special RecordSpecial) *Node {
	return a.Intern(TagRecordType, RecordType{Members: members, Names: names, Special: special})
}

func (a *Arena) FnTypeNode(params, returns []*Node) *Node {
	return a.Intern(TagFnType, FnType{Params: params, Returns: returns})
}

func (a *Arena) QualifiedTypeNode(inner *Node, div Divergence) *Node {
	return a.Intern(TagQualifiedType, QualifiedType{Inner: inner, Divergence: div})
}

func (a *Arena) MaskTypeNode() *Node {
	return a.Intern(TagMaskType, MaskType{})
}

func (a *Arena) IntLiteralNode(width int, bits uint64) *Node {
	return a.Intern(TagIntLiteral, IntLiteral{Width: width, Bits: bits})
}

func (a *Arena) TrueLitNode() *Node {
	return a.Intern(TagTrueLit, TrueLit{})
}

// NewVariable allocates a fresh Variable. Variables are never
// deduplicated against one another (each carries a fresh UUID), so
// this always yields a new node even if one with the same name and
// type already exists.
func (a *Arena) NewVariable(name string, typ *Node) *Node {
	return a.Intern(TagVariable, Variable{Name: name, Type: typ, UniqueID: uuid.New()})
}

func (a *Arena) PrimOpNode(op Op, operands []*Node) *Node {
	return a.Intern(TagPrimOp, PrimOp{Op: op, Operands: operands})
}

func (a *Arena) LeafCallNode(callee *Node, args []*Node) *Node {
	return a.Intern(TagLeafCall, LeafCall{Callee: callee, Args: args})
}

func (a *Arena) IndirectCallNode(callee *Node, args []*Node) *Node {
	return a.Intern(TagIndirectCall, IndirectCall{Callee: callee, Args: args})
}

func (a *Arena) IfNode(cond, then, els *Node) *Node {
	return a.Intern(TagIf, If{Condition: cond, Then: then, Else: els})
}

func (a *Arena) LoopNode(body *Node) *Node {
	return a.Intern(TagLoop, Loop{Body: body})
}

func (a *Arena) ControlNode(body *Node) *Node {
	return a.Intern(TagControl, Control{Body: body})
}

func (a *Arena) MatchNode(inspect *Node, cases []MatchCase, def *Node) *Node {
	return a.Intern(TagMatch, Match{Inspect: inspect, Cases: cases, Default: def})
}

// LetNode binds vars to the result(s) of instruction and continues
// into tail.
func (a *Arena) LetNode(vars []*Node, instruction, tail *Node) *Node {
	return a.Intern(TagLet, Let{Variables: vars, Instruction: instruction, Tail: tail})
}

func (a *Arena) BlockNode(instructions []*Node, terminator *Node) *Node {
	return a.Intern(TagBlock, Block{Instructions: instructions, Terminator: terminator})
}

func (a *Arena) ReturnNode(values []*Node) *Node {
	return a.Intern(TagReturn, Return{Values: values})
}

func (a *Arena) UnreachableNode() *Node {
	return a.Intern(TagUnreachable, Unreachable{})
}

func (a *Arena) AnnotationNode(name string) *Node {
	return a.Intern(TagAnnotation, Annotation{Name: name})
}

// GlobalVar declares a complete global variable; unlike Function,
// GlobalVariable has no separate body phase. typ must already be the
// full Uniform-qualified pointer type the declaration carries (see
// GlobalVarPointerType); use it directly when recreating an existing
// global's header so the wrapping is not applied twice.
func (a *Arena) GlobalVar(annotations []*Node, typ *Node, name string) *Node {
	return a.Intern(TagGlobalVariable, GlobalVariable{Annotations: annotations, Type: typ, Name: name})
}

// GlobalVarPointerType builds the Uniform-qualified pointer type a
// freshly declared global variable's Type field holds, given the
// type it points to and the address space it lives in.
func (a *Arena) GlobalVarPointerType(pointee *Node, space AddressSpace) *Node {
	return a.QualifiedTypeNode(a.PtrTypeNode(pointee, space), Uniform)
}

// DeclareFunction interns a Function header with an empty body. The
// returned node's identity is stable from this call onward — it is
// safe to register it in a rewriter's memoization map and reference
// it from within the body that DefineFunctionBody later attaches,
// which is exactly what recursive functions require.
func (a *Arena) DeclareFunction(name string, params, returnTypes []*Node) *Node {
	return a.Intern(TagFunction, &Function{Name: name, Params: params, ReturnTypes: returnTypes})
}

// DefineFunctionBody fills in fn's body exactly once. Calling it
// twice on the same node is an invariant violation.
func (a *Arena) DefineFunctionBody(fn *Node, body *Node) error {
	f, ok := fn.Payload.(*Function)
	if !ok {
		return &InvariantViolationError{Tag: fn.Tag, Message: "DefineFunctionBody called on a non-Function node"}
	}
	if f.Body != nil {
		return &InvariantViolationError{Tag: TagFunction, Message: "function body already defined: " + f.Name}
	}
	f.Body = body
	return nil
}

// NewModule allocates a fresh module root with no declarations yet.
func (a *Arena) NewModule(name string) *Node {
	n := &Node{Tag: TagRoot, Payload: &Root{}, id: a.nextID}
	a.nextID++
	_ = name // the root's name is informational only; nodes do not carry module names.
	return n
}

// SetDeclarations fills in root's declaration list exactly once.
func (a *Arena) SetDeclarations(root *Node, decls []*Node) error {
	r, ok := root.Payload.(*Root)
	if !ok {
		return &InvariantViolationError{Tag: root.Tag, Message: "SetDeclarations called on a non-Root node"}
	}
	if r.Declarations != nil {
		return &InvariantViolationError{Tag: TagRoot, Message: "module declarations already set"}
	}
	r.Declarations = decls
	return nil
}
