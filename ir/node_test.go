package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// nodeIdentity compares *Node by pointer: interned nodes carry their
// own equality, so a structural cmp.Diff over types containing them
// should stop at identity rather than descending into unexported
// fields like Node.id.
var nodeIdentity = cmp.Comparer(func(a, b *Node) bool { return a == b })

func TestStripQualifier_Wrapped(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()
	q := a.QualifiedTypeNode(i32, Varying)

	inner, div := StripQualifier(q)
	if inner != i32 {
		t.Errorf("StripQualifier returned wrong inner node")
	}
	if div != Varying {
		t.Errorf("StripQualifier div = %v, want Varying", div)
	}
}

func TestStripQualifier_Unwrapped(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()

	inner, div := StripQualifier(i32)
	if inner != i32 {
		t.Errorf("StripQualifier changed an unqualified type")
	}
	if div != Uniform {
		t.Errorf("StripQualifier div = %v, want Uniform for an unqualified type", div)
	}
}

func TestStripQualifier_Nil(t *testing.T) {
	inner, div := StripQualifier(nil)
	if inner != nil || div != Uniform {
		t.Errorf("StripQualifier(nil) = (%v, %v), want (nil, Uniform)", inner, div)
	}
}

func TestDeriveFnType(t *testing.T) {
	a := NewArena(Config{})
	i32 := a.Int32Type()
	i64 := a.Int64Type()

	p0 := a.NewVariable("a", i32)
	p1 := a.NewVariable("b", i64)
	fn := a.DeclareFunction("f", []*Node{p0, p1}, []*Node{i32})

	ft := DeriveFnType(fn)
	want := FnType{Params: []*Node{i32, i64}, Returns: []*Node{i32}}
	if diff := cmp.Diff(want, ft, nodeIdentity); diff != "" {
		t.Errorf("DeriveFnType result mismatch (-want +got):\n%s", diff)
	}
}

func TestTagPredicates(t *testing.T) {
	cases := []struct {
		tag                                  Tag
		isType, isValue, isInstr, isTerm, isDecl bool
	}{
		{TagInt, true, false, false, false, false},
		{TagIntLiteral, false, true, false, false, false},
		{TagVariable, false, true, false, false, false},
		{TagPrimOp, false, false, true, false, false},
		{TagLet, false, false, false, true, false},
		{TagReturn, false, false, false, true, false},
		{TagUnreachable, false, false, false, true, false},
		{TagFunction, false, false, false, false, true},
		{TagGlobalVariable, false, false, false, false, true},
		{TagIf, false, false, true, true, false},
	}
	for _, c := range cases {
		if got := IsType(c.tag); got != c.isType {
			t.Errorf("IsType(%v) = %v, want %v", c.tag, got, c.isType)
		}
		if got := IsValue(c.tag); got != c.isValue {
			t.Errorf("IsValue(%v) = %v, want %v", c.tag, got, c.isValue)
		}
		if got := IsInstruction(c.tag); got != c.isInstr {
			t.Errorf("IsInstruction(%v) = %v, want %v", c.tag, got, c.isInstr)
		}
		if got := IsTerminator(c.tag); got != c.isTerm {
			t.Errorf("IsTerminator(%v) = %v, want %v", c.tag, got, c.isTerm)
		}
		if got := IsDeclaration(c.tag); got != c.isDecl {
			t.Errorf("IsDeclaration(%v) = %v, want %v", c.tag, got, c.isDecl)
		}
	}
}

func TestOpString_CoversSynthesizedOps(t *testing.T) {
	if OpUnit.String() != "unit" {
		t.Errorf("OpUnit.String() = %q, want %q", OpUnit.String(), "unit")
	}
	if OpQuote.String() != "quote" {
		t.Errorf("OpQuote.String() = %q, want %q", OpQuote.String(), "quote")
	}
	if OpSubgroupBallot.String() != "subgroup_ballot" {
		t.Errorf("OpSubgroupBallot.String() = %q, want %q", OpSubgroupBallot.String(), "subgroup_ballot")
	}
}

func TestAddressSpaceString(t *testing.T) {
	if AddressPushConstant.String() != "PushConstant" {
		t.Errorf("AddressPushConstant.String() = %q, want %q", AddressPushConstant.String(), "PushConstant")
	}
	if AddressExternal.String() != "External" {
		t.Errorf("AddressExternal.String() = %q, want %q", AddressExternal.String(), "External")
	}
}
