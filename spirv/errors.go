package spirv

import (
	"fmt"

	"github.com/gogpu/shadyir/ir"
)

// UnsupportedOpError reports that the emitter met a node it does not
// yet know how to translate: an instruction op outside the table in
// emitInstruction/emitPrimOp, or a payload tag outside the table in
// emitType.
// Context, when non-empty, names the enclosing function.
type UnsupportedOpError struct {
	Op      ir.Op
	Tag     ir.Tag
	Context string
}

func (e *UnsupportedOpError) Error() string {
	what := e.Tag.String()
	if e.Op != ir.OpInvalid {
		what = e.Op.String()
	}
	if e.Context == "" {
		return fmt.Sprintf("spirv: unsupported op: %s", what)
	}
	return fmt.Sprintf("spirv: unsupported op in %s: %s", e.Context, what)
}
