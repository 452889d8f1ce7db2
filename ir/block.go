package ir

// BlockBuilder accumulates an ordered instruction list and a
// terminator into an immutable Block. It is single-use: Finish
// consumes the builder.
type BlockBuilder struct {
	arena        *Arena
	instructions []*Node
	finished     bool
}

// BeginBlock starts accumulating a new block against arena.
func BeginBlock(arena *Arena) *BlockBuilder {
	return &BlockBuilder{arena: arena}
}

// Append pushes instruction onto the block, preserving call order.
func (b *BlockBuilder) Append(instruction *Node) {
	if b.finished {
		panic("ir: Append called on a finished BlockBuilder")
	}
	b.instructions = append(b.instructions, instruction)
}

// GenPrimOp appends a PrimOp instruction wrapped in a Let that
// produces n fresh, typed result variables, and returns those
// variables so the caller can reference them downstream. resultTypes
// determines both n and the type of each returned variable.
func (b *BlockBuilder) GenPrimOp(op Op, operands []*Node, resultTypes []*Node) []*Node {
	if b.finished {
		panic("ir: GenPrimOp called on a finished BlockBuilder")
	}
	vars := make([]*Node, len(resultTypes))
	for i, t := range resultTypes {
		vars[i] = b.arena.NewVariable("", t)
	}
	instr := b.arena.PrimOpNode(op, operands)
	b.instructions = append(b.instructions, b.arena.LetNode(vars, instr, nil))
	return vars
}

// Finish interns the accumulated instructions with terminator into a
// Block and marks the builder unusable.
func (b *BlockBuilder) Finish(terminator *Node) *Node {
	if b.finished {
		panic("ir: Finish called twice on the same BlockBuilder")
	}
	b.finished = true
	return b.arena.BlockNode(b.instructions, terminator)
}
