package masklower

import (
	"github.com/gogpu/shadyir/ir"
	"github.com/gogpu/shadyir/rewrite"
)

// Lower removes MaskType and the empty_mask, mask_is_thread_active and
// subgroup_active_mask primops from root, rewriting src into a fresh
// graph in dst; subgroup_ballot stays in the output. It satisfies
// ir.Pass.
func Lower(cfg ir.Config, src, dst *ir.Arena, root *ir.Node) (*ir.Node, error) {
	r := rewrite.NewRewriter(src, dst, process)
	r.SrcModule = root
	return r.RunModule()
}

func process(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	if found, ok := r.SearchProcessed(old); ok {
		return found
	}
	switch {
	case old.Tag == ir.TagMaskType:
		return r.DstArena.Int64Type()
	case ir.IsDeclaration(old.Tag):
		header := r.RecreateDeclHeaderIdentity(old)
		r.RecreateDeclBodyIdentity(old, header)
		return header
	case old.Tag == ir.TagBlock:
		return processBlock(r, old)
	default:
		return r.RecreateNodeIdentity(old)
	}
}

// processBlock inspects each instruction of old, replacing the mask
// primops (empty_mask, mask_is_thread_active, subgroup_active_mask,
// subgroup_ballot) with their bitwise-integer equivalents; everything
// else is rewritten identity-style.
func processBlock(r *rewrite.Rewriter, old *ir.Node) *ir.Node {
	dst := r.DstArena
	blk := old.Payload.(ir.Block)
	bb := ir.BeginBlock(dst)

	for _, oldInstr := range blk.Instructions {
		oldActual := oldInstr
		var oldLetVars []*ir.Node
		if oldInstr.Tag == ir.TagLet {
			l := oldInstr.Payload.(ir.Let)
			oldActual = l.Instruction
			oldLetVars = l.Variables
		}

		if oldActual.Tag == ir.TagPrimOp {
			po := oldActual.Payload.(ir.PrimOp)
			switch po.Op {
			case ir.OpEmptyMask:
				zero := dst.IntLiteralNode(64, 0)
				if err := r.RegisterProcessed(oldLetVars[0], zero); err != nil {
					panic(err)
				}
				continue

			case ir.OpMaskIsThreadActive:
				mask := r.RewriteNode(po.Operands[0])
				index := r.RewriteNode(po.Operands[1])
				index = bb.GenPrimOp(ir.OpReinterpret, []*ir.Node{dst.Int64Type(), index}, []*ir.Node{dst.Int64Type()})[0]
				acc := bb.GenPrimOp(ir.OpRshiftLogical, []*ir.Node{mask, index}, []*ir.Node{dst.Int64Type()})[0]
				acc = bb.GenPrimOp(ir.OpAnd, []*ir.Node{acc, dst.IntLiteralNode(64, 1)}, []*ir.Node{dst.Int64Type()})[0]
				acc = bb.GenPrimOp(ir.OpEq, []*ir.Node{acc, dst.IntLiteralNode(64, 1)}, []*ir.Node{dst.BoolType()})[0]
				if err := r.RegisterProcessed(oldLetVars[0], acc); err != nil {
					panic(err)
				}
				continue

			case ir.OpSubgroupActiveMask, ir.OpSubgroupBallot:
				// subgroup_active_mask() is just ballot(true); fold
				// it into the same handling as subgroup_ballot.
				operands := po.Operands
				if po.Op == ir.OpSubgroupActiveMask {
					operands = []*ir.Node{r.SrcArena.TrueLitNode()}
				}
				if oldActual == oldInstr {
					continue // dead op: never bound by a Let
				}

				resultType := ballotResultType(dst, r.DstArena.Config)
				packed := bb.GenPrimOp(ir.OpSubgroupBallot, r.RewriteNodes(operands), []*ir.Node{resultType})[0]

				result := packed
				if r.DstArena.Config.SubgroupMaskRepresentation == ir.SubgroupMaskSpvKHRBallot {
					lo := bb.GenPrimOp(ir.OpExtract, []*ir.Node{packed, dst.IntLiteralNode(32, 0)}, []*ir.Node{dst.Int32Type()})[0]
					hi := bb.GenPrimOp(ir.OpExtract, []*ir.Node{packed, dst.IntLiteralNode(32, 1)}, []*ir.Node{dst.Int32Type()})[0]
					lo = bb.GenPrimOp(ir.OpReinterpret, []*ir.Node{dst.Int64Type(), lo}, []*ir.Node{dst.Int64Type()})[0]
					hi = bb.GenPrimOp(ir.OpReinterpret, []*ir.Node{dst.Int64Type(), hi}, []*ir.Node{dst.Int64Type()})[0]
					hi = bb.GenPrimOp(ir.OpLshift, []*ir.Node{hi, dst.IntLiteralNode(64, 32)}, []*ir.Node{dst.Int64Type()})[0]
					result = bb.GenPrimOp(ir.OpOr, []*ir.Node{lo, hi}, []*ir.Node{dst.Int64Type()})[0]
				}
				if err := r.RegisterProcessed(oldLetVars[0], result); err != nil {
					panic(err)
				}
				continue

			default:
				// fall through to the identity path below
			}
		}

		bb.Append(r.RewriteNode(oldInstr))
	}

	return bb.Finish(r.RewriteNode(blk.Terminator))
}

// ballotResultType is the type subgroup_ballot's packed result
// carries before any unpacking: a record of four i32 lanes under the
// SPIR-V-ballot representation (the node catalogue has no dedicated
// vector type, so a four-member record stands in for the i32x4 the
// SPIR-V GroupNonUniformBallot instruction actually produces), or a
// native i64 when the target represents masks that way directly.
func ballotResultType(dst *ir.Arena, cfg ir.Config) *ir.Node {
	if cfg.SubgroupMaskRepresentation == ir.SubgroupMaskI64 {
		return dst.Int64Type()
	}
	i32 := dst.Int32Type()
	return dst.RecordTypeNode([]*ir.Node{i32, i32, i32, i32}, nil, ir.NotSpecial)
}
