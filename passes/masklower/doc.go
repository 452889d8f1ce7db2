// Package masklower implements the mask-lowering pass: it removes
// the abstract MaskType and the empty_mask, mask_is_thread_active and
// subgroup_active_mask primops, replacing them with explicit 64-bit
// integer bit math. subgroup_ballot is kept as the one hardware
// primitive (subgroup_active_mask becomes subgroup_ballot(true)), so
// later passes and the SPIR-V emitter see ordinary integer operations
// plus subgroup_ballot.
package masklower
