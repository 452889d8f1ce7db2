// Package entrypoint implements the entry-point-argument remap pass:
// a global variable annotated "EntryPointArgs" is moved from the
// External address space to PushConstant, and its record type is
// marked for the SPIR-V Block decoration the emitter needs to treat
// it as a push-constant interface block.
package entrypoint
