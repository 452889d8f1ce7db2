// Package spirv provides SPIR-V code generation from the lowered IR.
//
// SPIR-V is the standard intermediate language for GPU shaders,
// used by Vulkan, OpenCL, and other APIs.
//
// # Emitter
//
// Emit (and Writer.Emit, its options-carrying convenience form)
// translates a module produced by the ir/rewrite passes to a SPIR-V
// binary:
//
//	w := spirv.NewWriter(spirv.DefaultOptions())
//	binary, err := w.Emit(arena, root)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Emission expects root to already be the output of the canonical
// pass pipeline (mask lowering, stack optimization, entry-point-args
// remap): it declares capabilities Shader, Linkage, and
// PhysicalStorageBufferAddresses up front, reserves a SPIR-V id for
// every top-level declaration before emitting any of them (so a
// LeafCall to a function declared later in the module still resolves),
// then emits each global variable as OpVariable and each function as
// a full OpFunction body.
//
// Supported instruction forms mirror what the lowering passes actually
// produce: the integer/bitwise primops (add, and, or, eq, lshift,
// rshift_logical), reinterpret and extract (grounded on masklower's
// exact operand shapes), the elided-push/pop markers unit and quote
// synthesized by stack optimization, direct calls, and subgroup_ballot
// — lowered to a real OpGroupNonUniformBallot, since mask lowering
// deliberately leaves it in place as the hardware primitive rather
// than eliminating it. Anything outside that table, including a
// leaking push_stack/pop_stack pair stack optimization could not
// prove elidable, reports *UnsupportedOpError rather than silently
// miscompiling.
//
// # Binary Writer
//
// The package also provides a low-level binary writer for constructing
// SPIR-V modules programmatically using ModuleBuilder; the emitter is
// built entirely on top of this layer and has no access to its
// internals beyond it:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//
//	// Add types
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//
//	// Build binary
//	binary := builder.Build()
//
// # SPIR-V Structure
//
// SPIR-V modules consist of:
//   - Header (magic, version, generator, bound, schema)
//   - Capabilities (required features)
//   - Extensions (optional extensions)
//   - Extended instruction imports (GLSL.std.450, etc.)
//   - Memory model (addressing and memory model)
//   - Entry points (shader entry functions)
//   - Execution modes (shader configuration)
//   - Debug information (names, source info)
//   - Annotations (decorations)
//   - Types and constants
//   - Global variables
//   - Functions (code)
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
