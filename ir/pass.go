package ir

// Pass is the external shape every lowering pass and auxiliary
// rewrite exposes: it consumes a config, a source and destination
// arena pairing, and the old module root, and produces the new root
// or an error. The driver (outside this package's scope) chains
// passes by pairing fresh arenas, feeding pass N's destination arena
// as pass N+1's source.
type Pass func(cfg Config, src, dst *Arena, root *Node) (*Node, error)
