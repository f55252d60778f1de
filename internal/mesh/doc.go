// Package mesh holds the block-structured mesh view the exchange core
// consumes from the mesh manager: rectangular blocks with refinement levels
// and grid locations, directed neighbor relations, and per-block sparse
// variables whose storage may be allocated and freed independently.
//
// Blocks live in a flat arena indexed by integer id. Neighbor relations
// store target block ids, never references, so the block graph stays
// cycle-free and a relation can describe a block owned by another process.
package mesh
