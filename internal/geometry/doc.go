// Package geometry computes the index-space side of ghost-zone exchange.
//
// Every boundary transfer between two blocks is described by a rectangular
// index box on each endpoint. This package derives those boxes from the
// neighbor relation (offset vector, connectivity, refinement-level delta,
// sub-quadrant flags) and the block layout, for cell-centered and
// face-staggered fields, and performs the raw copy between field arrays and
// flat transfer buffers.
//
// Conventions:
//   - Axis 1 is the fastest-varying index; arrays are indexed (k, j, i).
//   - Interior cells on an active axis span [Ghost, Ghost+NX-1]; degenerate
//     axes (extent 1) carry no ghost cells.
//   - Same-level transfers use the interior ghost width; cross-level
//     transfers use the coarse ghost width on both endpoints so that pack
//     and unpack counts always agree.
package geometry
