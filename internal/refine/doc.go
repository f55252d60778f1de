// Package refine implements the index-correct restriction and prolongation
// operators used at refinement jumps: conservative averaging from fine to
// coarse, and piecewise injection from coarse to fine. The numerical order
// of these operators is deliberately simple; the exchange core only depends
// on their index geometry.
package refine
