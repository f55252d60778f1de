package refine

import "github.com/gridmesh/halo/internal/geometry"

// coarseOf maps a fine index (possibly in the ghost region) back to the
// coarse scratch index covering it, with floor semantics for negative
// ghost offsets.
func coarseOf(l geometry.Layout, axis, i int) int {
	if !l.Active(axis) {
		return 0
	}
	d := i - l.Ghost
	if d < 0 {
		d -= 1
	}
	return l.CoarseGhost + d/2
}

// Prolongate injects coarse scratch data into the fine array over fbox, a
// box in native index space. Each fine point takes the value of the coarse
// cell covering it; the exchange core treats higher-order prolongation as an
// external replacement for this operator.
func Prolongate(coarse, fine geometry.Array3, l geometry.Layout, comp int, fbox geometry.Box) {
	for k := fbox.S3; k <= fbox.E3; k++ {
		kc := coarseOf(l, 3, k)
		for j := fbox.S2; j <= fbox.E2; j++ {
			jc := coarseOf(l, 2, j)
			for i := fbox.S1; i <= fbox.E1; i++ {
				fine.Set(k, j, i, coarse.At(kc, jc, coarseOf(l, 1, i)))
			}
		}
	}
}
