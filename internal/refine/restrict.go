package refine

import (
	"gonum.org/v1/gonum/floats"

	"github.com/gridmesh/halo/internal/geometry"
)

// fineStart maps a coarse interior index to its first fine counterpart.
func fineStart(l geometry.Layout, axis, ic int) int {
	if !l.Active(axis) {
		return 0
	}
	return l.Ghost + 2*(ic-l.CoarseGhost)
}

// Restrict averages fine data into the coarse scratch array over cbox, a box
// in coarse index space. Cell-centered components (comp == 0) average the
// 2^d fine children of each coarse cell; a staggered component's own axis
// maps face-to-face and only the transverse active axes are averaged.
func Restrict(fine, coarse geometry.Array3, l geometry.Layout, comp int, cbox geometry.Box) {
	var window [8]float64
	for kc := cbox.S3; kc <= cbox.E3; kc++ {
		for jc := cbox.S2; jc <= cbox.E2; jc++ {
			for ic := cbox.S1; ic <= cbox.E1; ic++ {
				n := 0
				k0, kn := span(l, 3, comp, kc)
				j0, jn := span(l, 2, comp, jc)
				i0, in := span(l, 1, comp, ic)
				for k := k0; k < k0+kn; k++ {
					for j := j0; j < j0+jn; j++ {
						for i := i0; i < i0+in; i++ {
							window[n] = fine.At(k, j, i)
							n++
						}
					}
				}
				coarse.Set(kc, jc, ic, floats.Sum(window[:n])/float64(n))
			}
		}
	}
}

// span returns the fine start index and the number of fine points averaged
// along one axis for a coarse point.
func span(l geometry.Layout, axis, comp, ic int) (start, count int) {
	if !l.Active(axis) {
		return 0, 1
	}
	start = fineStart(l, axis, ic)
	if axis == comp {
		return start, 1
	}
	return start, 2
}
