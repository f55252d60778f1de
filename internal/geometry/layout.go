package geometry

import (
	"errors"
	"fmt"
)

// ErrBadExtent reports a computed transfer box with a non-positive extent.
// It always indicates a configuration error, never a runtime condition.
var ErrBadExtent = errors.New("non-positive transfer extent")

// Layout describes the uniform interior extents and ghost widths shared by
// every block in a mesh.
type Layout struct {
	NX1, NX2, NX3 int // interior cells per axis; 1 flattens the axis
	Ghost         int // interior ghost width G
	CoarseGhost   int // cross-level ghost width Gc, Gc <= G
}

// Validate checks that the layout can host at least one ghost exchange.
func (l Layout) Validate() error {
	if l.NX1 < 1 || l.NX2 < 1 || l.NX3 < 1 {
		return fmt.Errorf("%w: interior extents (%d,%d,%d)", ErrBadExtent, l.NX1, l.NX2, l.NX3)
	}
	if l.Ghost < 1 {
		return fmt.Errorf("%w: ghost width %d", ErrBadExtent, l.Ghost)
	}
	if l.CoarseGhost < 1 || l.CoarseGhost > l.Ghost {
		return fmt.Errorf("%w: coarse ghost width %d (ghost %d)", ErrBadExtent, l.CoarseGhost, l.Ghost)
	}
	for ax := 1; ax <= 3; ax++ {
		if n := l.nx(ax); n > 1 && n/2 < l.CoarseGhost {
			return fmt.Errorf("%w: axis %d extent %d too small for coarse ghost %d",
				ErrBadExtent, ax, n, l.CoarseGhost)
		}
	}
	return nil
}

// Dim returns the number of active (extent > 1) axes.
func (l Layout) Dim() int {
	d := 1
	if l.NX2 > 1 {
		d = 2
	}
	if l.NX3 > 1 {
		d = 3
	}
	return d
}

func (l Layout) nx(axis int) int {
	switch axis {
	case 1:
		return l.NX1
	case 2:
		return l.NX2
	default:
		return l.NX3
	}
}

// Active reports whether an axis participates in the exchange geometry.
func (l Layout) Active(axis int) bool { return l.nx(axis) > 1 }

// Interior returns the interior index range on an axis at native resolution.
func (l Layout) Interior(axis int) (s, e int) { return l.interior(axis) }

// CoarseInterior returns the interior index range on an axis of the coarse
// scratch space.
func (l Layout) CoarseInterior(axis int) (s, e int) { return l.coarseInterior(axis) }

// NX returns the interior extent on an axis.
func (l Layout) NX(axis int) int { return l.nx(axis) }

// interior returns the interior index range on an axis at native resolution.
func (l Layout) interior(axis int) (s, e int) {
	if !l.Active(axis) {
		return 0, 0
	}
	return l.Ghost, l.Ghost + l.nx(axis) - 1
}

// cnx returns the interior extent on an axis at coarse resolution.
func (l Layout) cnx(axis int) int {
	if !l.Active(axis) {
		return 1
	}
	return l.nx(axis) / 2
}

// coarseInterior returns the interior index range on an axis of the coarse
// scratch index space.
func (l Layout) coarseInterior(axis int) (s, e int) {
	if !l.Active(axis) {
		return 0, 0
	}
	return l.CoarseGhost, l.CoarseGhost + l.cnx(axis) - 1
}

// FieldDims returns the allocated per-axis extents for one field component at
// native resolution, ghosts included. comp is 0 for cell-centered data and
// the staggered axis (1..3) for face data. A staggered degenerate axis keeps
// two planes so the mirror-replication rule has somewhere to write.
func (l Layout) FieldDims(comp int) (n1, n2, n3 int) {
	dim := func(axis int) int {
		if !l.Active(axis) {
			if axis == comp {
				return 2
			}
			return 1
		}
		n := l.nx(axis) + 2*l.Ghost
		if axis == comp {
			n++
		}
		return n
	}
	return dim(1), dim(2), dim(3)
}

// CoarseFieldDims returns the allocated per-axis extents of the coarse
// scratch space for one field component.
func (l Layout) CoarseFieldDims(comp int) (n1, n2, n3 int) {
	dim := func(axis int) int {
		if !l.Active(axis) {
			if axis == comp {
				return 2
			}
			return 1
		}
		n := l.cnx(axis) + 2*l.CoarseGhost
		if axis == comp {
			n++
		}
		return n
	}
	return dim(1), dim(2), dim(3)
}
