package geometry

// Orientation distinguishes the two field storage layouts.
type Orientation uint8

const (
	// CellCentered fields have one component with no staggered axis.
	CellCentered Orientation = iota
	// FaceStaggered fields have three components, each with a +1 extent on
	// its own axis.
	FaceStaggered
)

// Components lists the component indices of an orientation. Cell-centered
// data uses component 0; face data uses 1..3, the staggered axis.
func (o Orientation) Components() []int {
	if o == FaceStaggered {
		return []int{1, 2, 3}
	}
	return []int{0}
}

func (o Orientation) String() string {
	if o == FaceStaggered {
		return "face"
	}
	return "cell"
}

// quadrantFlag picks the sub-quadrant selector governing the half-domain
// split on an axis with zero offset. The first nonzero offset axes consume
// Fi1; remaining splits use Fi2.
func quadrantFlag(axis int, rel Relation) int {
	switch axis {
	case 1:
		return rel.Fi1
	case 2:
		if rel.Off.X1 != 0 {
			return rel.Fi1
		}
		return rel.Fi2
	default:
		if rel.Off.X1 != 0 && rel.Off.X2 != 0 {
			return rel.Fi1
		}
		return rel.Fi2
	}
}

// CoarseSpace reports whether boxes for this relation address the coarse
// scratch space rather than the native field: packing toward a coarser
// neighbor restricts first, and data received from a coarser neighbor lands
// in the scratch space awaiting prolongation.
func CoarseSpace(delta int) bool { return delta == -1 }

// PackBox returns the source index box for one component of a boundary send.
// For Delta == -1 the box addresses the coarse scratch space (restriction
// runs before packing); otherwise it addresses the native field.
func PackBox(l Layout, rel Relation, comp int) Box {
	var b Box
	b.S1, b.E1 = l.packAxis(1, rel, comp)
	b.S2, b.E2 = l.packAxis(2, rel, comp)
	b.S3, b.E3 = l.packAxis(3, rel, comp)
	return b
}

// UnpackBox returns the destination index box for one component of a
// boundary receive. evenLoc carries the parity of the block's own grid
// location per axis and matters only when receiving from a coarser neighbor.
func UnpackBox(l Layout, rel Relation, comp int, evenLoc [3]bool) Box {
	var b Box
	b.S1, b.E1 = l.unpackAxis(1, rel, comp, evenLoc[0])
	b.S2, b.E2 = l.unpackAxis(2, rel, comp, evenLoc[1])
	b.S3, b.E3 = l.unpackAxis(3, rel, comp, evenLoc[2])
	return b
}

func (l Layout) packAxis(axis int, rel Relation, comp int) (int, int) {
	ox := rel.Off.component(axis)
	stag := axis == comp
	if !l.Active(axis) {
		return 0, 0
	}
	switch rel.Delta {
	case 0:
		return l.samePackAxis(axis, ox, stag, rel.Conn)
	case -1:
		return l.coarsePackAxis(axis, ox, stag, rel.Conn)
	default:
		return l.finePackAxis(axis, ox, stag, quadrantFlag(axis, rel))
	}
}

func (l Layout) unpackAxis(axis int, rel Relation, comp int, even bool) (int, int) {
	ox := rel.Off.component(axis)
	stag := axis == comp
	if !l.Active(axis) {
		return 0, 0
	}
	switch rel.Delta {
	case 0:
		return l.sameUnpackAxis(axis, ox, stag, rel.Conn)
	case -1:
		return l.coarseUnpackAxis(axis, ox, stag, even)
	default:
		return l.fineUnpackAxis(axis, ox, stag, rel.Conn, quadrantFlag(axis, rel))
	}
}

// samePackAxis selects the one-ghost-deep interior slab facing the neighbor.
// Edge and corner relations widen the staggered axis by one layer on the
// offset side so adjacent directions never double-specify a shared face.
func (l Layout) samePackAxis(axis, ox int, stag bool, conn Connect) (int, int) {
	is, ie := l.interior(axis)
	g := l.Ghost
	if stag {
		s, e := is, ie+1
		switch {
		case ox > 0:
			s, e = ie-g+1, ie
		case ox < 0:
			s, e = is+1, is+g
		}
		return widen(s, e, ox, conn)
	}
	switch {
	case ox > 0:
		return ie - g + 1, ie
	case ox < 0:
		return is, is + g - 1
	}
	return is, ie
}

func (l Layout) sameUnpackAxis(axis, ox int, stag bool, conn Connect) (int, int) {
	is, ie := l.interior(axis)
	g := l.Ghost
	if stag {
		s, e := is, ie+1
		switch {
		case ox > 0:
			s, e = ie+2, ie+g+1
		case ox < 0:
			s, e = is-g, is-1
		}
		return widenRecv(s, e, ox, conn)
	}
	switch {
	case ox > 0:
		return ie + 1, ie + g
	case ox < 0:
		return is - g, is - 1
	}
	return is, ie
}

// coarsePackAxis applies the same-level rule at half resolution on the
// coarse scratch space with the coarse ghost width.
func (l Layout) coarsePackAxis(axis, ox int, stag bool, conn Connect) (int, int) {
	cs, ce := l.coarseInterior(axis)
	g := l.CoarseGhost
	if stag {
		s, e := cs, ce+1
		switch {
		case ox > 0:
			s, e = ce-g+1, ce
		case ox < 0:
			s, e = cs+1, cs+g
		}
		return widen(s, e, ox, conn)
	}
	switch {
	case ox > 0:
		return ce - g + 1, ce
	case ox < 0:
		return cs, cs + g - 1
	}
	return cs, ce
}

// coarseUnpackAxis lands coarse data in the scratch space. On zero-offset
// axes the box extends past the interior on the side facing the rest of the
// parent cell, chosen by the block's grid-location parity.
func (l Layout) coarseUnpackAxis(axis, ox int, stag, even bool) (int, int) {
	cs, ce := l.coarseInterior(axis)
	g := l.CoarseGhost
	if ox == 0 {
		s, e := cs, ce
		if stag {
			e++
		}
		if even {
			e += g
		} else {
			s -= g
		}
		return s, e
	}
	if stag {
		if ox > 0 {
			return ce + 1, ce + 1 + g
		}
		return cs - g, cs
	}
	if ox > 0 {
		return ce + 1, ce + g
	}
	return cs - g, cs - 1
}

// finePackAxis selects the half-domain facing one finer neighbor at native
// resolution, padded toward the interior so the receiver can prolongate.
func (l Layout) finePackAxis(axis, ox int, stag bool, flag int) (int, int) {
	is, ie := l.interior(axis)
	nx := l.nx(axis)
	g := l.CoarseGhost
	if ox == 0 {
		s, e := is, ie
		if stag {
			e++
		}
		if flag == 1 {
			s += nx/2 - g
		} else {
			e -= nx/2 - g
		}
		return s, e
	}
	if stag {
		if ox > 0 {
			return ie + 1 - g, ie + 1
		}
		return is, is + g
	}
	if ox > 0 {
		return ie - (g - 1), ie
	}
	return is, is + g - 1
}

// fineUnpackAxis writes restricted data from a finer neighbor directly into
// the matching half-domain of the native ghost region.
func (l Layout) fineUnpackAxis(axis, ox int, stag bool, conn Connect, flag int) (int, int) {
	is, ie := l.interior(axis)
	nx := l.nx(axis)
	g := l.CoarseGhost
	if ox == 0 {
		s, e := is, ie
		if stag {
			e++
		}
		if flag == 1 {
			s += nx / 2
		} else {
			e -= nx / 2
		}
		return s, e
	}
	if stag {
		s, e := ie+2, ie+g+1
		if ox < 0 {
			s, e = is-g, is-1
		}
		return widenRecv(s, e, ox, conn)
	}
	if ox > 0 {
		return ie + 1, ie + g
	}
	return is - g, is - 1
}

func widen(s, e, ox int, conn Connect) (int, int) {
	if conn != ConnectFace {
		if ox > 0 {
			e++
		} else if ox < 0 {
			s--
		}
	}
	return s, e
}

func widenRecv(s, e, ox int, conn Connect) (int, int) {
	if conn != ConnectFace {
		if ox > 0 {
			s--
		} else if ox < 0 {
			e++
		}
	}
	return s, e
}

// DegenerateStagger reports whether the component is staggered on a
// flattened axis, in which case the single computed plane must be mirrored
// into its partner plane after unpacking.
func DegenerateStagger(l Layout, comp int) (axis int, ok bool) {
	if comp >= 1 && comp <= 3 && !l.Active(comp) {
		return comp, true
	}
	return 0, false
}
