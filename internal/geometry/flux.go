package geometry

// Flux correction exchanges only the flux components living on the shared
// geometric element: the two transverse components over a shared face, or
// the edge-parallel component along a shared edge. Corner relations carry no
// flux and never get a channel.

// FluxEligible reports whether a relation can carry flux correction.
func FluxEligible(rel Relation) bool {
	if rel.Conn != ConnectFace && rel.Conn != ConnectEdge {
		return false
	}
	return rel.Delta >= -1 && rel.Delta <= 1
}

// FluxBox pairs one flux component with its transfer box.
type FluxBox struct {
	Comp int
	Box  Box
}

// FluxBoxes returns the per-component transfer boxes for a flux-correction
// exchange. The sender side uses its own relation (Delta == -1 restricts to
// the coarse spacing first); the receiver side likewise (Delta == +1 selects
// the half-face matching the fine neighbor's quadrant). A corner relation
// returns nil.
func FluxBoxes(l Layout, rel Relation) []FluxBox {
	switch rel.Conn {
	case ConnectFace:
		return l.faceFluxBoxes(rel)
	case ConnectEdge:
		return l.edgeFluxBoxes(rel)
	default:
		return nil
	}
}

// FluxBufferSize returns the persistent flux channel capacity for a
// relation: the full-resolution payload, which bounds the restricted
// variants. Zero means the relation cannot carry flux correction.
func FluxBufferSize(l Layout, off Offset, conn Connect) int {
	rel := Relation{Off: off, Conn: conn}
	if !FluxEligible(rel) {
		return 0
	}
	n := 0
	for _, fb := range FluxBoxes(l, rel) {
		n += fb.Box.Count()
	}
	return n
}

// FluxPayloadSize returns the payload actually moved for a relation,
// reduced by the coarse/fine factor of 2 per refined axis when the exchange
// crosses a refinement jump.
func FluxPayloadSize(l Layout, rel Relation) int {
	if !FluxEligible(rel) {
		return 0
	}
	n := 0
	for _, fb := range FluxBoxes(l, rel) {
		n += fb.Box.Count()
	}
	return n
}

// offsetAxis returns the single nonzero offset axis of a face relation.
func offsetAxis(o Offset) int {
	if o.X1 != 0 {
		return 1
	}
	if o.X2 != 0 {
		return 2
	}
	return 3
}

// fluxPlane fixes the interface plane index on the offset axis. Both the
// interior-side pack and the flux overwrite on the receiver land on the
// boundary-adjacent interior plane.
func (l Layout) fluxPlane(axis, ox, delta int) (int, int) {
	var is, ie int
	if CoarseSpace(delta) {
		is, ie = l.coarseInterior(axis)
	} else {
		is, ie = l.interior(axis)
	}
	if ox > 0 {
		return ie, ie
	}
	return is, is
}

// fluxSpan returns the transverse range for a flux component on an axis with
// zero offset. stag widens the staggered axis by one; Delta == -1 works on
// the coarse spacing; Delta == +1 selects the quadrant half.
func (l Layout) fluxSpan(axis int, rel Relation, stag bool) (int, int) {
	if !l.Active(axis) {
		return 0, 0
	}
	if CoarseSpace(rel.Delta) {
		s, e := l.coarseInterior(axis)
		if stag {
			e++
		}
		return s, e
	}
	s, e := l.interior(axis)
	if stag {
		e++
	}
	if rel.Delta == 1 {
		half := l.nx(axis) / 2
		if quadrantFlag(axis, rel) == 1 {
			s += half
		} else {
			e -= half
		}
	}
	return s, e
}

func (l Layout) faceFluxBoxes(rel Relation) []FluxBox {
	n := offsetAxis(rel.Off)
	boxes := make([]FluxBox, 0, 2)
	for comp := 1; comp <= 3; comp++ {
		if comp == n {
			continue
		}
		var b Box
		set := func(axis int, s, e int) {
			switch axis {
			case 1:
				b.S1, b.E1 = s, e
			case 2:
				b.S2, b.E2 = s, e
			default:
				b.S3, b.E3 = s, e
			}
		}
		for axis := 1; axis <= 3; axis++ {
			if axis == n {
				s, e := l.fluxPlane(axis, rel.Off.component(axis), rel.Delta)
				set(axis, s, e)
				continue
			}
			s, e := l.fluxSpan(axis, rel, axis == comp)
			set(axis, s, e)
		}
		boxes = append(boxes, FluxBox{Comp: comp, Box: b})
	}
	return boxes
}

func (l Layout) edgeFluxBoxes(rel Relation) []FluxBox {
	// The parallel axis is the one the edge runs along: zero offset.
	par := 0
	for axis := 1; axis <= 3; axis++ {
		if rel.Off.component(axis) == 0 {
			par = axis
		}
	}
	var b Box
	set := func(axis int, s, e int) {
		switch axis {
		case 1:
			b.S1, b.E1 = s, e
		case 2:
			b.S2, b.E2 = s, e
		default:
			b.S3, b.E3 = s, e
		}
	}
	for axis := 1; axis <= 3; axis++ {
		if axis == par {
			s, e := l.fluxSpan(axis, rel, false)
			set(axis, s, e)
			continue
		}
		s, e := l.fluxPlane(axis, rel.Off.component(axis), rel.Delta)
		set(axis, s, e)
	}
	return []FluxBox{{Comp: par, Box: b}}
}
