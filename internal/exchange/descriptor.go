package exchange

import (
	"fmt"

	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/refine"
	"github.com/gridmesh/halo/internal/transport"
)

// CompBox binds one field component to its transfer box.
type CompBox struct {
	Comp int
	Box  geometry.Box
}

// Descriptor is everything the bulk kernel needs to move one boundary:
// the index boxes, the allocation flag, and the channel whose buffer the
// data crosses. The descriptor array is rebuilt wholesale when its cache is
// invalidated and reused untouched across rounds otherwise.
type Descriptor struct {
	Block *mesh.Block
	Nb    mesh.Neighbor
	Var   *mesh.Variable
	Chan  *transport.Channel

	Allocated bool
	Gen       uint64 // channel buffer generation recorded at rebuild
	Boxes     []CompBox
	Coarse    bool // boxes address the coarse scratch space
	Flux      bool
}

// Factory builds one descriptor for a cache slot.
type Factory func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable, ch *transport.Channel) (Descriptor, error)

// PayloadSize sums the descriptor's box counts.
func (d *Descriptor) PayloadSize() int {
	n := 0
	for _, cb := range d.Boxes {
		n += cb.Box.Count()
	}
	return n
}

func describe(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) string {
	return fmt.Sprintf("block %d -> block %d (offset %d,%d,%d %s, delta %d, var %s)",
		b.ID, nb.ID, nb.Off.X1, nb.Off.X2, nb.Off.X3, nb.Conn, nb.Delta, v.Name)
}

// SendFactory derives pack descriptors for one layout.
func SendFactory(l geometry.Layout) Factory {
	return func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable, ch *transport.Channel) (Descriptor, error) {
		rel := nb.Relation()
		d := Descriptor{
			Block:     b,
			Nb:        nb,
			Var:       v,
			Chan:      ch,
			Allocated: v.IsAllocated(),
			Gen:       ch.Generation(),
			Coarse:    geometry.CoarseSpace(rel.Delta),
		}
		for _, c := range v.Orient.Components() {
			box := geometry.PackBox(l, rel, c)
			if err := box.Check(); err != nil {
				return d, fmt.Errorf("%s: %w", describe(b, nb, v), err)
			}
			d.Boxes = append(d.Boxes, CompBox{Comp: c, Box: box})
		}
		return d, nil
	}
}

// RecvFactory derives unpack descriptors for one layout.
func RecvFactory(l geometry.Layout) Factory {
	return func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable, ch *transport.Channel) (Descriptor, error) {
		rel := nb.Relation()
		d := Descriptor{
			Block:     b,
			Nb:        nb,
			Var:       v,
			Chan:      ch,
			Allocated: v.IsAllocated(),
			Gen:       ch.Generation(),
			Coarse:    geometry.CoarseSpace(rel.Delta),
		}
		for _, c := range v.Orient.Components() {
			box := geometry.UnpackBox(l, rel, c, b.Loc.EvenParity())
			if err := box.Check(); err != nil {
				return d, fmt.Errorf("%s: %w", describe(b, nb, v), err)
			}
			d.Boxes = append(d.Boxes, CompBox{Comp: c, Box: box})
		}
		return d, nil
	}
}

// FluxFactory derives flux-correction descriptors. The same factory serves
// both directions: each endpoint's own relation selects the restricted or
// half-face variant.
func FluxFactory(l geometry.Layout) Factory {
	return func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable, ch *transport.Channel) (Descriptor, error) {
		rel := nb.Relation()
		d := Descriptor{
			Block:     b,
			Nb:        nb,
			Var:       v,
			Chan:      ch,
			Allocated: v.IsAllocated(),
			Gen:       ch.Generation(),
			Coarse:    geometry.CoarseSpace(rel.Delta),
			Flux:      true,
		}
		if !geometry.FluxEligible(rel) {
			return d, fmt.Errorf("%s: relation cannot carry flux correction", describe(b, nb, v))
		}
		for _, fb := range geometry.FluxBoxes(l, rel) {
			if err := fb.Box.Check(); err != nil {
				return d, fmt.Errorf("%s: %w", describe(b, nb, v), err)
			}
			d.Boxes = append(d.Boxes, CompBox{Comp: fb.Comp, Box: fb.Box})
		}
		return d, nil
	}
}

// PackPayload packs the descriptor's boxes into the channel buffer and
// returns the value count. Coarse-bound ghost data is restricted into the
// variable's scratch space first; flux data headed to a coarser neighbor is
// restricted on the fly.
func (d *Descriptor) PackPayload(l geometry.Layout) (int, error) {
	buf := d.Chan.Buffer()
	if buf == nil {
		return 0, fmt.Errorf("%s: pack on released buffer", describe(d.Block, d.Nb, d.Var))
	}
	p := 0
	for _, cb := range d.Boxes {
		if d.Flux {
			if d.Coarse {
				packFluxRestricted(l, d.Nb.Relation(), d.Var.Comp(cb.Comp), cb, buf, &p)
			} else {
				geometry.Pack(d.Var.Comp(cb.Comp), cb.Box, buf, &p)
			}
			continue
		}
		if d.Coarse {
			refine.Restrict(d.Var.Comp(cb.Comp), d.Var.CoarseComp(cb.Comp), l, cb.Comp, cb.Box)
			geometry.Pack(d.Var.CoarseComp(cb.Comp), cb.Box, buf, &p)
		} else {
			geometry.Pack(d.Var.Comp(cb.Comp), cb.Box, buf, &p)
		}
	}
	if p > d.Chan.Capacity() {
		return p, fmt.Errorf("%s: payload %d exceeds capacity %d",
			describe(d.Block, d.Nb, d.Var), p, d.Chan.Capacity())
	}
	return p, nil
}

// UnpackPayload mirrors PackPayload on the receiving side. Ghost data from a
// coarser neighbor lands in the scratch space awaiting prolongation; after
// unpacking, degenerate staggered axes replicate their single plane.
func (d *Descriptor) UnpackPayload(l geometry.Layout) error {
	buf := d.Chan.Buffer()
	if buf == nil {
		return fmt.Errorf("%s: unpack on released buffer", describe(d.Block, d.Nb, d.Var))
	}
	p := 0
	for _, cb := range d.Boxes {
		dst := d.Var.Comp(cb.Comp)
		if d.Coarse && !d.Flux {
			dst = d.Var.CoarseComp(cb.Comp)
		}
		geometry.Unpack(buf, dst, cb.Box, &p)
		if axis, ok := geometry.DegenerateStagger(l, cb.Comp); ok && !d.Flux {
			geometry.ReplicatePlane(dst, axis, 0, 1, cb.Box)
		}
	}
	return nil
}

// FillDefault writes val into the descriptor's destination boxes. This is the
// receiving half of a null arrival: the sender holds no storage, so the ghost
// region takes the variable's default value instead.
func (d *Descriptor) FillDefault(val float64) {
	for _, cb := range d.Boxes {
		dst := d.Var.Comp(cb.Comp)
		if d.Coarse && !d.Flux {
			dst = d.Var.CoarseComp(cb.Comp)
		}
		for k := cb.Box.S3; k <= cb.Box.E3; k++ {
			for j := cb.Box.S2; j <= cb.Box.E2; j++ {
				for i := cb.Box.S1; i <= cb.Box.E1; i++ {
					dst.Set(k, j, i, val)
				}
			}
		}
	}
}

// packFluxRestricted restricts interface fluxes toward a coarser neighbor
// while packing: each coarse point averages the fine values it covers, with
// the face-normal plane taken straight from the boundary-adjacent interior.
func packFluxRestricted(l geometry.Layout, rel geometry.Relation, src geometry.Array3, cb CompBox, buf []float64, p *int) {
	box := cb.Box
	for kc := box.S3; kc <= box.E3; kc++ {
		k0, kn := fluxSpan(l, 3, rel, cb.Comp, kc)
		for jc := box.S2; jc <= box.E2; jc++ {
			j0, jn := fluxSpan(l, 2, rel, cb.Comp, jc)
			for ic := box.S1; ic <= box.E1; ic++ {
				i0, in := fluxSpan(l, 1, rel, cb.Comp, ic)
				sum := 0.0
				for k := k0; k < k0+kn; k++ {
					for j := j0; j < j0+jn; j++ {
						for i := i0; i < i0+in; i++ {
							sum += src.At(k, j, i)
						}
					}
				}
				buf[*p] = sum / float64(kn*jn*in)
				*p++
			}
		}
	}
}

// fluxSpan maps one coarse flux index to the fine index range it averages.
func fluxSpan(l geometry.Layout, axis int, rel geometry.Relation, comp, ic int) (start, count int) {
	if !l.Active(axis) {
		return 0, 1
	}
	if rel.Off.Component(axis) != 0 {
		// Interface plane: taken at native resolution.
		is, ie := l.Interior(axis)
		if rel.Off.Component(axis) > 0 {
			return ie, 1
		}
		return is, 1
	}
	is, _ := l.Interior(axis)
	cs, _ := l.CoarseInterior(axis)
	start = is + 2*(ic-cs)
	if rel.Conn == geometry.ConnectFace && axis == comp {
		// Staggered flux faces coincide with coarse faces.
		return start, 1
	}
	return start, 2
}
