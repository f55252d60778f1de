package mesh

import "github.com/gridmesh/halo/internal/geometry"

// Variable is one named field on one block. Storage is sparse: it can be
// allocated and freed at any time, independent of the allocation state of
// the same field on neighboring blocks.
type Variable struct {
	Name          string
	Orient        geometry.Orientation
	GhostExchange bool

	layout    geometry.Layout
	allocated bool
	comps     map[int]geometry.Array3
	coarse    map[int]geometry.Array3
}

// NewVariable creates an unallocated variable sized by the layout.
func NewVariable(name string, orient geometry.Orientation, ghostExchange bool, l geometry.Layout) *Variable {
	return &Variable{
		Name:          name,
		Orient:        orient,
		GhostExchange: ghostExchange,
		layout:        l,
	}
}

// IsAllocated reports whether the variable currently has storage.
func (v *Variable) IsAllocated() bool { return v.allocated }

// Allocate materializes the component arrays and their coarse scratch
// counterparts. Allocating an allocated variable is a no-op.
func (v *Variable) Allocate() {
	if v.allocated {
		return
	}
	v.comps = make(map[int]geometry.Array3)
	v.coarse = make(map[int]geometry.Array3)
	for _, c := range v.Orient.Components() {
		n1, n2, n3 := v.layout.FieldDims(c)
		v.comps[c] = geometry.NewArray3(n1, n2, n3)
		n1, n2, n3 = v.layout.CoarseFieldDims(c)
		v.coarse[c] = geometry.NewArray3(n1, n2, n3)
	}
	v.allocated = true
}

// Free drops the variable's storage.
func (v *Variable) Free() {
	v.comps = nil
	v.coarse = nil
	v.allocated = false
}

// Comp returns the native-resolution array for one component. Calling it on
// an unallocated variable returns a zero-length array.
func (v *Variable) Comp(c int) geometry.Array3 { return v.comps[c] }

// CoarseComp returns the coarse scratch array for one component.
func (v *Variable) CoarseComp(c int) geometry.Array3 { return v.coarse[c] }
