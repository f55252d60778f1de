package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmesh/halo/internal/geometry"
)

func testLayout() geometry.Layout {
	return geometry.Layout{NX1: 8, NX2: 8, NX3: 1, Ghost: 2, CoarseGhost: 2}
}

func TestGridLocEvenParity(t *testing.T) {
	tests := []struct {
		loc  GridLoc
		want [3]bool
	}{
		{GridLoc{Lx1: 0, Lx2: 0, Lx3: 0}, [3]bool{true, true, true}},
		{GridLoc{Lx1: 1, Lx2: 2, Lx3: 3}, [3]bool{false, true, false}},
		{GridLoc{Lx1: 5, Lx2: 4, Lx3: 7}, [3]bool{false, true, false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.loc.EvenParity())
	}
}

func TestAddNeighborDerivesConnectivity(t *testing.T) {
	b := &Block{ID: 0}
	b.AddNeighbor(Neighbor{Off: geometry.Offset{X1: 1}, ID: 1})
	b.AddNeighbor(Neighbor{Off: geometry.Offset{X1: 1, X2: -1}, ID: 2})
	b.AddNeighbor(Neighbor{Off: geometry.Offset{X1: 1, X2: 1, X3: 1}, ID: 3})

	assert.Equal(t, geometry.ConnectFace, b.Neighbors[0].Conn)
	assert.Equal(t, geometry.ConnectEdge, b.Neighbors[1].Conn)
	assert.Equal(t, geometry.ConnectCorner, b.Neighbors[2].Conn)
}

func TestSetRejectsDuplicateIDs(t *testing.T) {
	set, err := NewSet(testLayout())
	require.NoError(t, err)
	require.NoError(t, set.Add(&Block{ID: 3}))
	assert.Error(t, set.Add(&Block{ID: 3}))
	assert.Equal(t, 1, set.Len())
}

func TestSetRejectsBadLayout(t *testing.T) {
	_, err := NewSet(geometry.Layout{})
	assert.Error(t, err)
}

func TestVariableAllocation(t *testing.T) {
	l := testLayout()
	v := NewVariable("rho", geometry.CellCentered, true, l)
	assert.False(t, v.IsAllocated())

	v.Allocate()
	require.True(t, v.IsAllocated())
	n1, n2, n3 := l.FieldDims(0)
	assert.Equal(t, n1*n2*n3, v.Comp(0).Len())
	c1, c2, c3 := l.CoarseFieldDims(0)
	assert.Equal(t, c1*c2*c3, v.CoarseComp(0).Len())

	v.Free()
	assert.False(t, v.IsAllocated())
	assert.Zero(t, v.Comp(0).Len())
}

func TestFaceVariableComponents(t *testing.T) {
	l := testLayout()
	v := NewVariable("b", geometry.FaceStaggered, true, l)
	v.Allocate()
	for _, c := range []int{1, 2, 3} {
		n1, n2, n3 := l.FieldDims(c)
		assert.Equal(t, n1*n2*n3, v.Comp(c).Len(), "component %d", c)
	}
}

func TestBlockVariableLookup(t *testing.T) {
	l := testLayout()
	b := &Block{ID: 0}
	b.AddVariable(NewVariable("rho", geometry.CellCentered, true, l))
	b.AddVariable(NewVariable("b", geometry.FaceStaggered, false, l))

	v, ok := b.Variable("rho")
	require.True(t, ok)
	assert.Equal(t, "rho", v.Name)
	_, ok = b.Variable("missing")
	assert.False(t, ok)
	assert.Len(t, b.Variables(), 2)
}
