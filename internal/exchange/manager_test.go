package exchange

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/infrastructure/config"
	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/refine"
	"github.com/gridmesh/halo/internal/transport"
)

func layout2D() geometry.Layout {
	return geometry.Layout{NX1: 8, NX2: 8, NX3: 1, Ghost: 2, CoarseGhost: 2}
}

// sameLevelPair builds two same-level blocks sharing an x1 face, each with an
// allocated cell-centered variable.
func sameLevelPair(t *testing.T) *mesh.Set {
	t.Helper()
	set, err := mesh.NewSet(layout2D())
	require.NoError(t, err)

	b0 := &mesh.Block{ID: 0, Loc: mesh.GridLoc{Lx1: 0, Level: 1}}
	b1 := &mesh.Block{ID: 1, Loc: mesh.GridLoc{Lx1: 1, Level: 1}}
	b0.AddNeighbor(mesh.Neighbor{Off: geometry.Offset{X1: 1}, ID: 1})
	b1.AddNeighbor(mesh.Neighbor{Off: geometry.Offset{X1: -1}, ID: 0})

	for _, b := range []*mesh.Block{b0, b1} {
		v := mesh.NewVariable("rho", geometry.CellCentered, true, set.Layout)
		v.Allocate()
		b.AddVariable(v)
		require.NoError(t, set.Add(b))
	}
	return set
}

func fillInterior(v *mesh.Variable, l geometry.Layout, comp int, f func(k, j, i int) float64) {
	a := v.Comp(comp)
	s1, e1 := l.Interior(1)
	s2, e2 := l.Interior(2)
	s3, e3 := l.Interior(3)
	for k := s3; k <= e3; k++ {
		for j := s2; j <= e2; j++ {
			for i := s1; i <= e1; i++ {
				a.Set(k, j, i, f(k, j, i))
			}
		}
	}
}

func blockVar(t *testing.T, set *mesh.Set, id mesh.BlockID, name string) *mesh.Variable {
	t.Helper()
	b, ok := set.Get(id)
	require.True(t, ok)
	v, ok := b.Variable(name)
	require.True(t, ok)
	return v
}

func runRound(t *testing.T, m *Manager, tag Tag) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Exchange(ctx, tag, 100*time.Microsecond))
}

func TestSameLevelExchangeRoundTrip(t *testing.T) {
	set := sameLevelPair(t)
	l := set.Layout
	val := func(bid int) func(k, j, i int) float64 {
		return func(k, j, i int) float64 {
			return float64(bid*10000 + k*1000 + j*100 + i)
		}
	}
	fillInterior(blockVar(t, set, 0, "rho"), l, 0, val(0))
	fillInterior(blockVar(t, set, 1, "rho"), l, 0, val(1))

	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(7), WithWorkers(2))
	_, err := m.SetupChannels()
	require.NoError(t, err)
	runRound(t, m, Any)

	a0 := blockVar(t, set, 0, "rho").Comp(0)
	a1 := blockVar(t, set, 1, "rho").Comp(0)
	s2, e2 := l.Interior(2)
	for j := s2; j <= e2; j++ {
		for i := 0; i < l.Ghost; i++ {
			// Block 1's left ghosts mirror block 0's rightmost interior.
			assert.Equal(t, val(0)(0, j, i+l.NX1), a1.At(0, j, i),
				"b1 ghost j=%d i=%d", j, i)
			// Block 0's right ghosts mirror block 1's leftmost interior.
			ig := l.Ghost + l.NX1 + i
			assert.Equal(t, val(1)(0, j, ig-l.NX1), a0.At(0, j, ig),
				"b0 ghost j=%d i=%d", j, ig)
		}
	}
}

// Every one of the 26 neighbor directions round-trips exact values on a 3-D
// layout, for both centerings. A receiver's ghost index maps to the sender's
// source index by an interior-extent shift per nonzero offset axis, so every
// changed cell must carry the shifted peer value — including the widened
// staggered regions of edge and corner relations — and the changed-cell count
// must equal the unpack box exactly.
func TestSameLevelRoundTripAllOffsets(t *testing.T) {
	l := geometry.Layout{NX1: 4, NX2: 4, NX3: 4, Ghost: 2, CoarseGhost: 2}
	val := func(bid, comp, k, j, i int) float64 {
		return float64(bid*100000 + comp*10000 + k*1000 + j*100 + i)
	}
	fill := func(bid int, v *mesh.Variable) {
		for _, c := range v.Orient.Components() {
			a := v.Comp(c)
			for k := 0; k < a.N3; k++ {
				for j := 0; j < a.N2; j++ {
					for i := 0; i < a.N1; i++ {
						a.Set(k, j, i, val(bid, c, k, j, i))
					}
				}
			}
		}
	}

	var offsets []geometry.Offset
	for o3 := -1; o3 <= 1; o3++ {
		for o2 := -1; o2 <= 1; o2++ {
			for o1 := -1; o1 <= 1; o1++ {
				if o1 != 0 || o2 != 0 || o3 != 0 {
					offsets = append(offsets, geometry.Offset{X1: o1, X2: o2, X3: o3})
				}
			}
		}
	}
	require.Len(t, offsets, 26)

	for _, off := range offsets {
		off := off
		t.Run(fmt.Sprintf("%+d%+d%+d", off.X1, off.X2, off.X3), func(t *testing.T) {
			set, err := mesh.NewSet(l)
			require.NoError(t, err)
			b0 := &mesh.Block{ID: 0, Loc: mesh.GridLoc{Level: 1}}
			b1 := &mesh.Block{ID: 1, Loc: mesh.GridLoc{Level: 1}}
			b0.AddNeighbor(mesh.Neighbor{Off: off, ID: 1})
			b1.AddNeighbor(mesh.Neighbor{Off: off.Mirror(), ID: 0})
			for bid, b := range []*mesh.Block{b0, b1} {
				for _, fv := range []struct {
					name   string
					orient geometry.Orientation
				}{{"rho", geometry.CellCentered}, {"b", geometry.FaceStaggered}} {
					v := mesh.NewVariable(fv.name, fv.orient, true, l)
					v.Allocate()
					fill(bid, v)
					b.AddVariable(v)
				}
				require.NoError(t, set.Add(b))
			}

			m := NewManager(set, transport.NewLoopback(), 0, WithSeed(29), WithWorkers(2))
			_, err = m.SetupChannels()
			require.NoError(t, err)
			runRound(t, m, Any)

			views := []struct {
				id, peer int
				off      geometry.Offset
			}{{0, 1, off}, {1, 0, off.Mirror()}}
			for _, view := range views {
				for _, name := range []string{"rho", "b"} {
					v := blockVar(t, set, mesh.BlockID(view.id), name)
					for _, comp := range v.Orient.Components() {
						a := v.Comp(comp)
						changed := 0
						for k := 0; k < a.N3; k++ {
							for j := 0; j < a.N2; j++ {
								for i := 0; i < a.N1; i++ {
									got := a.At(k, j, i)
									if got == val(view.id, comp, k, j, i) {
										continue
									}
									changed++
									want := val(view.peer, comp,
										k-view.off.X3*l.NX3,
										j-view.off.X2*l.NX2,
										i-view.off.X1*l.NX1)
									require.Equal(t, want, got,
										"block %d %s comp %d at k=%d j=%d i=%d",
										view.id, name, comp, k, j, i)
								}
							}
						}
						rel := geometry.Relation{Off: view.off, Conn: geometry.ConnectOf(view.off)}
						box := geometry.UnpackBox(l, rel, comp, [3]bool{true, true, true})
						assert.Equal(t, box.Count(), changed,
							"block %d %s comp %d changed cells", view.id, name, comp)
					}
				}
			}
		})
	}
}

// A second identical round must reuse the caches untouched.
func TestCacheStableAcrossRounds(t *testing.T) {
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(3))
	_, err := m.SetupChannels()
	require.NoError(t, err)

	runRound(t, m, Any)
	for _, dir := range []transport.Direction{transport.Send, transport.Recv} {
		c := m.caches[cacheKey{Any, dir}]
		require.NotNil(t, c)
		rebuild, nbound, unfinished := c.Validate(set, 0)
		assert.False(t, rebuild, "dir %s", dir)
		assert.False(t, unfinished, "dir %s", dir)
		assert.Equal(t, c.Len(), nbound)
	}
	runRound(t, m, Any)
}

// Freeing a variable flips its sends to null markers and forces a cache
// rebuild; the peer's ghost region takes the default value.
func TestAllocationToggleRebuildsAndSendsNull(t *testing.T) {
	set := sameLevelPair(t)
	l := set.Layout
	fillInterior(blockVar(t, set, 0, "rho"), l, 0, func(k, j, i int) float64 { return 9 })
	fillInterior(blockVar(t, set, 1, "rho"), l, 0, func(k, j, i int) float64 { return 9 })

	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(11))
	_, err := m.SetupChannels()
	require.NoError(t, err)
	runRound(t, m, Any)

	a1 := blockVar(t, set, 1, "rho").Comp(0)
	s2, _ := l.Interior(2)
	require.Equal(t, 9.0, a1.At(0, s2, 0))

	blockVar(t, set, 0, "rho").Free()
	runRound(t, m, Any)

	// Block 1 heard the null marker and defaulted its ghosts.
	for i := 0; i < l.Ghost; i++ {
		assert.Zero(t, a1.At(0, s2, i))
	}
	// The send cache now records block 0's variable as unallocated.
	c := m.caches[cacheKey{Any, transport.Send}]
	require.NotNil(t, c)
	found := false
	for i := range c.Descs() {
		d := &c.Descs()[i]
		if d.Block.ID == 0 {
			found = true
			assert.False(t, d.Allocated)
		}
	}
	assert.True(t, found)
}

// A round whose previous sends were never drained reports backpressure and
// changes nothing.
func TestSendBackpressure(t *testing.T) {
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(5))
	_, err := m.SetupChannels()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.SendBoundaries(ctx, Any))
	err = m.SendBoundaries(ctx, Any)
	assert.ErrorIs(t, err, ErrNotReady)

	n, err := m.Drain(Any)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, m.SendBoundaries(ctx, Any))
}

// crossLevelPair builds a coarse block with one finer face neighbor covering
// the lower half of its +x1 face.
func crossLevelPair(t *testing.T, orient geometry.Orientation) *mesh.Set {
	t.Helper()
	set, err := mesh.NewSet(layout2D())
	require.NoError(t, err)

	coarse := &mesh.Block{ID: 0, Loc: mesh.GridLoc{Lx1: 0, Level: 0}}
	fine := &mesh.Block{ID: 1, Loc: mesh.GridLoc{Lx1: 2, Lx2: 0, Level: 1}}
	coarse.AddNeighbor(mesh.Neighbor{Off: geometry.Offset{X1: 1}, ID: 1, Delta: 1, Fi1: 0})
	fine.AddNeighbor(mesh.Neighbor{Off: geometry.Offset{X1: -1}, ID: 0, Delta: -1})

	for _, b := range []*mesh.Block{coarse, fine} {
		v := mesh.NewVariable("q", orient, true, set.Layout)
		v.Allocate()
		b.AddVariable(v)
		require.NoError(t, set.Add(b))
	}
	return set
}

func TestCrossLevelExchange(t *testing.T) {
	set := crossLevelPair(t, geometry.CellCentered)
	l := set.Layout
	fillInterior(blockVar(t, set, 0, "q"), l, 0, func(k, j, i int) float64 { return 3 })
	fillInterior(blockVar(t, set, 1, "q"), l, 0, func(k, j, i int) float64 { return 7 })

	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(13), WithWorkers(2))
	_, err := m.SetupChannels()
	require.NoError(t, err)
	runRound(t, m, Any)

	// The coarse block's ghost half-face holds the restriction of the fine
	// interior: an average of a constant field is the constant.
	ac := blockVar(t, set, 0, "q").Comp(0)
	_, ie1 := l.Interior(1)
	s2, _ := l.Interior(2)
	for j := s2; j <= s2+l.NX2/2-1; j++ {
		for i := ie1 + 1; i <= ie1+l.CoarseGhost; i++ {
			assert.Equal(t, 7.0, ac.At(0, j, i), "coarse ghost j=%d i=%d", j, i)
		}
	}

	// The fine block's coarse scratch holds the coarse data, ready for
	// prolongation into the native ghosts.
	fv := blockVar(t, set, 1, "q")
	cs1, _ := l.CoarseInterior(1)
	cs2, ce2 := l.CoarseInterior(2)
	for j := cs2; j <= ce2; j++ {
		for i := cs1 - l.CoarseGhost; i <= cs1-1; i++ {
			assert.Equal(t, 3.0, fv.CoarseComp(0).At(0, j, i), "scratch j=%d i=%d", j, i)
		}
	}

	s2, e2 := l.Interior(2)
	fbox := geometry.Box{S1: 0, E1: l.Ghost - 1, S2: s2, E2: e2}
	refine.Prolongate(fv.CoarseComp(0), fv.Comp(0), l, 0, fbox)
	for j := s2; j <= e2; j++ {
		for i := 0; i < l.Ghost; i++ {
			assert.Equal(t, 3.0, fv.Comp(0).At(0, j, i), "fine ghost j=%d i=%d", j, i)
		}
	}
}

// A flux round moves the fine side's restricted interface fluxes onto the
// coarse side's matching half-face.
func TestFluxCorrectionRound(t *testing.T) {
	set := crossLevelPair(t, geometry.FaceStaggered)
	l := set.Layout
	for _, id := range []mesh.BlockID{0, 1} {
		v := blockVar(t, set, id, "q")
		want := 1.0
		if id == 1 {
			want = 5.0
		}
		for _, c := range []int{1, 2, 3} {
			a := v.Comp(c)
			for n := range a.Data {
				a.Data[n] = want
			}
		}
	}

	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(17))
	_, err := m.SetupChannels()
	require.NoError(t, err)
	runRound(t, m, FluxSend)

	// The coarse block's transverse flux components on the shared half-face
	// now carry the fine side's values.
	cv := blockVar(t, set, 0, "q")
	_, ie1 := l.Interior(1)
	s2, _ := l.Interior(2)
	for j := s2; j <= s2+l.NX2/2; j++ {
		assert.Equal(t, 5.0, cv.Comp(2).At(0, j, ie1), "comp 2 j=%d", j)
	}
	for j := s2; j <= s2+l.NX2/2-1; j++ {
		assert.Equal(t, 5.0, cv.Comp(3).At(0, j, ie1), "comp 3 j=%d", j)
	}
	// Outside the fine neighbor's half the coarse values are untouched.
	_, e2 := l.Interior(2)
	assert.Equal(t, 1.0, cv.Comp(2).At(0, e2, ie1))
}

func TestSetupChannelsBeginsEpoch(t *testing.T) {
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0)

	e1, err := m.SetupChannels()
	require.NoError(t, err)
	assert.Equal(t, e1, m.Epoch())
	assert.Equal(t, 2, m.Registry().Len(transport.Send, false))
	assert.Equal(t, 2, m.Registry().Len(transport.Recv, false))

	e2, err := m.SetupChannels()
	require.NoError(t, err)
	assert.NotEqual(t, e1, e2)
}

func TestExchangeLocalTag(t *testing.T) {
	set := sameLevelPair(t)
	l := set.Layout
	fillInterior(blockVar(t, set, 0, "rho"), l, 0, func(k, j, i int) float64 { return 2 })
	fillInterior(blockVar(t, set, 1, "rho"), l, 0, func(k, j, i int) float64 { return 4 })

	m := NewManager(set, transport.NewLoopback(), 0, WithDeterministicOrder())
	_, err := m.SetupChannels()
	require.NoError(t, err)
	runRound(t, m, Local)

	a1 := blockVar(t, set, 1, "rho").Comp(0)
	s2, _ := l.Interior(2)
	assert.Equal(t, 2.0, a1.At(0, s2, 0))
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Exchange.ShuffleSeed = 31
	cfg.Exchange.Workers = 2
	cfg.Exchange.Deterministic = true

	set := sameLevelPair(t)
	l := set.Layout
	fillInterior(blockVar(t, set, 0, "rho"), l, 0, func(k, j, i int) float64 { return 6 })
	fillInterior(blockVar(t, set, 1, "rho"), l, 0, func(k, j, i int) float64 { return 8 })

	m := NewManagerFromConfig(set, transport.NewLoopback(), 0, cfg)
	assert.Equal(t, cfg.Exchange.ShuffleSeed, m.seed)
	assert.True(t, m.deterministic)

	_, err := m.SetupChannels()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Exchange(ctx, Any, cfg.Exchange.PollInterval))

	a1 := blockVar(t, set, 1, "rho").Comp(0)
	s2, _ := l.Interior(2)
	assert.Equal(t, 6.0, a1.At(0, s2, 0))
}
