package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/transport"
)

func builtManager(t *testing.T) (*Manager, *Cache) {
	t.Helper()
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(42))
	_, err := m.SetupChannels()
	require.NoError(t, err)

	c := NewCache(Any, transport.Send, false)
	require.NoError(t, c.Build(m.set, m.reg, 0, 42, false))
	require.NoError(t, c.Rebuild(m.set, 0, SendFactory(m.set.Layout)))
	return m, c
}

func TestCacheBuildResolvesAllChannels(t *testing.T) {
	_, c := builtManager(t)
	assert.Equal(t, 2, c.Len())
	for _, ch := range c.Channels() {
		assert.NotNil(t, ch)
	}
}

func TestCacheBuildMissingChannel(t *testing.T) {
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0)
	// No SetupChannels: the registry is empty.
	c := NewCache(Any, transport.Send, false)
	err := c.Build(set, m.reg, 0, 0, false)
	assert.ErrorIs(t, err, ErrMissingChannel)
}

// The same seed reproduces the same slot order; the deterministic flag yields
// enumeration order.
func TestCacheSlotOrderSeeded(t *testing.T) {
	set := sameLevelPair(t)
	m := NewManager(set, transport.NewLoopback(), 0)
	_, err := m.SetupChannels()
	require.NoError(t, err)

	a := NewCache(Any, transport.Send, false)
	b := NewCache(Any, transport.Send, false)
	require.NoError(t, a.Build(set, m.reg, 0, 99, false))
	require.NoError(t, b.Build(set, m.reg, 0, 99, false))
	assert.Equal(t, a.remap, b.remap)

	d := NewCache(Any, transport.Send, false)
	require.NoError(t, d.Build(set, m.reg, 0, 99, true))
	for i, slot := range d.remap {
		assert.Equal(t, i, slot)
	}
}

func TestCacheValidateCleanAfterBuild(t *testing.T) {
	m, c := builtManager(t)
	rebuild, nbound, unfinished := c.Validate(m.set, 0)
	assert.False(t, rebuild)
	assert.False(t, unfinished)
	assert.Equal(t, c.Len(), nbound)
}

// A released-and-reserved buffer changes its generation, which validation
// detects as staleness.
func TestCacheValidateDetectsGenerationChange(t *testing.T) {
	m, c := builtManager(t)
	ch := c.Channels()[0]
	ch.Release()
	ch.Reserve()

	rebuild, _, _ := c.Validate(m.set, 0)
	assert.True(t, rebuild)

	require.NoError(t, c.Rebuild(m.set, 0, SendFactory(m.set.Layout)))
	rebuild, _, _ = c.Validate(m.set, 0)
	assert.False(t, rebuild)
}

func TestCacheValidateDetectsAllocationFlip(t *testing.T) {
	m, c := builtManager(t)
	blockVar(t, m.set, 0, "rho").Free()

	rebuild, _, _ := c.Validate(m.set, 0)
	assert.True(t, rebuild)

	require.NoError(t, c.Rebuild(m.set, 0, SendFactory(m.set.Layout)))
	for i := range c.Descs() {
		d := &c.Descs()[i]
		if d.Block.ID == 0 {
			assert.False(t, d.Allocated)
		}
	}
}

// A real arrival for a slot recorded unallocated, or a null marker for one
// recorded allocated, means the sender's allocation changed since the
// descriptors were built; validation must demand a rebuild.
func TestCacheValidateDetectsArrivalAllocationMismatch(t *testing.T) {
	set := sameLevelPair(t)
	blockVar(t, set, 1, "rho").Free()

	m := NewManager(set, transport.NewLoopback(), 0, WithSeed(21))
	_, err := m.SetupChannels()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.StartReceiving(Any))
	require.NoError(t, m.SendBoundaries(ctx, Any))
	arrived, err := m.ReceiveBoundaries(Any)
	require.NoError(t, err)
	require.True(t, arrived)

	// Block 1's channel now holds real data for a variable recorded
	// unallocated; block 0's holds a null marker for one recorded allocated.
	c := m.caches[cacheKey{Any, transport.Recv}]
	require.NotNil(t, c)
	rebuild, _, _ := c.Validate(set, 0)
	assert.True(t, rebuild)

	// Drained channels carry no arrival, so the disagreement clears.
	_, err = m.Drain(Any)
	require.NoError(t, err)
	rebuild, _, _ = c.Validate(set, 0)
	assert.False(t, rebuild)
}

func TestCacheValidateCountsBoundaries(t *testing.T) {
	m, c := builtManager(t)
	// Registering another exchanged variable changes the boundary count,
	// which invalidates the slot assignment itself.
	b, ok := m.set.Get(0)
	require.True(t, ok)
	v := mesh.NewVariable("extra", geometry.CellCentered, true, m.set.Layout)
	v.Allocate()
	b.AddVariable(v)

	rebuild, nbound, _ := c.Validate(m.set, 0)
	assert.True(t, rebuild)
	assert.Equal(t, 3, nbound)
}
