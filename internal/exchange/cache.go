package exchange

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/transport"
)

// ErrMissingChannel reports a boundary whose channel was never created by
// topology setup. It is a configuration error, not a transient condition.
var ErrMissingChannel = errors.New("no channel registered for boundary")

// Cache is the round-persistent descriptor array for one (tag, direction)
// pair. Slot order is fixed at build time and intentionally decoupled from
// enumeration order; the remap table translates between them. Validation is
// the cheap per-round path, rebuild the expensive one.
type Cache struct {
	tag  Tag
	dir  transport.Direction
	flux bool

	channels []*transport.Channel
	remap    []int
	descs    []Descriptor
}

// NewCache creates an empty cache for one boundary subset and direction.
func NewCache(tag Tag, dir transport.Direction, flux bool) *Cache {
	return &Cache{tag: tag, dir: dir, flux: flux}
}

// Len returns the number of cached boundaries.
func (c *Cache) Len() int { return len(c.descs) }

// Descs exposes the descriptor slots in slot order.
func (c *Cache) Descs() []Descriptor { return c.descs }

// Channels exposes the channel slots in slot order.
func (c *Cache) Channels() []*transport.Channel { return c.channels }

func (c *Cache) key(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) transport.Address {
	switch {
	case c.flux && c.dir == transport.Send:
		return FluxSendKey(b, nb, v)
	case c.flux:
		return FluxReceiveKey(b, nb, v)
	case c.dir == transport.Send:
		return SendKey(b, nb, v)
	default:
		return ReceiveKey(b, nb, v)
	}
}

// Build resolves every matching boundary's channel out of the registry and
// assigns cache slots. Slot assignment is a seeded shuffle of the enumeration
// order unless deterministic ordering is requested; correctness must never
// depend on slot order, and shuffling keeps accidental dependence from
// settling in. A registry miss is fatal.
func (c *Cache) Build(set *mesh.Set, reg *transport.Registry, rank int, seed int64, deterministic bool) error {
	n := CountBoundaries(set, c.tag, rank)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !deterministic {
		order = rand.New(rand.NewSource(seed)).Perm(n)
	}

	c.channels = make([]*transport.Channel, n)
	c.remap = order
	c.descs = make([]Descriptor, n)

	var err error
	idx := 0
	ForEachBoundary(set, c.tag, rank, func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control {
		slot := c.remap[idx]
		idx++
		ch, ok := reg.Get(c.key(b, nb, v), c.dir, c.flux)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrMissingChannel, describe(b, nb, v))
			return Stop
		}
		if c.dir == transport.Send {
			// Bring send buffer storage in line with allocation before the
			// descriptors record generations.
			if v.IsAllocated() {
				ch.Reserve()
			} else {
				ch.Release()
			}
		}
		c.channels[slot] = ch
		return Continue
	})
	return err
}

// Rebuild regenerates the descriptor array wholesale against the current
// allocation and buffer state. Channel slots are untouched; only the derived
// descriptors change.
func (c *Cache) Rebuild(set *mesh.Set, rank int, factory Factory) error {
	var err error
	idx := 0
	ForEachBoundary(set, c.tag, rank, func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control {
		if idx >= len(c.remap) {
			err = fmt.Errorf("boundary count changed under cache (%s %s): rebuild requires Build first",
				c.tag, c.dir)
			return Stop
		}
		slot := c.remap[idx]
		idx++
		d, ferr := factory(b, nb, v, c.channels[slot])
		if ferr != nil {
			err = ferr
			return Stop
		}
		c.descs[slot] = d
		return Continue
	})
	if err == nil && idx != len(c.remap) {
		err = fmt.Errorf("boundary count shrank under cache (%s %s): rebuild requires Build first",
			c.tag, c.dir)
	}
	return err
}

// Validate walks the current boundaries against the cached descriptors and
// decides whether the cache is still usable. It returns whether a rebuild is
// required, the boundary count observed, and (sender side) whether any
// channel still holds an unretired previous send.
//
// On the sender side validation also reconciles buffer storage with the
// variable's allocation state: allocated variables reserve their buffers,
// unallocated ones release them. The generation counters those calls bump are
// exactly what the identity comparison below detects. On the receiver side a
// landed arrival must agree with the allocation state the descriptor
// recorded, so a remote allocation change invalidates the cache too.
func (c *Cache) Validate(set *mesh.Set, rank int) (rebuild bool, nbound int, unfinished bool) {
	idx := 0
	ForEachBoundary(set, c.tag, rank, func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control {
		if idx >= len(c.remap) {
			rebuild = true
			idx++
			return Continue
		}
		slot := c.remap[idx]
		idx++
		d := &c.descs[slot]
		ch := c.channels[slot]

		if c.dir == transport.Send {
			if v.IsAllocated() {
				ch.Reserve()
			} else {
				ch.Release()
			}
			if !ch.IsAvailableForWrite() {
				unfinished = true
			}
		} else {
			// An arrival disagreeing with the recorded allocation means the
			// sender's allocation changed under the cache: real data for a
			// slot recorded unallocated, or a null marker for one recorded
			// allocated. The descriptors are stale either way.
			switch ch.State() {
			case transport.Received:
				if !d.Allocated {
					rebuild = true
				}
			case transport.ReceivedNull:
				if d.Allocated {
					rebuild = true
				}
			}
		}
		// Allocation flips and storage identity changes both invalidate the
		// descriptor: it points at the wrong arrays or the wrong buffer.
		if d.Allocated != v.IsAllocated() {
			rebuild = true
		}
		if d.Gen != ch.Generation() {
			rebuild = true
		}
		return Continue
	})
	nbound = idx
	if idx != len(c.remap) {
		rebuild = true
	}
	return rebuild, nbound, unfinished
}
