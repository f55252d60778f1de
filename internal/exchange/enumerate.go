package exchange

import (
	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/mesh"
)

// Tag selects a subset of boundaries to visit.
type Tag uint8

const (
	// Any visits every ghost-exchanging boundary.
	Any Tag = iota
	// Local visits boundaries whose neighbor lives on the same process.
	Local
	// Nonlocal visits boundaries whose neighbor lives on another process.
	Nonlocal
	// FluxSend visits boundaries that send flux correction: the neighbor is
	// exactly one level coarser and shares a face or an edge. Edge relations
	// ride along so staggered fields can correct their edge-aligned
	// components; cell-centered protocols that correct faces only should
	// filter on the relation's connectivity.
	FluxSend
	// FluxRecv visits boundaries that receive flux correction: the neighbor
	// is exactly one level finer and shares a face or an edge, mirroring
	// FluxSend's connectivity rule.
	FluxRecv
)

func (t Tag) String() string {
	switch t {
	case Local:
		return "local"
	case Nonlocal:
		return "nonlocal"
	case FluxSend:
		return "flux-send"
	case FluxRecv:
		return "flux-recv"
	default:
		return "any"
	}
}

// Control is the explicit continue/stop signal a boundary callback returns.
type Control uint8

const (
	Continue Control = iota
	Stop
)

// VisitFunc is called for every (block, neighbor, variable) triple matching
// the enumeration.
type VisitFunc func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control

// Each adapts a callback with no termination signal; absence of a signal
// means continue.
func Each(f func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable)) VisitFunc {
	return func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control {
		f(b, nb, v)
		return Continue
	}
}

// matches applies the tag predicate. rank is the calling process, passed
// explicitly so the enumerator reads no ambient global state.
func matches(tag Tag, nb mesh.Neighbor, rank int) bool {
	switch tag {
	case Local:
		return nb.Rank == rank
	case Nonlocal:
		return nb.Rank != rank
	case FluxSend:
		return nb.Delta == -1 && geometry.FluxEligible(nb.Relation())
	case FluxRecv:
		return nb.Delta == 1 && geometry.FluxEligible(nb.Relation())
	default:
		return true
	}
}

// ForEachBoundary walks every (block, neighbor, variable) triple where the
// variable is flagged for ghost exchange and the neighbor matches the tag.
// The order is deterministic for a fixed block, variable, and neighbor
// ordering — enough to keep one cache build self-consistent — but callers
// must not rely on it being stable across rebuilds.
func ForEachBoundary(set *mesh.Set, tag Tag, rank int, fn VisitFunc) {
	for _, b := range set.Blocks() {
		for _, v := range b.Variables() {
			if !v.GhostExchange {
				continue
			}
			for _, nb := range b.Neighbors {
				if !matches(tag, nb, rank) {
					continue
				}
				if fn(b, nb, v) == Stop {
					return
				}
			}
		}
	}
}

// CountBoundaries returns the number of triples the tag would visit.
func CountBoundaries(set *mesh.Set, tag Tag, rank int) int {
	n := 0
	ForEachBoundary(set, tag, rank, Each(func(*mesh.Block, mesh.Neighbor, *mesh.Variable) {
		n++
	}))
	return n
}
