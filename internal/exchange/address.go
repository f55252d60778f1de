package exchange

import (
	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/transport"
)

// locationIndex folds an offset vector into a single geometric element index
// in [0, 26].
func locationIndex(o geometry.Offset) int {
	return 9*(1+o.X3) + 3*(1+o.X2) + (1 + o.X1)
}

// SendKey derives the address of the channel this block sends on toward one
// neighbor for one variable.
func SendKey(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) transport.Address {
	return transport.Address{
		Sender:   int(b.ID),
		Receiver: int(nb.ID),
		Variable: v.Name,
		Location: locationIndex(nb.Off),
	}
}

// ReceiveKey derives the address of the channel this block receives on from
// one neighbor for one variable. For any physical interface, one side's
// SendKey equals the other side's ReceiveKey — both endpoints resolve the
// same channel with no negotiation.
func ReceiveKey(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) transport.Address {
	return transport.Address{
		Sender:   int(nb.ID),
		Receiver: int(b.ID),
		Variable: v.Name,
		Location: locationIndex(nb.Off.Mirror()),
	}
}

// FluxSendKey is SendKey in the flux-correction key space. Flux channels
// never collide with the ghost channels of the same boundary.
func FluxSendKey(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) transport.Address {
	a := SendKey(b, nb, v)
	a.Flux = true
	return a
}

// FluxReceiveKey is ReceiveKey in the flux-correction key space.
func FluxReceiveKey(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) transport.Address {
	a := ReceiveKey(b, nb, v)
	a.Flux = true
	return a
}
