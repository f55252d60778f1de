package geometry

import "fmt"

// Offset is the integer direction vector from a block toward one neighbor.
// Each component is in {-1, 0, 1}.
type Offset struct {
	X1, X2, X3 int
}

// Component returns the offset along one axis (1..3).
func (o Offset) Component(axis int) int { return o.component(axis) }

func (o Offset) component(axis int) int {
	switch axis {
	case 1:
		return o.X1
	case 2:
		return o.X2
	default:
		return o.X3
	}
}

// Nonzero returns the count of nonzero offset components.
func (o Offset) Nonzero() int {
	n := 0
	if o.X1 != 0 {
		n++
	}
	if o.X2 != 0 {
		n++
	}
	if o.X3 != 0 {
		n++
	}
	return n
}

// Mirror returns the offset as seen from the neighbor's side.
func (o Offset) Mirror() Offset { return Offset{-o.X1, -o.X2, -o.X3} }

// Connect classifies a neighbor relation by its shared geometric element.
type Connect uint8

const (
	ConnectNone Connect = iota
	ConnectFace
	ConnectEdge
	ConnectCorner
)

// ConnectOf derives the connectivity type from the offset vector.
func ConnectOf(o Offset) Connect {
	switch o.Nonzero() {
	case 1:
		return ConnectFace
	case 2:
		return ConnectEdge
	case 3:
		return ConnectCorner
	default:
		return ConnectNone
	}
}

func (c Connect) String() string {
	switch c {
	case ConnectFace:
		return "face"
	case ConnectEdge:
		return "edge"
	case ConnectCorner:
		return "corner"
	default:
		return "none"
	}
}

// Relation carries the geometric facts about one neighbor needed to compute
// transfer boxes. Fi1/Fi2 select the neighbor's sub-quadrant and are
// meaningful only when Delta != 0.
type Relation struct {
	Off      Offset
	Conn     Connect
	Delta    int // neighbor level minus block level: -1, 0, +1
	Fi1, Fi2 int
}

// Box is an inclusive index box. S/E pairs follow axis order; axis 1 varies
// fastest during packing.
type Box struct {
	S1, E1 int
	S2, E2 int
	S3, E3 int
}

// Count returns the number of points in the box.
func (b Box) Count() int {
	return (b.E1 - b.S1 + 1) * (b.E2 - b.S2 + 1) * (b.E3 - b.S3 + 1)
}

// Check returns ErrBadExtent if any axis of the box is empty or inverted.
func (b Box) Check() error {
	if b.E1 < b.S1 || b.E2 < b.S2 || b.E3 < b.S3 {
		return fmt.Errorf("%w: box [%d,%d]x[%d,%d]x[%d,%d]",
			ErrBadExtent, b.S1, b.E1, b.S2, b.E2, b.S3, b.E3)
	}
	return nil
}
