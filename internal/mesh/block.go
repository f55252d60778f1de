package mesh

import (
	"fmt"

	"github.com/gridmesh/halo/internal/geometry"
)

// BlockID identifies a block globally across all processes.
type BlockID int

// GridLoc is a block's integer position in the refinement hierarchy.
type GridLoc struct {
	Lx1, Lx2, Lx3 int64
	Level         int
}

// EvenParity reports, per axis, whether the block sits on the even half of
// its parent cell. The parity picks which side of the coarse scratch space
// data from a coarser neighbor extends into.
func (g GridLoc) EvenParity() [3]bool {
	return [3]bool{g.Lx1&1 == 0, g.Lx2&1 == 0, g.Lx3&1 == 0}
}

// Neighbor is a directed adjacency descriptor from one block toward another.
type Neighbor struct {
	Off      geometry.Offset
	Conn     geometry.Connect
	Delta    int // neighbor level minus own level: -1, 0, +1
	ID       BlockID
	Rank     int // process owning the neighbor
	Fi1, Fi2 int // sub-quadrant selectors, coarse/fine relations only
}

// Relation converts the neighbor into its geometric form.
func (n Neighbor) Relation() geometry.Relation {
	return geometry.Relation{Off: n.Off, Conn: n.Conn, Delta: n.Delta, Fi1: n.Fi1, Fi2: n.Fi2}
}

// Block is one rectangular mesh patch, the unit of ownership and refinement.
type Block struct {
	ID        BlockID
	Loc       GridLoc
	Rank      int
	Neighbors []Neighbor

	vars []*Variable
}

// AddNeighbor appends a relation, deriving the connectivity type from the
// offset when unset.
func (b *Block) AddNeighbor(n Neighbor) {
	if n.Conn == geometry.ConnectNone {
		n.Conn = geometry.ConnectOf(n.Off)
	}
	b.Neighbors = append(b.Neighbors, n)
}

// AddVariable registers a variable on the block. Registration order fixes
// the enumeration order.
func (b *Block) AddVariable(v *Variable) { b.vars = append(b.vars, v) }

// Variables returns the block's variables in registration order.
func (b *Block) Variables() []*Variable { return b.vars }

// Variable looks a variable up by name.
func (b *Block) Variable(name string) (*Variable, bool) {
	for _, v := range b.vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Set is the flat arena of blocks owned by one process, sharing one layout.
type Set struct {
	Layout geometry.Layout

	blocks []*Block
	index  map[BlockID]*Block
}

// NewSet creates an empty arena for the given layout.
func NewSet(l geometry.Layout) (*Set, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Set{Layout: l, index: make(map[BlockID]*Block)}, nil
}

// Add inserts a block into the arena.
func (s *Set) Add(b *Block) error {
	if _, dup := s.index[b.ID]; dup {
		return fmt.Errorf("duplicate block id %d", b.ID)
	}
	s.blocks = append(s.blocks, b)
	s.index[b.ID] = b
	return nil
}

// Blocks returns the arena's blocks in insertion order.
func (s *Set) Blocks() []*Block { return s.blocks }

// Get resolves a block id; remote blocks are absent.
func (s *Set) Get(id BlockID) (*Block, bool) {
	b, ok := s.index[id]
	return b, ok
}

// Len returns the number of local blocks.
func (s *Set) Len() int { return len(s.blocks) }
