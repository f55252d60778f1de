package geometry

// Array3 is a dense 3-D float64 array with axis 1 fastest. It is the storage
// unit for one field component on one block, ghosts included.
type Array3 struct {
	N1, N2, N3 int
	Data       []float64
}

// NewArray3 allocates a zeroed array with the given extents.
func NewArray3(n1, n2, n3 int) Array3 {
	return Array3{N1: n1, N2: n2, N3: n3, Data: make([]float64, n1*n2*n3)}
}

// Index maps (k, j, i) to the flat offset.
func (a Array3) Index(k, j, i int) int { return (k*a.N2+j)*a.N1 + i }

// At returns the value at (k, j, i).
func (a Array3) At(k, j, i int) float64 { return a.Data[a.Index(k, j, i)] }

// Set stores v at (k, j, i).
func (a Array3) Set(k, j, i int, v float64) { a.Data[a.Index(k, j, i)] = v }

// Len returns the total number of points.
func (a Array3) Len() int { return len(a.Data) }

// Pack copies the box from the array into buf starting at *p, advancing *p.
// The caller guarantees buf has room for box.Count() values.
func Pack(a Array3, box Box, buf []float64, p *int) {
	for k := box.S3; k <= box.E3; k++ {
		for j := box.S2; j <= box.E2; j++ {
			row := a.Index(k, j, box.S1)
			n := copy(buf[*p:], a.Data[row:row+box.E1-box.S1+1])
			*p += n
		}
	}
}

// Unpack copies box.Count() values from buf starting at *p into the box,
// advancing *p.
func Unpack(buf []float64, a Array3, box Box, p *int) {
	for k := box.S3; k <= box.E3; k++ {
		for j := box.S2; j <= box.E2; j++ {
			row := a.Index(k, j, box.S1)
			n := copy(a.Data[row:row+box.E1-box.S1+1], buf[*p:])
			*p += n
		}
	}
}

// ReplicatePlane copies plane src to plane dst along the given axis over the
// box's extent on the other two axes. It implements the degenerate-axis rule:
// after unpacking a flattened axis, the single computed plane is mirrored so
// 1-D and 2-D runs behave as flattened 3-D.
func ReplicatePlane(a Array3, axis, src, dst int, box Box) {
	switch axis {
	case 1:
		for k := box.S3; k <= box.E3; k++ {
			for j := box.S2; j <= box.E2; j++ {
				a.Set(k, j, dst, a.At(k, j, src))
			}
		}
	case 2:
		for k := box.S3; k <= box.E3; k++ {
			for i := box.S1; i <= box.E1; i++ {
				a.Set(k, dst, i, a.At(k, src, i))
			}
		}
	default:
		for j := box.S2; j <= box.E2; j++ {
			for i := box.S1; i <= box.E1; i++ {
				a.Set(dst, j, i, a.At(src, j, i))
			}
		}
	}
}
