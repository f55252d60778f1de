package geometry

// SendSize returns the packed payload size for one variable across one
// relation: the sum of the pack-box counts over the orientation's components.
func SendSize(l Layout, rel Relation, orient Orientation) int {
	n := 0
	for _, c := range orient.Components() {
		n += PackBox(l, rel, c).Count()
	}
	return n
}

// RecvSize returns the unpacked payload size for one variable across one
// relation. It equals the sender's SendSize for the mirrored relation.
func RecvSize(l Layout, rel Relation, orient Orientation) int {
	n := 0
	for _, c := range orient.Components() {
		n += UnpackBox(l, rel, c, [3]bool{true, true, true}).Count()
	}
	return n
}

// VariableBufferSize returns the persistent channel capacity for one
// variable across one geometric relation: the maximum payload over the
// same-level, coarse-bound, and fine-bound transfer rules in both
// directions. Channels are created once per topology epoch, so the capacity
// must cover whichever rule the relation ends up using.
func VariableBufferSize(l Layout, off Offset, orient Orientation) int {
	conn := ConnectOf(off)
	max := 0
	for _, delta := range []int{-1, 0, 1} {
		rel := Relation{Off: off, Conn: conn, Delta: delta}
		if n := SendSize(l, rel, orient); n > max {
			max = n
		}
		if n := RecvSize(l, rel, orient); n > max {
			max = n
		}
	}
	return max
}

// CheckSizes validates that every per-component transfer box of a relation
// is non-empty, in both directions. A failure is a configuration error and
// is detectable before any transport setup.
func CheckSizes(l Layout, rel Relation, orient Orientation) error {
	for _, c := range orient.Components() {
		if err := PackBox(l, rel, c).Check(); err != nil {
			return err
		}
		if err := UnpackBox(l, rel, c, [3]bool{}).Check(); err != nil {
			return err
		}
	}
	return nil
}
