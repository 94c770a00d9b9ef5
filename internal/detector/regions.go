package detector

// Connected-component labelling over binary significance masks. All
// routines here use 4-connectivity (orthogonal neighbours only), the same
// adjacency the background-grid BFS uses; diagonal-only bridges do not
// join clusters.

// Binarize thresholds a p-value map into a significance mask. A pixel is
// significant when its p-value is strictly below threshold: lower p-values
// mean stronger evidence, so the comparison direction must never flip.
func Binarize(pv *PValueMap, threshold float64) *Mask {
	m := NewMask(pv.Rows, pv.Cols)
	for i, p := range pv.Values {
		m.Bits[i] = p < threshold
	}
	return m
}

// ComponentAt returns the connected component of true pixels containing the
// seed coordinate. If the seed pixel itself is not set, the returned mask
// is empty (no cluster found).
func ComponentAt(m *Mask, seedX, seedY int) *Mask {
	out := NewMask(m.Rows, m.Cols)
	if seedX < 0 || seedX >= m.Cols || seedY < 0 || seedY >= m.Rows {
		return out
	}
	if !m.At(seedX, seedY) {
		return out
	}

	seen := make([]bool, len(m.Bits))
	for _, idx := range bfsComponent(m, seen, m.Idx(seedX, seedY)) {
		out.Bits[idx] = true
	}
	return out
}

// LargestComponent returns the largest connected component in the mask and
// its pixel count. Ties resolve to the component discovered first in
// row-major scan order, keeping discovery deterministic. Returns (nil, 0)
// when the mask has no true pixels.
func LargestComponent(m *Mask) (*Mask, int) {
	seen := make([]bool, len(m.Bits))
	var best []int

	for idx, b := range m.Bits {
		if !b || seen[idx] {
			continue
		}
		comp := bfsComponent(m, seen, idx)
		if len(comp) > len(best) {
			best = comp
		}
	}

	if best == nil {
		return nil, 0
	}

	out := NewMask(m.Rows, m.Cols)
	for _, idx := range best {
		out.Bits[idx] = true
	}
	return out, len(best)
}

// bfsComponent flood-fills the component containing start, marking seen
// and returning the flat indices of its pixels. start must be a set pixel.
func bfsComponent(m *Mask, seen []bool, start int) []int {
	queue := []int{start}
	seen[start] = true
	comp := []int{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		y := cur / m.Cols
		x := cur % m.Cols

		for _, n := range [4][2]int{{x, y - 1}, {x, y + 1}, {x - 1, y}, {x + 1, y}} {
			nx, ny := n[0], n[1]
			if nx < 0 || nx >= m.Cols || ny < 0 || ny >= m.Rows {
				continue
			}
			nIdx := ny*m.Cols + nx
			if seen[nIdx] || !m.Bits[nIdx] {
				continue
			}
			seen[nIdx] = true
			queue = append(queue, nIdx)
			comp = append(comp, nIdx)
		}
	}
	return comp
}
