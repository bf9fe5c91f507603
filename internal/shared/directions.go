package shared

const (
	minExclusive = -BoardSize
)

// DirectionOf returns the reduced step between two tiles and the number of
// steps needed to reach to from from. Equal tiles yield a zero step.
func DirectionOf(from, to Location) (drow, dcol, steps int) {
	dr := to.Row - from.Row
	dc := to.Col - from.Col
	g := gcd(abs(dr), abs(dc))
	if g == 0 {
		return 0, 0, 0
	}
	return dr / g, dc / g, g
}

// Path returns the knightrider line from start to end: every tile whose centre
// lies on the segment between the two centres. beginExclusive and
// endExclusive trim that many tiles from either end; negative values extend the
// line past its endpoints for as long as it stays on the board. Both are clamped
// to [-8, len(line)].
func Path(start, end Location, beginExclusive, endExclusive int) ([]Location, error) {
	if !start.InBounds() || !end.InBounds() {
		return nil, ErrOutOfBounds
	}

	drow, dcol, steps := DirectionOf(start, end)
	if steps == 0 {
		if beginExclusive > 0 && endExclusive > 0 {
			return []Location{}, nil
		}
		return []Location{start}, nil
	}

	length := steps + 1
	first := clamp(beginExclusive, minExclusive, length)
	last := steps - clamp(endExclusive, minExclusive, length)
	if first > last {
		return []Location{}, nil
	}

	squares := make([]Location, 0, last-first+1)
	for k := first; k <= last; k++ {
		loc := start.Offset(k*drow, k*dcol)
		if !loc.InBounds() {
			if k < 0 {
				continue
			}
			break
		}
		squares = append(squares, loc)
	}
	return squares, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
