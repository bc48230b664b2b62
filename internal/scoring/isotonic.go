package scoring

import (
	"sort"
)

const (
	MethodIsotonic = "isotonic"

	// DefaultTailWidth is the rank span over which the isotonic curve
	// falls from its last value to zero.
	DefaultTailWidth = 1000
)

// Isotonic fits a non-increasing step function with pool-adjacent-
// violators and joins the blocks piecewise-linearly.
type Isotonic struct {
	tailWidth float64
}

// NewIsotonic creates an isotonic fitter. A non-positive tailWidth means
// DefaultTailWidth.
func NewIsotonic(tailWidth float64) *Isotonic {
	if tailWidth <= 0 {
		tailWidth = DefaultTailWidth
	}
	return &Isotonic{tailWidth: tailWidth}
}

func (*Isotonic) Name() string { return MethodIsotonic }

// block is a run of pooled observations sharing one fitted value.
type block struct {
	lo, hi float64 // rank span
	sum    float64 // number correct
	n      float64
}

func (b block) value() float64 { return b.sum / b.n }

func (f *Isotonic) Fit(points []Point) (Curve, error) {
	if len(points) == 0 {
		return nil, ErrEmptyHistory
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	var blocks []block
	for _, p := range sorted {
		if n := len(blocks); n > 0 && blocks[n-1].hi == p.Rank {
			blocks[n-1].sum += p.y()
			blocks[n-1].n++
		} else {
			blocks = append(blocks, block{lo: p.Rank, hi: p.Rank, sum: p.y(), n: 1})
		}
		// Pool while a harder block is answered better than an easier one.
		for len(blocks) > 1 {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			if a.value() >= b.value() {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{lo: a.lo, hi: b.hi, sum: a.sum + b.sum, n: a.n + b.n})
		}
	}
	return newPiecewise(blocks, f.tailWidth), nil
}

// piecewise is flat across each block, linear between blocks, flat before
// the first block and decays linearly to zero after the last one.
type piecewise struct {
	xs, ys []float64 // breakpoints, ascending xs
}

func newPiecewise(blocks []block, tail float64) *piecewise {
	pw := &piecewise{}
	for _, b := range blocks {
		v := b.value()
		pw.add(b.lo, v)
		if b.hi > b.lo {
			pw.add(b.hi, v)
		}
	}
	last := blocks[len(blocks)-1]
	if last.value() > 0 {
		pw.add(last.hi+tail, 0)
	}
	return pw
}

func (pw *piecewise) add(x, y float64) {
	pw.xs = append(pw.xs, x)
	pw.ys = append(pw.ys, y)
}

func (pw *piecewise) P(rank float64) float64 {
	xs, ys := pw.xs, pw.ys
	if rank <= xs[0] {
		return ys[0]
	}
	n := len(xs)
	if rank >= xs[n-1] {
		return ys[n-1]
	}
	i := sort.SearchFloat64s(xs, rank)
	if xs[i] == rank {
		return ys[i]
	}
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(rank-x0)/(x1-x0)
}

// Integrate is exact: the curve is linear between breakpoints.
func (pw *piecewise) Integrate(lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	knots := []float64{lo}
	for _, x := range pw.xs {
		if x > lo && x < hi {
			knots = append(knots, x)
		}
	}
	knots = append(knots, hi)

	area := 0.0
	for i := 1; i < len(knots); i++ {
		a, b := knots[i-1], knots[i]
		area += (b - a) * (pw.P(a) + pw.P(b)) / 2
	}
	return area
}
