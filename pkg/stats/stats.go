package stats

import (
	"math"
	"sort"
)

// Sum returns the sum of all elements in the slice.
func Sum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return Sum(x) / float64(len(x))
}

// Variance returns the population variance (divides by N).
func Variance(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := Mean(x)
	ss := 0.0
	for _, v := range x {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(x))
}

// StdDev returns the population standard deviation.
func StdDev(x []float64) float64 {
	return math.Sqrt(Variance(x))
}

// MinMax returns the minimum and maximum values in the slice.
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Median returns the median value of the slice (allocates a copy).
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	mid := n >> 1
	if n&1 == 0 {
		return (cp[mid-1] + cp[mid]) * 0.5
	}
	return cp[mid]
}

// Mode returns the most frequent value. Ties go to the smallest value.
func Mode(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	mode, best := 0.0, 0
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	return mode
}

// Pearson returns the correlation coefficient of two equal-length slices.
// ok is false when there are fewer than two pairs or either side is constant.
func Pearson(x, y []float64) (r float64, ok bool) {
	n := len(x)
	if n < 2 || len(y) != n {
		return 0, false
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// Quantile returns the p-quantile of x, interpolating linearly between the
// closest ranks. p is clamped to [0, 1]. NaN for an empty slice.
func Quantile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	p = math.Max(0, math.Min(1, p))
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)

	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return cp[n-1]
	}
	return cp[lo] + (cp[lo+1]-cp[lo])*(pos-float64(lo))
}

// Histogram counts x into bins equal-width bins spanning [lo, hi] and returns
// the bins+1 edges with the per-bin counts. Bins are half-open except the
// last, which also holds hi. Values outside the range are not counted.
func Histogram(x []float64, bins int, lo, hi float64) (edges []float64, counts []int) {
	if bins < 1 || !(hi > lo) {
		return nil, nil
	}
	edges = make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + (hi-lo)*float64(i)/float64(bins)
	}
	edges[bins] = hi

	counts = make([]int, bins)
	for _, v := range x {
		if math.IsNaN(v) || v < lo || v > hi {
			continue
		}
		i := int((v - lo) / (hi - lo) * float64(bins))
		if i >= bins {
			i = bins - 1
		}
		// settle rounding at the edges
		for i > 0 && v < edges[i] {
			i--
		}
		for i < bins-1 && v >= edges[i+1] {
			i++
		}
		counts[i]++
	}
	return edges, counts
}
