package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarStats(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.Equal(t, 40.0, Sum(x))
	assert.Equal(t, 5.0, Mean(x))
	assert.Equal(t, 4.5, Median(x))
	assert.InDelta(t, 2.0, StdDev(x), 1e-12)
	assert.Equal(t, 4.0, Mode(x))

	lo, hi := MinMax(x)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
}

func TestMedianOddDoesNotReorderInput(t *testing.T) {
	x := []float64{3, 1, 2}
	assert.Equal(t, 2.0, Median(x))
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestModeTieGoesToSmallest(t *testing.T) {
	assert.Equal(t, 1.0, Mode([]float64{3, 1, 3, 1, 2}))
}

func TestEmptyInputsAreNaN(t *testing.T) {
	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(StdDev(nil)))
	assert.True(t, math.IsNaN(Mode(nil)))
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, ok = Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	assert.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, ok = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok)

	_, ok = Pearson([]float64{1}, []float64{1})
	assert.False(t, ok)
}

func TestQuantile(t *testing.T) {
	x := []float64{9, 2, 4, 4, 7, 4, 5, 5}

	assert.Equal(t, 2.0, Quantile(x, 0))
	assert.Equal(t, 4.0, Quantile(x, 0.25))
	assert.Equal(t, Median(x), Quantile(x, 0.5))
	assert.Equal(t, 5.5, Quantile(x, 0.75))
	assert.Equal(t, 9.0, Quantile(x, 1))
	assert.Equal(t, 9.0, Quantile(x, 2), "p is clamped")
	assert.Equal(t, []float64{9, 2, 4, 4, 7, 4, 5, 5}, x)
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestHistogram(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -1, math.NaN()}

	edges, counts := Histogram(x, 5, 0, 10)
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, edges)
	assert.Equal(t, []int{2, 2, 2, 2, 3}, counts, "the last bin holds the upper edge")

	edges, counts = Histogram(x, 3, 5, 5)
	assert.Nil(t, edges)
	assert.Nil(t, counts)
}
