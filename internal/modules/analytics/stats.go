package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Descriptive statistics over metric vectors. Callers guard against empty
// vectors; every function here assumes len(values) >= 1 unless noted.

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values for
// even-sized input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SampleStdDev calculates the sample standard deviation (n-1 denominator).
// Returns 0 for fewer than 2 values.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Percentile returns the nearest-rank percentile: the sorted value at
// index floor(n*pct/100), clamped to the last element. No interpolation.
func Percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	return percentileSorted(sorted, pct)
}

// Percentiles answers several percentile queries over one sort.
func Percentiles(values []float64, pcts []int) map[int]float64 {
	sorted := sortedCopy(values)
	result := make(map[int]float64, len(pcts))
	for _, p := range pcts {
		result[p] = percentileSorted(sorted, float64(p))
	}
	return result
}

// percentileSorted is the nearest-rank lookup over an already-sorted slice.
func percentileSorted(sorted []float64, pct float64) float64 {
	idx := int(float64(len(sorted)) * pct / 100)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Correlation calculates the Pearson correlation coefficient between two
// equal-length vectors. The second return is false when the coefficient
// is undefined: fewer than 2 pairs, mismatched lengths, or zero variance
// in either vector.
func Correlation(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
