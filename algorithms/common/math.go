package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of data
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the population standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// RMS calculates the root mean square of data
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// Median returns the median of data without modifying it
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// MedianFilter applies median filtering with given window size. The window
// shrinks at the edges.
func MedianFilter(data []float64, windowSize int) []float64 {
	if len(data) == 0 || windowSize <= 1 {
		return data
	}

	if windowSize > len(data) {
		windowSize = len(data)
	}

	result := make([]float64, len(data))
	halfWindow := windowSize / 2

	for i := range data {
		start := max(i-halfWindow, 0)
		end := min(i+halfWindow+1, len(data))
		result[i] = Median(data[start:end])
	}

	return result
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// ParabolicPeak refines the position of an extremum at index i of data by
// fitting a parabola through its neighbours. Returns i unchanged at the
// edges or on a flat neighbourhood.
func ParabolicPeak(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return float64(i)
	}

	y1, y2, y3 := data[i-1], data[i], data[i+1]
	denom := 2.0 * (y1 - 2.0*y2 + y3)
	if denom == 0 {
		return float64(i)
	}

	offset := (y1 - y3) / denom
	if math.Abs(offset) > 1 {
		return float64(i)
	}
	return float64(i) + offset
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
