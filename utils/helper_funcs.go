package utils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// IntsToDense wraps a row-major id buffer as a (rows x cols) matrix.
func IntsToDense(rows, cols int, data []int) *mat.Dense {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("IntsToDense: %d values for %dx%d", len(data), rows, cols))
	}
	if rows == 0 || cols == 0 {
		panic("IntsToDense: zero dimension")
	}
	v := make([]float64, len(data))
	for i, id := range data {
		v[i] = float64(id)
	}
	return mat.NewDense(rows, cols, v)
}

// DenseToInts is the inverse of IntsToDense.
func DenseToInts(m mat.Matrix) (rows, cols int, data []int) {
	rows, cols = m.Dims()
	data = make([]int, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, int(m.At(i, j)))
		}
	}
	return rows, cols, data
}

// LengthStats returns mean and sample standard deviation of lengths.
// Both are 0 for an empty slice.
func LengthStats(lengths []int) (mean, std float64) {
	if len(lengths) == 0 {
		return 0, 0
	}
	x := make([]float64, len(lengths))
	for i, l := range lengths {
		x[i] = float64(l)
	}
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
