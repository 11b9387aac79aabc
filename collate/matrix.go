package collate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/MidiGPT/utils"
)

var (
	// ErrEmptyBatch: a collator was called with no samples.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrShape: rows or matrices that should align do not.
	ErrShape = errors.New("shape mismatch")
)

// Matrix is a rectangular, row-major block of token ids.
type Matrix struct {
	Rows, Cols int
	Data       []int
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]int, rows*cols)}
}

// FromRows stacks equal-length rows.
func FromRows(rows [][]int) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, ErrEmptyBatch
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), m.Cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

func (m Matrix) At(i, j int) int { return m.Data[i*m.Cols+j] }

// Row returns row i as a view into Data.
func (m Matrix) Row(i int) []int { return m.Data[i*m.Cols : (i+1)*m.Cols] }

func (m Matrix) ToRows() [][]int {
	out := make([][]int, m.Rows)
	for i := range out {
		out[i] = append([]int(nil), m.Row(i)...)
	}
	return out
}

// Dense converts the ids to a gonum matrix for numeric consumers.
func (m Matrix) Dense() *mat.Dense {
	return utils.IntsToDense(m.Rows, m.Cols, m.Data)
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b Matrix) bool { return a.Rows == b.Rows && a.Cols == b.Cols }
