package batch

import (
	"github.com/pdevine/tensor"
)

// Matrix is a rectangular set of id rows.
type Matrix [][]int32

func (m Matrix) Rows() int {
	return len(m)
}

func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}

	return len(m[0])
}

// Tensor copies m into a dense [rows, cols] int32 tensor.
func (m Matrix) Tensor() *tensor.Dense {
	rows, cols := m.Rows(), m.Cols()
	data := make([]int32, 0, rows*cols)
	for _, row := range m {
		data = append(data, row...)
	}

	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}

// ShiftForTraining builds the decoder input for teacher forcing: each row
// loses its last id and gains goID at the front. m is left untouched.
func ShiftForTraining(m Matrix, goID int32) Matrix {
	shifted := make(Matrix, len(m))
	for i, row := range m {
		out := make([]int32, len(row))
		if len(row) > 0 {
			out[0] = goID
			copy(out[1:], row[:len(row)-1])
		}

		shifted[i] = out
	}

	return shifted
}
