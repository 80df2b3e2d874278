package spectrum

import (
	"fmt"
	"math"
)

// Matrix is a dense channel-by-file table of values, indexed as m[channel][file].
// Every row has the same length.
type Matrix [][]float64

// NewMatrix allocates a zeroed matrix with the given number of channels and files.
func NewMatrix(channels, files int) Matrix {
	m := make(Matrix, channels)
	backing := make([]float64, channels*files)
	for i := range m {
		m[i] = backing[i*files : (i+1)*files : (i+1)*files]
	}
	return m
}

// MatrixFromColumns builds a channel-by-file matrix from per-file columns.
// All columns must have the same length.
func MatrixFromColumns(columns [][]float64) (Matrix, error) {
	if len(columns) == 0 {
		return Matrix{}, nil
	}

	channels := len(columns[0])
	m := NewMatrix(channels, len(columns))
	for f, col := range columns {
		if len(col) != channels {
			return nil, fmt.Errorf("column %d has %d channels, expected %d", f, len(col), channels)
		}
		for c, v := range col {
			m[c][f] = v
		}
	}
	return m, nil
}

// Shape returns the number of channels and files.
func (m Matrix) Shape() (channels, files int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Column copies the values of a single file into a new slice.
func (m Matrix) Column(file int) []float64 {
	col := make([]float64, len(m))
	for c, row := range m {
		col[c] = row[file]
	}
	return col
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	channels, files := m.Shape()
	out := NewMatrix(channels, files)
	for c, row := range m {
		copy(out[c], row)
	}
	return out
}

// MinMax returns the smallest and largest value over the full extent of the matrix.
// An empty matrix yields (+Inf, -Inf).
func (m Matrix) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range m {
		for _, v := range row {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return lo, hi
}

// SameShape reports whether both matrices have identical dimensions.
func (m Matrix) SameShape(o Matrix) bool {
	mc, mf := m.Shape()
	oc, of := o.Shape()
	return mc == oc && mf == of
}
