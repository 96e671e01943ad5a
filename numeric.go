package signmf

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// epsilon is the machine epsilon of float32. It is the floor for the
// variance, the auxiliary probabilities and the signature entries, and the
// half width of the band around zero that embedding coordinates are pushed out of.
const epsilon = 1.0 / (1 << 23)

// clipAwayFromZero replaces every value in (-epsilon, epsilon) by ±epsilon.
// Exact zeros become +epsilon.
func clipAwayFromZero(x []float64) {
	for i, v := range x {
		switch {
		case v >= 0 && v < epsilon:
			x[i] = epsilon
		case v < 0 && v > -epsilon:
			x[i] = -epsilon
		}
	}
}

// normalizeColumns rescales every column of m to sum to one. Entries are
// floored at epsilon first, so all-zero columns become uniform.
func normalizeColumns(m *mat.Dense) {
	normalizeColumnsFrom(m, 0)
}

// normalizeColumnsFrom is normalizeColumns restricted to the columns from
// index from on.
func normalizeColumnsFrom(m *mat.Dense, from int) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := from; j < c; j++ {
		mat.Col(col, j, m)
		for i, v := range col {
			if v < epsilon || math.IsNaN(v) {
				col[i] = epsilon
			}
		}
		floats.Scale(1/floats.Sum(col), col)
		m.SetCol(j, col)
	}
}

// columnVectors copies the columns of m into separate slices.
func columnVectors(m mat.Matrix) [][]float64 {
	_, c := m.Dims()
	vecs := make([][]float64, c)
	for j := range vecs {
		vecs[j] = mat.Col(nil, j, m)
	}
	return vecs
}

// sumSquares returns the sum of all squared entries of m.
func sumSquares(m *mat.Dense) float64 {
	if m == nil {
		return 0
	}
	r, c := m.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}
	return s
}

// xlogy returns x*log(y) with the convention 0*log(y) = 0.
func xlogy(x, y float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(y)
}
